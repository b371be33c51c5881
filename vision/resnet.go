// Package vision assembles composite models and input transforms on top
// of the nn layer bindings.
package vision

import (
	"github.com/pkg/errors"

	"github.com/tensorware/pure-torch/nn"
	"github.com/tensorware/pure-torch/torch"
)

// ResNet is a residual network over NCHW float32 input, producing one
// logit per class.
type ResNet struct {
	stem   *nn.Sequential
	blocks *nn.Sequential
	pool   *nn.AdaptiveAvgPool2d
	fc     *nn.Linear
}

// NewResNet18 builds an 18-layer residual network with randomly
// initialized parameters.
func NewResNet18(numClasses int64) (*ResNet, error) {
	return newResNet([4]int64{2, 2, 2, 2}, newBasicBlock, basicExpansion, numClasses)
}

// NewResNet34 builds a 34-layer residual network.
func NewResNet34(numClasses int64) (*ResNet, error) {
	return newResNet([4]int64{3, 4, 6, 3}, newBasicBlock, basicExpansion, numClasses)
}

// NewResNet50 builds a 50-layer residual network with bottleneck blocks.
func NewResNet50(numClasses int64) (*ResNet, error) {
	return newResNet([4]int64{3, 4, 6, 3}, newBottleneck, bottleneckExpansion, numClasses)
}

type blockBuilder func(inChannels, outChannels, stride int64) (nn.Module, error)

const (
	basicExpansion      = 1
	bottleneckExpansion = 4
)

var stageChannels = [4]int64{64, 128, 256, 512}

func newResNet(blockCounts [4]int64, build blockBuilder, expansion, numClasses int64) (*ResNet, error) {
	if numClasses <= 0 {
		return nil, errors.Errorf("class count must be positive, got %d", numClasses)
	}

	stem, err := newStem()
	if err != nil {
		return nil, errors.Wrap(err, "building stem")
	}

	blocks := nn.NewSequential()
	inChannels := stageChannels[0]
	for stage, count := range blockCounts {
		outChannels := stageChannels[stage]
		stride := int64(2)
		if stage == 0 {
			stride = 1
		}
		for i := int64(0); i < count; i++ {
			blockStride := stride
			if i > 0 {
				blockStride = 1
			}
			block, err := build(inChannels, outChannels, blockStride)
			if err != nil {
				_ = stem.Close()
				_ = blocks.Close()
				return nil, errors.Wrapf(err, "building stage %d block %d", stage, i)
			}
			blocks.Append(block)
			inChannels = outChannels * expansion
		}
	}

	pool, err := nn.NewAdaptiveAvgPool2d(nn.Square(1))
	if err != nil {
		_ = stem.Close()
		_ = blocks.Close()
		return nil, err
	}

	fc, err := nn.NewLinear(stageChannels[3]*expansion, numClasses)
	if err != nil {
		_ = stem.Close()
		_ = blocks.Close()
		return nil, errors.Wrap(err, "building classifier")
	}

	return &ResNet{stem: stem, blocks: blocks, pool: pool, fc: fc}, nil
}

// newStem builds the fixed input head: 7x7/2 convolution, batch norm,
// ReLU and a 3x3/2 max pool.
func newStem() (*nn.Sequential, error) {
	conv, err := nn.NewConv2d(3, stageChannels[0], nn.Square(7),
		nn.WithStride(nn.Square(2)), nn.WithPadding(nn.PaddingOf(3)), nn.WithBias(false))
	if err != nil {
		return nil, err
	}
	bn, err := nn.NewBatchNorm2d(stageChannels[0])
	if err != nil {
		_ = conv.Close()
		return nil, err
	}
	pool, err := nn.NewMaxPool2d(nn.Square(3),
		nn.WithPoolStride(nn.Square(2)), nn.WithPoolPadding(nn.PaddingOf(1)))
	if err != nil {
		_ = conv.Close()
		_ = bn.Close()
		return nil, err
	}
	return nn.NewSequential(conv, bn, nn.NewReLU(), pool), nil
}

// Forward runs the network on an NCHW batch and returns the class
// logits.
func (r *ResNet) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	out, err := r.stem.Forward(input)
	if err != nil {
		return nil, errors.Wrap(err, "stem")
	}

	blockOut, err := r.blocks.Forward(out)
	_ = out.Close()
	if err != nil {
		return nil, errors.Wrap(err, "residual stages")
	}

	pooled, err := r.pool.Forward(blockOut)
	_ = blockOut.Close()
	if err != nil {
		return nil, errors.Wrap(err, "pooling")
	}

	flat, err := pooled.Flatten(1, -1)
	_ = pooled.Close()
	if err != nil {
		return nil, errors.Wrap(err, "flattening")
	}

	logits, err := r.fc.Forward(flat)
	_ = flat.Close()
	if err != nil {
		return nil, errors.Wrap(err, "classifier")
	}
	return logits, nil
}

// SetTraining switches batch norm and dropout behavior across the whole
// network.
func (r *ResNet) SetTraining(training bool) {
	r.stem.SetTraining(training)
	r.blocks.SetTraining(training)
}

// Train puts the network in training mode.
func (r *ResNet) Train() { r.SetTraining(true) }

// Eval puts the network in inference mode.
func (r *ResNet) Eval() { r.SetTraining(false) }

// Parameters returns every learnable tensor with hierarchical names.
func (r *ResNet) Parameters() []*nn.Parameter {
	var params []*nn.Parameter
	for _, p := range r.stem.Parameters() {
		params = append(params, &nn.Parameter{Name: "stem." + p.Name, Tensor: p.Tensor})
	}
	for _, p := range r.blocks.Parameters() {
		params = append(params, &nn.Parameter{Name: "blocks." + p.Name, Tensor: p.Tensor})
	}
	for _, p := range r.fc.Parameters() {
		params = append(params, &nn.Parameter{Name: "fc." + p.Name, Tensor: p.Tensor})
	}
	return params
}

// Close releases every parameter tensor.
func (r *ResNet) Close() error {
	firstErr := r.stem.Close()
	if err := r.blocks.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.fc.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// basicBlock is the two-convolution residual block used by the 18 and
// 34 layer variants.
type basicBlock struct {
	main       *nn.Sequential
	downsample *nn.Sequential
}

func newBasicBlock(inChannels, outChannels, stride int64) (nn.Module, error) {
	conv1, err := nn.NewConv2d(inChannels, outChannels, nn.Square(3),
		nn.WithStride(nn.Square(stride)), nn.WithPadding(nn.PaddingOf(1)), nn.WithBias(false))
	if err != nil {
		return nil, err
	}
	bn1, err := nn.NewBatchNorm2d(outChannels)
	if err != nil {
		_ = conv1.Close()
		return nil, err
	}
	main := nn.NewSequential(conv1, bn1, nn.NewReLU())

	conv2, err := nn.NewConv2d(outChannels, outChannels, nn.Square(3),
		nn.WithPadding(nn.PaddingOf(1)), nn.WithBias(false))
	if err != nil {
		_ = main.Close()
		return nil, err
	}
	bn2, err := nn.NewBatchNorm2d(outChannels)
	if err != nil {
		_ = main.Close()
		_ = conv2.Close()
		return nil, err
	}
	main.Append(conv2, bn2)

	downsample, err := newDownsample(inChannels, outChannels*basicExpansion, stride)
	if err != nil {
		_ = main.Close()
		return nil, err
	}
	return &basicBlock{main: main, downsample: downsample}, nil
}

func (b *basicBlock) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return residualForward(input, b.main, b.downsample)
}

func (b *basicBlock) Parameters() []*nn.Parameter {
	return residualParameters(b.main, b.downsample)
}

func (b *basicBlock) SetTraining(training bool) {
	b.main.SetTraining(training)
	if b.downsample != nil {
		b.downsample.SetTraining(training)
	}
}

func (b *basicBlock) Close() error {
	return residualClose(b.main, b.downsample)
}

// bottleneck is the 1x1-3x3-1x1 residual block used by the 50 layer
// variant.
type bottleneck struct {
	main       *nn.Sequential
	downsample *nn.Sequential
}

func newBottleneck(inChannels, outChannels, stride int64) (nn.Module, error) {
	expanded := outChannels * bottleneckExpansion

	conv1, err := nn.NewConv2d(inChannels, outChannels, nn.Square(1), nn.WithBias(false))
	if err != nil {
		return nil, err
	}
	bn1, err := nn.NewBatchNorm2d(outChannels)
	if err != nil {
		_ = conv1.Close()
		return nil, err
	}
	main := nn.NewSequential(conv1, bn1, nn.NewReLU())

	conv2, err := nn.NewConv2d(outChannels, outChannels, nn.Square(3),
		nn.WithStride(nn.Square(stride)), nn.WithPadding(nn.PaddingOf(1)), nn.WithBias(false))
	if err != nil {
		_ = main.Close()
		return nil, err
	}
	bn2, err := nn.NewBatchNorm2d(outChannels)
	if err != nil {
		_ = main.Close()
		_ = conv2.Close()
		return nil, err
	}
	main.Append(conv2, bn2, nn.NewReLU())

	conv3, err := nn.NewConv2d(outChannels, expanded, nn.Square(1), nn.WithBias(false))
	if err != nil {
		_ = main.Close()
		return nil, err
	}
	bn3, err := nn.NewBatchNorm2d(expanded)
	if err != nil {
		_ = main.Close()
		_ = conv3.Close()
		return nil, err
	}
	main.Append(conv3, bn3)

	downsample, err := newDownsample(inChannels, expanded, stride)
	if err != nil {
		_ = main.Close()
		return nil, err
	}
	return &bottleneck{main: main, downsample: downsample}, nil
}

func (b *bottleneck) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return residualForward(input, b.main, b.downsample)
}

func (b *bottleneck) Parameters() []*nn.Parameter {
	return residualParameters(b.main, b.downsample)
}

func (b *bottleneck) SetTraining(training bool) {
	b.main.SetTraining(training)
	if b.downsample != nil {
		b.downsample.SetTraining(training)
	}
}

func (b *bottleneck) Close() error {
	return residualClose(b.main, b.downsample)
}

// newDownsample builds the 1x1 projection for the skip connection, or
// returns nil when the identity already matches.
func newDownsample(inChannels, outChannels, stride int64) (*nn.Sequential, error) {
	if stride == 1 && inChannels == outChannels {
		return nil, nil
	}
	conv, err := nn.NewConv2d(inChannels, outChannels, nn.Square(1),
		nn.WithStride(nn.Square(stride)), nn.WithBias(false))
	if err != nil {
		return nil, err
	}
	bn, err := nn.NewBatchNorm2d(outChannels)
	if err != nil {
		_ = conv.Close()
		return nil, err
	}
	return nn.NewSequential(conv, bn), nil
}

func residualForward(input *torch.Tensor, main, downsample *nn.Sequential) (*torch.Tensor, error) {
	out, err := main.Forward(input)
	if err != nil {
		return nil, errors.Wrap(err, "main path")
	}

	identity := input
	if downsample != nil {
		identity, err = downsample.Forward(input)
		if err != nil {
			_ = out.Close()
			return nil, errors.Wrap(err, "downsample path")
		}
	}

	sum, err := out.Add(identity)
	_ = out.Close()
	if identity != input {
		_ = identity.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "skip connection")
	}

	result, err := sum.Relu()
	_ = sum.Close()
	return result, err
}

func residualParameters(main, downsample *nn.Sequential) []*nn.Parameter {
	var params []*nn.Parameter
	for _, p := range main.Parameters() {
		params = append(params, &nn.Parameter{Name: "main." + p.Name, Tensor: p.Tensor})
	}
	if downsample != nil {
		for _, p := range downsample.Parameters() {
			params = append(params, &nn.Parameter{Name: "downsample." + p.Name, Tensor: p.Tensor})
		}
	}
	return params
}

func residualClose(main, downsample *nn.Sequential) error {
	firstErr := main.Close()
	if downsample != nil {
		if err := downsample.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
