package nn

import (
	"fmt"

	"github.com/tensorware/pure-torch/torch"
)

// BatchNorm2d normalizes each channel of an NCHW input over the batch,
// tracking running statistics for inference.
type BatchNorm2d struct {
	weight      *torch.Tensor
	bias        *torch.Tensor
	runningMean *torch.Tensor
	runningVar  *torch.Tensor

	momentum float64
	eps      float64
	training bool
}

type batchNormConfig struct {
	momentum float64
	eps      float64
}

// BatchNormOption customizes a batch normalization layer.
type BatchNormOption func(*batchNormConfig)

// WithMomentum sets the running-statistics momentum.
func WithMomentum(momentum float64) BatchNormOption {
	return func(c *batchNormConfig) { c.momentum = momentum }
}

// WithEps sets the variance epsilon.
func WithEps(eps float64) BatchNormOption {
	return func(c *batchNormConfig) { c.eps = eps }
}

// NewBatchNorm2d builds a batch normalization layer over numFeatures
// channels. The layer starts in training mode.
func NewBatchNorm2d(numFeatures int64, opts ...BatchNormOption) (*BatchNorm2d, error) {
	if numFeatures <= 0 {
		return nil, fmt.Errorf("feature count must be positive, got %d", numFeatures)
	}

	cfg := batchNormConfig{momentum: 0.1, eps: 1e-5}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.eps <= 0 {
		return nil, fmt.Errorf("eps must be positive, got %g", cfg.eps)
	}

	shape := torch.NewShape(numFeatures)
	layer := &BatchNorm2d{momentum: cfg.momentum, eps: cfg.eps, training: true}

	var err error
	if layer.weight, err = torch.Ones(shape); err != nil {
		return nil, err
	}
	if layer.bias, err = torch.Zeros(shape); err != nil {
		_ = layer.Close()
		return nil, err
	}
	if layer.runningMean, err = torch.Zeros(shape); err != nil {
		_ = layer.Close()
		return nil, err
	}
	if layer.runningVar, err = torch.Ones(shape); err != nil {
		_ = layer.Close()
		return nil, err
	}
	return layer, nil
}

func (b *BatchNorm2d) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.BatchNorm(input, b.weight, b.bias, b.runningMean, b.runningVar, b.training, b.momentum, b.eps)
}

// SetTraining switches between batch statistics and running statistics.
func (b *BatchNorm2d) SetTraining(training bool) {
	b.training = training
}

func (b *BatchNorm2d) Parameters() []*Parameter {
	return []*Parameter{
		{Name: "weight", Tensor: b.weight},
		{Name: "bias", Tensor: b.bias},
	}
}

func (b *BatchNorm2d) Close() error {
	firstErr := closeParameters(b.Parameters())
	if err := closeParameters([]*Parameter{
		{Name: "running_mean", Tensor: b.runningMean},
		{Name: "running_var", Tensor: b.runningVar},
	}); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// LayerNorm normalizes over the trailing dimensions of the input.
type LayerNorm struct {
	weight *torch.Tensor
	bias   *torch.Tensor

	normalizedShape torch.Shape
	eps             float64
}

// NewLayerNorm builds a layer normalization over the given trailing
// shape.
func NewLayerNorm(normalizedShape torch.Shape, opts ...BatchNormOption) (*LayerNorm, error) {
	if len(normalizedShape) == 0 {
		return nil, fmt.Errorf("normalized shape cannot be empty")
	}
	for _, dim := range normalizedShape {
		if dim <= 0 {
			return nil, fmt.Errorf("normalized shape dimensions must be positive, got %d", dim)
		}
	}

	cfg := batchNormConfig{eps: 1e-5}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.eps <= 0 {
		return nil, fmt.Errorf("eps must be positive, got %g", cfg.eps)
	}

	layer := &LayerNorm{normalizedShape: normalizedShape.Clone(), eps: cfg.eps}

	var err error
	if layer.weight, err = torch.Ones(normalizedShape); err != nil {
		return nil, err
	}
	if layer.bias, err = torch.Zeros(normalizedShape); err != nil {
		_ = layer.weight.Close()
		return nil, err
	}
	return layer, nil
}

func (l *LayerNorm) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.LayerNorm(input, l.normalizedShape, l.weight, l.bias, l.eps)
}

func (l *LayerNorm) Parameters() []*Parameter {
	return []*Parameter{
		{Name: "weight", Tensor: l.weight},
		{Name: "bias", Tensor: l.bias},
	}
}

func (l *LayerNorm) Close() error {
	return closeParameters(l.Parameters())
}
