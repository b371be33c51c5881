package nn

import (
	"fmt"

	"github.com/tensorware/pure-torch/torch"
)

type convConfig struct {
	stride   Size
	padding  Padding
	dilation Size
	groups   int64
	bias     bool
}

func defaultConvConfig() convConfig {
	return convConfig{
		stride:   Size{1},
		padding:  Valid,
		dilation: Size{1},
		groups:   1,
		bias:     true,
	}
}

// ConvOption customizes a convolution layer.
type ConvOption func(*convConfig)

// WithStride sets the convolution stride.
func WithStride(s Size) ConvOption {
	return func(c *convConfig) { c.stride = s }
}

// WithPadding sets the convolution padding.
func WithPadding(p Padding) ConvOption {
	return func(c *convConfig) { c.padding = p }
}

// WithDilation sets the convolution dilation.
func WithDilation(s Size) ConvOption {
	return func(c *convConfig) { c.dilation = s }
}

// WithGroups sets the number of channel groups.
func WithGroups(groups int64) ConvOption {
	return func(c *convConfig) { c.groups = groups }
}

// WithBias controls whether the layer learns an additive bias.
func WithBias(enabled bool) ConvOption {
	return func(c *convConfig) { c.bias = enabled }
}

func validateConvChannels(inChannels, outChannels, groups int64) error {
	if inChannels <= 0 || outChannels <= 0 {
		return fmt.Errorf("channel counts must be positive, got in=%d out=%d", inChannels, outChannels)
	}
	if groups <= 0 {
		return fmt.Errorf("groups must be positive, got %d", groups)
	}
	if inChannels%groups != 0 {
		return fmt.Errorf("input channels %d not divisible by groups %d", inChannels, groups)
	}
	if outChannels%groups != 0 {
		return fmt.Errorf("output channels %d not divisible by groups %d", outChannels, groups)
	}
	return nil
}

// Conv2d applies a 2-D convolution over an NCHW input.
type Conv2d struct {
	weight *torch.Tensor
	bias   *torch.Tensor

	stride   [2]int64
	padding  [2]int64
	dilation [2]int64
	groups   int64
}

// NewConv2d builds a 2-D convolution layer with freshly initialized
// parameters. The kernel and every per-dimension option accept either
// Square(k) or Size2(h, w).
func NewConv2d(inChannels, outChannels int64, kernel Size, opts ...ConvOption) (*Conv2d, error) {
	cfg := defaultConvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validateConvChannels(inChannels, outChannels, cfg.groups); err != nil {
		return nil, err
	}
	if err := kernel.positive("kernel"); err != nil {
		return nil, err
	}
	if err := cfg.stride.positive("stride"); err != nil {
		return nil, err
	}
	if err := cfg.dilation.positive("dilation"); err != nil {
		return nil, err
	}

	kernelPair, err := kernel.pair()
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	stridePair, err := cfg.stride.pair()
	if err != nil {
		return nil, fmt.Errorf("stride: %w", err)
	}
	dilationPair, err := cfg.dilation.pair()
	if err != nil {
		return nil, fmt.Errorf("dilation: %w", err)
	}
	paddingPair, err := cfg.padding.resolvePair(kernelPair, stridePair, dilationPair)
	if err != nil {
		return nil, err
	}

	fanIn := (inChannels / cfg.groups) * kernelPair[0] * kernelPair[1]
	weight, err := kaimingUniform(torch.NewShape(outChannels, inChannels/cfg.groups, kernelPair[0], kernelPair[1]), fanIn)
	if err != nil {
		return nil, err
	}

	layer := &Conv2d{
		weight:   weight,
		stride:   stridePair,
		padding:  paddingPair,
		dilation: dilationPair,
		groups:   cfg.groups,
	}
	if cfg.bias {
		bias, err := kaimingUniform(torch.NewShape(outChannels), fanIn)
		if err != nil {
			_ = weight.Close()
			return nil, err
		}
		layer.bias = bias
	}
	return layer, nil
}

func (c *Conv2d) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.Conv2d(input, c.weight, c.bias, c.stride, c.padding, c.dilation, c.groups)
}

func (c *Conv2d) Parameters() []*Parameter {
	params := []*Parameter{{Name: "weight", Tensor: c.weight}}
	if c.bias != nil {
		params = append(params, &Parameter{Name: "bias", Tensor: c.bias})
	}
	return params
}

func (c *Conv2d) Close() error {
	return closeParameters(c.Parameters())
}

// Conv1d applies a 1-D convolution over an NCL input.
type Conv1d struct {
	weight *torch.Tensor
	bias   *torch.Tensor

	stride   int64
	padding  int64
	dilation int64
	groups   int64
}

// NewConv1d builds a 1-D convolution layer with freshly initialized
// parameters.
func NewConv1d(inChannels, outChannels int64, kernel Size, opts ...ConvOption) (*Conv1d, error) {
	cfg := defaultConvConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := validateConvChannels(inChannels, outChannels, cfg.groups); err != nil {
		return nil, err
	}
	if err := kernel.positive("kernel"); err != nil {
		return nil, err
	}
	if err := cfg.stride.positive("stride"); err != nil {
		return nil, err
	}
	if err := cfg.dilation.positive("dilation"); err != nil {
		return nil, err
	}

	kernelSize, err := kernel.single()
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	stride, err := cfg.stride.single()
	if err != nil {
		return nil, fmt.Errorf("stride: %w", err)
	}
	dilation, err := cfg.dilation.single()
	if err != nil {
		return nil, fmt.Errorf("dilation: %w", err)
	}
	padding, err := cfg.padding.resolveSingle(kernelSize, stride, dilation)
	if err != nil {
		return nil, err
	}

	fanIn := (inChannels / cfg.groups) * kernelSize
	weight, err := kaimingUniform(torch.NewShape(outChannels, inChannels/cfg.groups, kernelSize), fanIn)
	if err != nil {
		return nil, err
	}

	layer := &Conv1d{
		weight:   weight,
		stride:   stride,
		padding:  padding,
		dilation: dilation,
		groups:   cfg.groups,
	}
	if cfg.bias {
		bias, err := kaimingUniform(torch.NewShape(outChannels), fanIn)
		if err != nil {
			_ = weight.Close()
			return nil, err
		}
		layer.bias = bias
	}
	return layer, nil
}

func (c *Conv1d) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.Conv1d(input, c.weight, c.bias, c.stride, c.padding, c.dilation, c.groups)
}

func (c *Conv1d) Parameters() []*Parameter {
	params := []*Parameter{{Name: "weight", Tensor: c.weight}}
	if c.bias != nil {
		params = append(params, &Parameter{Name: "bias", Tensor: c.bias})
	}
	return params
}

func (c *Conv1d) Close() error {
	return closeParameters(c.Parameters())
}
