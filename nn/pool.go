package nn

import (
	"fmt"

	"github.com/tensorware/pure-torch/torch"
)

type poolConfig struct {
	stride          Size
	padding         Padding
	dilation        Size
	ceilMode        bool
	countIncludePad bool
}

// PoolOption customizes a pooling layer.
type PoolOption func(*poolConfig)

// WithPoolStride sets the pooling stride. The default stride equals the
// kernel extent.
func WithPoolStride(s Size) PoolOption {
	return func(c *poolConfig) { c.stride = s }
}

// WithPoolPadding sets the pooling padding.
func WithPoolPadding(p Padding) PoolOption {
	return func(c *poolConfig) { c.padding = p }
}

// WithPoolDilation sets the window dilation. Only max pooling supports
// dilation.
func WithPoolDilation(s Size) PoolOption {
	return func(c *poolConfig) { c.dilation = s }
}

// WithCeilMode rounds output extents up instead of down.
func WithCeilMode(enabled bool) PoolOption {
	return func(c *poolConfig) { c.ceilMode = enabled }
}

// WithCountIncludePad includes zero padding in average pooling counts.
func WithCountIncludePad(enabled bool) PoolOption {
	return func(c *poolConfig) { c.countIncludePad = enabled }
}

func resolvePoolConfig(kernel Size, opts []PoolOption) (kernelPair, stridePair, paddingPair, dilationPair [2]int64, cfg poolConfig, err error) {
	cfg = poolConfig{padding: Valid, dilation: Size{1}}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.stride == nil {
		cfg.stride = kernel
	}

	if err = kernel.positive("kernel"); err != nil {
		return
	}
	if err = cfg.stride.positive("stride"); err != nil {
		return
	}
	if err = cfg.dilation.positive("dilation"); err != nil {
		return
	}

	if kernelPair, err = kernel.pair(); err != nil {
		err = fmt.Errorf("kernel: %w", err)
		return
	}
	if stridePair, err = cfg.stride.pair(); err != nil {
		err = fmt.Errorf("stride: %w", err)
		return
	}
	if dilationPair, err = cfg.dilation.pair(); err != nil {
		err = fmt.Errorf("dilation: %w", err)
		return
	}
	paddingPair, err = cfg.padding.resolvePair(kernelPair, stridePair, dilationPair)
	return
}

// MaxPool2d applies 2-D max pooling over an NCHW input.
type MaxPool2d struct {
	kernel   [2]int64
	stride   [2]int64
	padding  [2]int64
	dilation [2]int64
	ceilMode bool
}

// NewMaxPool2d builds a max pooling layer.
func NewMaxPool2d(kernel Size, opts ...PoolOption) (*MaxPool2d, error) {
	kernelPair, stridePair, paddingPair, dilationPair, cfg, err := resolvePoolConfig(kernel, opts)
	if err != nil {
		return nil, err
	}
	return &MaxPool2d{
		kernel:   kernelPair,
		stride:   stridePair,
		padding:  paddingPair,
		dilation: dilationPair,
		ceilMode: cfg.ceilMode,
	}, nil
}

func (p *MaxPool2d) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.MaxPool2d(input, p.kernel, p.stride, p.padding, p.dilation, p.ceilMode)
}

func (p *MaxPool2d) Parameters() []*Parameter { return nil }

func (p *MaxPool2d) Close() error { return nil }

// AvgPool2d applies 2-D average pooling over an NCHW input.
type AvgPool2d struct {
	kernel          [2]int64
	stride          [2]int64
	padding         [2]int64
	ceilMode        bool
	countIncludePad bool
}

// NewAvgPool2d builds an average pooling layer.
func NewAvgPool2d(kernel Size, opts ...PoolOption) (*AvgPool2d, error) {
	kernelPair, stridePair, paddingPair, dilationPair, cfg, err := resolvePoolConfig(kernel, opts)
	if err != nil {
		return nil, err
	}
	if dilationPair != [2]int64{1, 1} {
		return nil, fmt.Errorf("average pooling does not support dilation")
	}
	return &AvgPool2d{
		kernel:          kernelPair,
		stride:          stridePair,
		padding:         paddingPair,
		ceilMode:        cfg.ceilMode,
		countIncludePad: cfg.countIncludePad,
	}, nil
}

func (p *AvgPool2d) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.AvgPool2d(input, p.kernel, p.stride, p.padding, p.ceilMode, p.countIncludePad)
}

func (p *AvgPool2d) Parameters() []*Parameter { return nil }

func (p *AvgPool2d) Close() error { return nil }

// AdaptiveAvgPool2d pools an NCHW input down to a fixed spatial extent.
type AdaptiveAvgPool2d struct {
	outputSize [2]int64
}

// NewAdaptiveAvgPool2d builds an adaptive average pooling layer
// producing the given output extent.
func NewAdaptiveAvgPool2d(outputSize Size) (*AdaptiveAvgPool2d, error) {
	if err := outputSize.positive("output size"); err != nil {
		return nil, err
	}
	pair, err := outputSize.pair()
	if err != nil {
		return nil, fmt.Errorf("output size: %w", err)
	}
	return &AdaptiveAvgPool2d{outputSize: pair}, nil
}

func (p *AdaptiveAvgPool2d) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.AdaptiveAvgPool2d(input, p.outputSize)
}

func (p *AdaptiveAvgPool2d) Parameters() []*Parameter { return nil }

func (p *AdaptiveAvgPool2d) Close() error { return nil }
