package nn

import (
	"fmt"

	"github.com/tensorware/pure-torch/torch"
)

// Linear applies an affine transform y = x W^T + b.
type Linear struct {
	weight *torch.Tensor
	bias   *torch.Tensor
}

type linearConfig struct {
	bias   bool
	xavier bool
}

// LinearOption customizes a linear layer.
type LinearOption func(*linearConfig)

// WithLinearBias controls whether the layer learns an additive bias.
func WithLinearBias(enabled bool) LinearOption {
	return func(c *linearConfig) { c.bias = enabled }
}

// WithXavierInit draws the weight with the Glorot bound
// sqrt(6/(fanIn+fanOut)) instead of the default Kaiming bound.
func WithXavierInit() LinearOption {
	return func(c *linearConfig) { c.xavier = true }
}

// NewLinear builds a fully connected layer with freshly initialized
// parameters.
func NewLinear(inFeatures, outFeatures int64, opts ...LinearOption) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("feature counts must be positive, got in=%d out=%d", inFeatures, outFeatures)
	}

	cfg := linearConfig{bias: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	shape := torch.NewShape(outFeatures, inFeatures)
	var weight *torch.Tensor
	var err error
	if cfg.xavier {
		weight, err = xavierUniform(shape, inFeatures, outFeatures)
	} else {
		weight, err = kaimingUniform(shape, inFeatures)
	}
	if err != nil {
		return nil, err
	}

	layer := &Linear{weight: weight}
	if cfg.bias {
		bias, err := kaimingUniform(torch.NewShape(outFeatures), inFeatures)
		if err != nil {
			_ = weight.Close()
			return nil, err
		}
		layer.bias = bias
	}
	return layer, nil
}

func (l *Linear) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.Linear(input, l.weight, l.bias)
}

func (l *Linear) Parameters() []*Parameter {
	params := []*Parameter{{Name: "weight", Tensor: l.weight}}
	if l.bias != nil {
		params = append(params, &Parameter{Name: "bias", Tensor: l.bias})
	}
	return params
}

func (l *Linear) Close() error {
	return closeParameters(l.Parameters())
}
