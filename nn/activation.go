package nn

import (
	"fmt"

	"github.com/tensorware/pure-torch/torch"
)

// ReLU applies the rectified linear unit element-wise.
type ReLU struct{}

// NewReLU builds a ReLU activation.
func NewReLU() *ReLU {
	return &ReLU{}
}

func (r *ReLU) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return input.Relu()
}

func (r *ReLU) Parameters() []*Parameter { return nil }

func (r *ReLU) Close() error { return nil }

// Dropout randomly zeroes elements with probability p during training
// and passes the input through unchanged during inference.
type Dropout struct {
	p        float64
	training bool
}

// NewDropout builds a dropout layer. The layer starts in training mode.
func NewDropout(p float64) (*Dropout, error) {
	if p < 0 || p >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %g", p)
	}
	return &Dropout{p: p, training: true}, nil
}

func (d *Dropout) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	return torch.Dropout(input, d.p, d.training)
}

// SetTraining toggles between dropping and pass-through.
func (d *Dropout) SetTraining(training bool) {
	d.training = training
}

func (d *Dropout) Parameters() []*Parameter { return nil }

func (d *Dropout) Close() error { return nil }
