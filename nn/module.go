// Package nn provides stateful layer bindings on top of the torch
// package's canonical functional ops. Layers own their parameter
// tensors and release them through Close.
package nn

import (
	"fmt"

	"github.com/tensorware/pure-torch/torch"
)

// Module is a computation unit holding zero or more parameter tensors.
type Module interface {
	Forward(input *torch.Tensor) (*torch.Tensor, error)
	Parameters() []*Parameter
	Close() error
}

// Parameter pairs a learnable tensor with its name inside the owning
// module ("weight", "bias").
type Parameter struct {
	Name   string
	Tensor *torch.Tensor
}

// trainable is implemented by modules whose forward pass differs
// between training and inference.
type trainable interface {
	SetTraining(training bool)
}

// Sequential composes modules, feeding each output into the next.
type Sequential struct {
	modules []Module
}

// NewSequential builds a sequential container over the given modules.
// The container takes ownership: closing it closes every child.
func NewSequential(modules ...Module) *Sequential {
	return &Sequential{modules: modules}
}

// Append adds modules to the end of the chain.
func (s *Sequential) Append(modules ...Module) {
	s.modules = append(s.modules, modules...)
}

// Len returns the number of child modules.
func (s *Sequential) Len() int {
	return len(s.modules)
}

// Forward threads the input through every child in order. Intermediate
// tensors are closed as soon as the next child has consumed them; the
// input is left untouched and the final output belongs to the caller.
func (s *Sequential) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	current := input
	for i, m := range s.modules {
		next, err := m.Forward(current)
		if current != input {
			_ = current.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("sequential module %d: %w", i, err)
		}
		current = next
	}
	if current == input {
		return input.Clone()
	}
	return current, nil
}

// Parameters returns every child's parameters with the child index
// prefixed to the name ("0.weight").
func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for i, m := range s.modules {
		for _, p := range m.Parameters() {
			params = append(params, &Parameter{
				Name:   fmt.Sprintf("%d.%s", i, p.Name),
				Tensor: p.Tensor,
			})
		}
	}
	return params
}

// SetTraining propagates the training mode to every child that
// distinguishes modes.
func (s *Sequential) SetTraining(training bool) {
	for _, m := range s.modules {
		if t, ok := m.(trainable); ok {
			t.SetTraining(training)
		}
	}
}

// Train puts the container in training mode.
func (s *Sequential) Train() { s.SetTraining(true) }

// Eval puts the container in inference mode.
func (s *Sequential) Eval() { s.SetTraining(false) }

// Close releases every child module. The first error encountered is
// returned after all children have been visited.
func (s *Sequential) Close() error {
	var firstErr error
	for _, m := range s.modules {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// closeParameters releases the given parameter tensors, keeping the
// first error.
func closeParameters(params []*Parameter) error {
	var firstErr error
	for _, p := range params {
		if p.Tensor == nil {
			continue
		}
		if err := p.Tensor.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
