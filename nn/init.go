package nn

import (
	"fmt"
	"math"

	"github.com/tensorware/pure-torch/torch"
)

// uniformTensor draws a tensor with elements uniform in [-bound, bound).
func uniformTensor(shape torch.Shape, bound float64, opts ...torch.TensorOption) (*torch.Tensor, error) {
	raw, err := torch.Rand(shape, opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = raw.Close() }()

	scaled, err := raw.MulScalar(2 * bound)
	if err != nil {
		return nil, err
	}
	defer func() { _ = scaled.Close() }()

	return scaled.AddScalar(-bound)
}

// kaimingUniform initializes a weight tensor the way the reference
// convolution and linear layers do: uniform with bound 1/sqrt(fanIn).
func kaimingUniform(shape torch.Shape, fanIn int64, opts ...torch.TensorOption) (*torch.Tensor, error) {
	if fanIn <= 0 {
		return nil, fmt.Errorf("fan-in must be positive, got %d", fanIn)
	}
	return uniformTensor(shape, 1/math.Sqrt(float64(fanIn)), opts...)
}

// xavierUniform initializes a weight tensor with the Glorot bound
// sqrt(6/(fanIn+fanOut)).
func xavierUniform(shape torch.Shape, fanIn, fanOut int64, opts ...torch.TensorOption) (*torch.Tensor, error) {
	if fanIn <= 0 || fanOut <= 0 {
		return nil, fmt.Errorf("fan-in and fan-out must be positive, got %d and %d", fanIn, fanOut)
	}
	return uniformTensor(shape, math.Sqrt(6/float64(fanIn+fanOut)), opts...)
}

// normalTensor draws a tensor with elements from N(mean, std^2).
func normalTensor(shape torch.Shape, mean, std float64, opts ...torch.TensorOption) (*torch.Tensor, error) {
	raw, err := torch.Randn(shape, opts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = raw.Close() }()

	scaled, err := raw.MulScalar(std)
	if err != nil {
		return nil, err
	}
	defer func() { _ = scaled.Close() }()

	return scaled.AddScalar(mean)
}
