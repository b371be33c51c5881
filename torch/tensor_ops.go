package torch

import (
	"fmt"
	"runtime"
)

// unaryOp runs a handle-in/handle-out native call and wraps the result.
func (t *Tensor) unaryOp(op string, call func(n *nativeAPI, h uintptr) uintptr) (*Tensor, error) {
	handle, err := t.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := call(n, handle)
	runtime.KeepAlive(t)
	if result == 0 {
		return nil, lastError(n, op)
	}
	return newTensor(result), nil
}

// binaryOp runs a two-handle native call and wraps the result.
func (t *Tensor) binaryOp(op string, other *Tensor, call func(n *nativeAPI, left, right uintptr) uintptr) (*Tensor, error) {
	left, err := t.h()
	if err != nil {
		return nil, err
	}
	right, err := other.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	result := call(n, left, right)
	runtime.KeepAlive(t)
	runtime.KeepAlive(other)
	if result == 0 {
		return nil, lastError(n, op)
	}
	return newTensor(result), nil
}

// Add returns t + other.
func (t *Tensor) Add(other *Tensor) (*Tensor, error) {
	return t.binaryOp("THSTensor_add", other, func(n *nativeAPI, l, r uintptr) uintptr { return n.tensorAdd(l, r) })
}

// Sub returns t - other.
func (t *Tensor) Sub(other *Tensor) (*Tensor, error) {
	return t.binaryOp("THSTensor_sub", other, func(n *nativeAPI, l, r uintptr) uintptr { return n.tensorSub(l, r) })
}

// Mul returns the elementwise product t * other.
func (t *Tensor) Mul(other *Tensor) (*Tensor, error) {
	return t.binaryOp("THSTensor_mul", other, func(n *nativeAPI, l, r uintptr) uintptr { return n.tensorMul(l, r) })
}

// Div returns the elementwise quotient t / other.
func (t *Tensor) Div(other *Tensor) (*Tensor, error) {
	return t.binaryOp("THSTensor_div", other, func(n *nativeAPI, l, r uintptr) uintptr { return n.tensorDiv(l, r) })
}

// MatMul returns the matrix product of t and other.
func (t *Tensor) MatMul(other *Tensor) (*Tensor, error) {
	return t.binaryOp("THSTensor_matmul", other, func(n *nativeAPI, l, r uintptr) uintptr { return n.tensorMatmul(l, r) })
}

// AddScalar returns t + value (broadcast).
func (t *Tensor) AddScalar(value float64) (*Tensor, error) {
	return t.unaryOp("THSTensor_add_scalar", func(n *nativeAPI, h uintptr) uintptr { return n.tensorAddScalar(h, value) })
}

// MulScalar returns t * value (broadcast).
func (t *Tensor) MulScalar(value float64) (*Tensor, error) {
	return t.unaryOp("THSTensor_mul_scalar", func(n *nativeAPI, h uintptr) uintptr { return n.tensorMulScalar(h, value) })
}

// Reshape returns a tensor with the same data and the given shape.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	shapeCopy := cloneShape(shape)
	result, err := t.unaryOp("THSTensor_reshape", func(n *nativeAPI, h uintptr) uintptr {
		return n.tensorReshape(h, shapePtr(shapeCopy), int64(len(shapeCopy)))
	})
	runtime.KeepAlive(shapeCopy)
	return result, err
}

// Permute returns a view with dimensions reordered per dims.
func (t *Tensor) Permute(dims ...int64) (*Tensor, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("permute requires at least one dimension")
	}
	dimsCopy := make([]int64, len(dims))
	copy(dimsCopy, dims)
	result, err := t.unaryOp("THSTensor_permute", func(n *nativeAPI, h uintptr) uintptr {
		return n.tensorPermute(h, shapePtr(Shape(dimsCopy)), int64(len(dimsCopy)))
	})
	runtime.KeepAlive(dimsCopy)
	return result, err
}

// Transpose returns a view with dim0 and dim1 swapped.
func (t *Tensor) Transpose(dim0, dim1 int64) (*Tensor, error) {
	return t.unaryOp("THSTensor_transpose", func(n *nativeAPI, h uintptr) uintptr { return n.tensorTranspose(h, dim0, dim1) })
}

// Flatten collapses dimensions startDim through endDim into one.
func (t *Tensor) Flatten(startDim, endDim int64) (*Tensor, error) {
	return t.unaryOp("THSTensor_flatten", func(n *nativeAPI, h uintptr) uintptr { return n.tensorFlatten(h, startDim, endDim) })
}

// Squeeze removes dimension dim if it has size 1.
func (t *Tensor) Squeeze(dim int64) (*Tensor, error) {
	return t.unaryOp("THSTensor_squeeze", func(n *nativeAPI, h uintptr) uintptr { return n.tensorSqueeze(h, dim) })
}

// Unsqueeze inserts a size-1 dimension at dim.
func (t *Tensor) Unsqueeze(dim int64) (*Tensor, error) {
	return t.unaryOp("THSTensor_unsqueeze", func(n *nativeAPI, h uintptr) uintptr { return n.tensorUnsqueeze(h, dim) })
}

// Sum reduces all elements to a scalar tensor.
func (t *Tensor) Sum() (*Tensor, error) {
	return t.unaryOp("THSTensor_sum", func(n *nativeAPI, h uintptr) uintptr { return n.tensorSum(h) })
}

// Mean reduces all elements to their scalar mean.
func (t *Tensor) Mean() (*Tensor, error) {
	return t.unaryOp("THSTensor_mean", func(n *nativeAPI, h uintptr) uintptr { return n.tensorMean(h) })
}

// Argmax returns the index of the maximum along dim.
func (t *Tensor) Argmax(dim int64, keepDim bool) (*Tensor, error) {
	return t.unaryOp("THSTensor_argmax", func(n *nativeAPI, h uintptr) uintptr { return n.tensorArgmax(h, dim, keepDim) })
}

// Softmax applies softmax along dim.
func (t *Tensor) Softmax(dim int64) (*Tensor, error) {
	return t.unaryOp("THSTensor_softmax", func(n *nativeAPI, h uintptr) uintptr { return n.tensorSoftmax(h, dim) })
}

// Relu applies the rectified linear unit elementwise.
func (t *Tensor) Relu() (*Tensor, error) {
	return t.unaryOp("THSTensor_relu", func(n *nativeAPI, h uintptr) uintptr { return n.tensorRelu(h) })
}

// Clone returns a deep copy.
func (t *Tensor) Clone() (*Tensor, error) {
	return t.unaryOp("THSTensor_clone", func(n *nativeAPI, h uintptr) uintptr { return n.tensorClone(h) })
}

// Detach returns a view detached from the autograd graph.
func (t *Tensor) Detach() (*Tensor, error) {
	return t.unaryOp("THSTensor_detach", func(n *nativeAPI, h uintptr) uintptr { return n.tensorDetach(h) })
}

// Contiguous returns a tensor with contiguous native storage.
func (t *Tensor) Contiguous() (*Tensor, error) {
	return t.unaryOp("THSTensor_contiguous", func(n *nativeAPI, h uintptr) uintptr { return n.tensorContiguous(h) })
}

// To moves the tensor to the given device.
func (t *Tensor) To(device Device) (*Tensor, error) {
	return t.unaryOp("THSTensor_to_device", func(n *nativeAPI, h uintptr) uintptr {
		return n.tensorToDevice(h, int32(device.Kind), int32(device.Index))
	})
}

// ToDtype converts the tensor to the given element type.
func (t *Tensor) ToDtype(dtype ScalarType) (*Tensor, error) {
	return t.unaryOp("THSTensor_to_type", func(n *nativeAPI, h uintptr) uintptr { return n.tensorToType(h, int32(dtype)) })
}

// Equal reports exact equality of shape and values.
func (t *Tensor) Equal(other *Tensor) (bool, error) {
	left, err := t.h()
	if err != nil {
		return false, err
	}
	right, err := other.h()
	if err != nil {
		return false, err
	}
	n, err := api()
	if err != nil {
		return false, err
	}

	equal := n.tensorEqual(left, right)
	runtime.KeepAlive(t)
	runtime.KeepAlive(other)
	return equal, checkErr(n, "THSTensor_equal")
}

// AllClose reports approximate elementwise equality.
func (t *Tensor) AllClose(other *Tensor, rtol, atol float64) (bool, error) {
	left, err := t.h()
	if err != nil {
		return false, err
	}
	right, err := other.h()
	if err != nil {
		return false, err
	}
	n, err := api()
	if err != nil {
		return false, err
	}

	close := n.tensorAllClose(left, right, rtol, atol)
	runtime.KeepAlive(t)
	runtime.KeepAlive(other)
	return close, checkErr(n, "THSTensor_allclose")
}
