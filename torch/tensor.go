package torch

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"
)

// Tensor owns exactly one native tensor handle.
//
// Close releases the handle exactly once; a finalizer is installed as a
// safety net for callers that forget. Every method on a closed tensor
// returns ErrClosed. Tensors are safe for concurrent reads, but Close must
// not race with an in-flight native call on the same tensor.
type Tensor struct {
	mu     sync.Mutex
	handle uintptr
}

// TensorElement is the set of Go element types this binding can marshal.
type TensorElement interface {
	~uint8 | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64 | ~bool
}

func scalarTypeOf[T TensorElement]() ScalarType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return Byte
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case float32:
		return Float32
	case float64:
		return Float64
	case bool:
		return Bool
	default:
		return InvalidScalarType
	}
}

func newTensor(handle uintptr) *Tensor {
	t := &Tensor{handle: handle}

	// Finalizer is a safety net to avoid leaking the native tensor if
	// callers forget Close().
	runtime.SetFinalizer(t, func(t *Tensor) {
		_ = t.Close()
	})

	return t
}

// wrapHandle converts a raw native handle into an owned Tensor. A zero
// handle is rejected; this is the constructor used by jit and nn when the
// native side hands back tensors.
func wrapHandle(handle uintptr) (*Tensor, error) {
	if handle == 0 {
		return nil, fmt.Errorf("cannot wrap a null tensor handle")
	}
	return newTensor(handle), nil
}

// h returns the live handle or ErrClosed.
func (t *Tensor) h() (uintptr, error) {
	if t == nil {
		return 0, ErrClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.handle == 0 {
		return 0, ErrClosed
	}
	return t.handle, nil
}

// Close releases the native tensor. It is idempotent: closing twice (or
// closing a nil tensor) is a no-op returning nil.
func (t *Tensor) Close() error {
	if t == nil {
		return nil
	}

	t.mu.Lock()
	handle := t.handle
	t.handle = 0
	t.mu.Unlock()

	if handle == 0 {
		return nil
	}
	runtime.SetFinalizer(t, nil)

	n, err := api()
	if err != nil {
		// Runtime already torn down; the native side owns nothing anymore.
		return nil
	}
	n.tensorDispose(handle)
	return nil
}

// tensorOptions collects factory configuration.
type tensorOptions struct {
	dtype        ScalarType
	device       Device
	requiresGrad bool
	generator    *Generator
}

// TensorOption customizes tensor factories.
type TensorOption func(*tensorOptions)

// WithDtype sets the element type of a factory tensor. Default is Float32.
func WithDtype(dtype ScalarType) TensorOption {
	return func(o *tensorOptions) { o.dtype = dtype }
}

// WithDevice places the factory tensor on the given device. Default is CPU.
func WithDevice(device Device) TensorOption {
	return func(o *tensorOptions) { o.device = device }
}

// WithRequiresGrad marks the tensor as requiring gradient tracking.
func WithRequiresGrad(requiresGrad bool) TensorOption {
	return func(o *tensorOptions) { o.requiresGrad = requiresGrad }
}

// WithGenerator makes Rand/Randn draw from the given generator instead of
// the native default.
func WithGenerator(g *Generator) TensorOption {
	return func(o *tensorOptions) { o.generator = g }
}

func resolveTensorOptions(opts []TensorOption) tensorOptions {
	o := tensorOptions{dtype: Float32, device: CPU}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// FromSlice creates a tensor by copying data into native storage.
//
// The element type is inferred from T. The Go backing array is pinned only
// for the duration of the native call; the native side copies the buffer,
// so the slice can be mutated or collected afterwards.
func FromSlice[T TensorElement](shape Shape, data []T) (*Tensor, error) {
	dtype := scalarTypeOf[T]()
	if dtype == InvalidScalarType {
		var zero T
		return nil, fmt.Errorf("unsupported tensor element type %T", zero)
	}

	shapeCopy := cloneShape(shape)
	elementCount, err := shapeElementCount(shapeCopy)
	if err != nil {
		return nil, err
	}
	if len(data) != elementCount {
		return nil, fmt.Errorf("data length mismatch: got %d elements, expected %d for shape %v", len(data), elementCount, shapeCopy)
	}
	var zero T
	if _, err := tensorDataByteSize(elementCount, unsafe.Sizeof(zero)); err != nil {
		return nil, err
	}

	n, err := api()
	if err != nil {
		return nil, err
	}

	var dataPtr uintptr
	if len(data) > 0 {
		pinner := &runtime.Pinner{}
		pinner.Pin(unsafe.SliceData(data))
		defer pinner.Unpin()
		// #nosec G103 -- Required for CGO-free FFI; backing array is pinned for the call.
		dataPtr = uintptr(unsafe.Pointer(unsafe.SliceData(data)))
	}

	handle := n.tensorNew(dataPtr, shapePtr(shapeCopy), int64(len(shapeCopy)), int32(dtype))
	// The shim reads sizes and copies the data synchronously during the call.
	runtime.KeepAlive(shapeCopy)
	runtime.KeepAlive(data)
	if handle == 0 {
		return nil, lastError(n, "THSTensor_new")
	}

	return newTensor(handle), nil
}

type shapeFactory func(n *nativeAPI, sizes uintptr, ndim int64, o tensorOptions) uintptr

func makeShaped(op string, shape Shape, opts []TensorOption, call shapeFactory) (*Tensor, error) {
	o := resolveTensorOptions(opts)

	shapeCopy := cloneShape(shape)
	if _, err := shapeElementCount(shapeCopy); err != nil {
		return nil, err
	}

	n, err := api()
	if err != nil {
		return nil, err
	}

	handle := call(n, shapePtr(shapeCopy), int64(len(shapeCopy)), o)
	runtime.KeepAlive(shapeCopy)
	if handle == 0 {
		return nil, lastError(n, op)
	}
	return newTensor(handle), nil
}

// Empty creates an uninitialized tensor with the given shape.
func Empty(shape Shape, opts ...TensorOption) (*Tensor, error) {
	return makeShaped("THSTensor_empty", shape, opts, func(n *nativeAPI, sizes uintptr, ndim int64, o tensorOptions) uintptr {
		return n.tensorEmpty(sizes, ndim, int32(o.dtype), int32(o.device.Kind), int32(o.device.Index), o.requiresGrad)
	})
}

// Zeros creates a zero-filled tensor with the given shape.
func Zeros(shape Shape, opts ...TensorOption) (*Tensor, error) {
	return makeShaped("THSTensor_zeros", shape, opts, func(n *nativeAPI, sizes uintptr, ndim int64, o tensorOptions) uintptr {
		return n.tensorZeros(sizes, ndim, int32(o.dtype), int32(o.device.Kind), int32(o.device.Index), o.requiresGrad)
	})
}

// Ones creates a one-filled tensor with the given shape.
func Ones(shape Shape, opts ...TensorOption) (*Tensor, error) {
	return makeShaped("THSTensor_ones", shape, opts, func(n *nativeAPI, sizes uintptr, ndim int64, o tensorOptions) uintptr {
		return n.tensorOnes(sizes, ndim, int32(o.dtype), int32(o.device.Kind), int32(o.device.Index), o.requiresGrad)
	})
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64, opts ...TensorOption) (*Tensor, error) {
	return makeShaped("THSTensor_full", shape, opts, func(n *nativeAPI, sizes uintptr, ndim int64, o tensorOptions) uintptr {
		return n.tensorFull(sizes, ndim, value, int32(o.dtype), int32(o.device.Kind), int32(o.device.Index))
	})
}

// Rand creates a tensor of uniform samples in [0, 1).
func Rand(shape Shape, opts ...TensorOption) (*Tensor, error) {
	return makeShaped("THSTensor_rand", shape, opts, func(n *nativeAPI, sizes uintptr, ndim int64, o tensorOptions) uintptr {
		return n.tensorRand(o.generator.handleOrZero(), sizes, ndim, int32(o.dtype), int32(o.device.Kind), int32(o.device.Index), o.requiresGrad)
	})
}

// Randn creates a tensor of standard-normal samples.
func Randn(shape Shape, opts ...TensorOption) (*Tensor, error) {
	return makeShaped("THSTensor_randn", shape, opts, func(n *nativeAPI, sizes uintptr, ndim int64, o tensorOptions) uintptr {
		return n.tensorRandn(o.generator.handleOrZero(), sizes, ndim, int32(o.dtype), int32(o.device.Kind), int32(o.device.Index), o.requiresGrad)
	})
}

// Arange creates a 1-D tensor of values in [start, end) spaced by step.
func Arange(start, end, step float64, opts ...TensorOption) (*Tensor, error) {
	if step == 0 {
		return nil, fmt.Errorf("arange step cannot be zero")
	}

	o := resolveTensorOptions(opts)
	n, err := api()
	if err != nil {
		return nil, err
	}

	handle := n.tensorArange(start, end, step, int32(o.dtype), int32(o.device.Kind), int32(o.device.Index))
	if handle == 0 {
		return nil, lastError(n, "THSTensor_arange")
	}
	return newTensor(handle), nil
}

// Shape returns the tensor shape, queried from the native side.
func (t *Tensor) Shape() (Shape, error) {
	handle, err := t.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	ndim := n.tensorNdim(handle)
	shape := make(Shape, ndim)
	for i := int64(0); i < ndim; i++ {
		shape[i] = n.tensorSize(handle, i)
	}
	runtime.KeepAlive(t)
	return shape, nil
}

// Dim returns the number of dimensions.
func (t *Tensor) Dim() (int64, error) {
	handle, err := t.h()
	if err != nil {
		return 0, err
	}
	n, err := api()
	if err != nil {
		return 0, err
	}
	ndim := n.tensorNdim(handle)
	runtime.KeepAlive(t)
	return ndim, nil
}

// Numel returns the total element count.
func (t *Tensor) Numel() (int64, error) {
	handle, err := t.h()
	if err != nil {
		return 0, err
	}
	n, err := api()
	if err != nil {
		return 0, err
	}
	numel := n.tensorNumel(handle)
	runtime.KeepAlive(t)
	return numel, nil
}

// Dtype returns the element type.
func (t *Tensor) Dtype() (ScalarType, error) {
	handle, err := t.h()
	if err != nil {
		return InvalidScalarType, err
	}
	n, err := api()
	if err != nil {
		return InvalidScalarType, err
	}
	dtype := ScalarType(n.tensorType(handle))
	runtime.KeepAlive(t)
	return dtype, nil
}

// Device returns the device the tensor lives on.
func (t *Tensor) Device() (Device, error) {
	handle, err := t.h()
	if err != nil {
		return Device{}, err
	}
	n, err := api()
	if err != nil {
		return Device{}, err
	}
	device := Device{
		Kind:  DeviceKind(n.tensorDeviceType(handle)),
		Index: int(n.tensorDeviceIndex(handle)),
	}
	runtime.KeepAlive(t)
	return device, nil
}

// RequiresGrad reports whether autograd tracks this tensor.
func (t *Tensor) RequiresGrad() (bool, error) {
	handle, err := t.h()
	if err != nil {
		return false, err
	}
	n, err := api()
	if err != nil {
		return false, err
	}
	requires := n.tensorRequiresGrad(handle)
	runtime.KeepAlive(t)
	return requires, nil
}

// SetRequiresGrad toggles autograd tracking on this tensor.
func (t *Tensor) SetRequiresGrad(requiresGrad bool) error {
	handle, err := t.h()
	if err != nil {
		return err
	}
	n, err := api()
	if err != nil {
		return err
	}
	n.tensorSetRequiresGrad(handle, requiresGrad)
	runtime.KeepAlive(t)
	return checkErr(n, "THSTensor_set_requires_grad")
}

// Data copies the tensor contents into a new Go slice.
//
// The tensor's element type must match T; a mismatch is rejected on the Go
// side before crossing the boundary. Non-contiguous tensors are rejected by
// the native side.
func Data[T TensorElement](t *Tensor) ([]T, error) {
	want := scalarTypeOf[T]()
	if want == InvalidScalarType {
		var zero T
		return nil, fmt.Errorf("unsupported tensor element type %T", zero)
	}

	handle, err := t.h()
	if err != nil {
		return nil, err
	}
	n, err := api()
	if err != nil {
		return nil, err
	}

	got := ScalarType(n.tensorType(handle))
	if got != want {
		return nil, fmt.Errorf("dtype mismatch: tensor is %s, requested %s", got, want)
	}

	numel := n.tensorNumel(handle)
	out := make([]T, numel)
	if numel == 0 {
		return out, nil
	}

	dataPtr := n.tensorData(handle)
	if dataPtr == 0 {
		return nil, lastError(n, "THSTensor_data")
	}
	// The native buffer stays valid while the handle is live; copy out
	// before the tensor can be released.
	src := unsafe.Slice((*T)(unsafe.Pointer(dataPtr)), numel)
	copy(out, src)
	runtime.KeepAlive(t)
	return out, nil
}

// Float32s copies out a float32 tensor's contents.
func (t *Tensor) Float32s() ([]float32, error) { return Data[float32](t) }

// Float64s copies out a float64 tensor's contents.
func (t *Tensor) Float64s() ([]float64, error) { return Data[float64](t) }

// Int32s copies out an int32 tensor's contents.
func (t *Tensor) Int32s() ([]int32, error) { return Data[int32](t) }

// Int64s copies out an int64 tensor's contents.
func (t *Tensor) Int64s() ([]int64, error) { return Data[int64](t) }

// Item returns the value of a single-element float tensor.
func (t *Tensor) Item() (float64, error) {
	handle, err := t.h()
	if err != nil {
		return 0, err
	}
	n, err := api()
	if err != nil {
		return 0, err
	}
	value := n.tensorItemFloat(handle)
	runtime.KeepAlive(t)
	return value, checkErr(n, "THSTensor_item_float64")
}

// ItemInt returns the value of a single-element integer tensor.
func (t *Tensor) ItemInt() (int64, error) {
	handle, err := t.h()
	if err != nil {
		return 0, err
	}
	n, err := api()
	if err != nil {
		return 0, err
	}
	value := n.tensorItemInt(handle)
	runtime.KeepAlive(t)
	return value, checkErr(n, "THSTensor_item_int64")
}
