package torch

// ScalarType identifies the element type of a tensor.
// Values match the native library's scalar-type enumeration.
type ScalarType int32

const (
	Byte          ScalarType = 0
	Int8          ScalarType = 1
	Int16         ScalarType = 2
	Int32         ScalarType = 3
	Int64         ScalarType = 4
	Half          ScalarType = 5
	Float32       ScalarType = 6
	Float64       ScalarType = 7
	ComplexHalf   ScalarType = 8
	ComplexFloat  ScalarType = 9
	ComplexDouble ScalarType = 10
	Bool          ScalarType = 11
	BFloat16      ScalarType = 15

	// InvalidScalarType is returned when a scalar type cannot be determined.
	InvalidScalarType ScalarType = -1
)

// String returns the conventional short name for the scalar type.
func (s ScalarType) String() string {
	switch s {
	case Byte:
		return "uint8"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Half:
		return "float16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case ComplexHalf:
		return "complex32"
	case ComplexFloat:
		return "complex64"
	case ComplexDouble:
		return "complex128"
	case Bool:
		return "bool"
	case BFloat16:
		return "bfloat16"
	default:
		return "invalid"
	}
}

// ElementSize returns the byte size of one element, or 0 for unknown types.
func (s ScalarType) ElementSize() int {
	switch s {
	case Byte, Int8, Bool:
		return 1
	case Int16, Half, BFloat16:
		return 2
	case Int32, Float32, ComplexHalf:
		return 4
	case Int64, Float64, ComplexFloat:
		return 8
	case ComplexDouble:
		return 16
	default:
		return 0
	}
}

// DeviceKind identifies where a tensor lives.
// Values match the native library's device-type enumeration.
type DeviceKind int32

const (
	KindCPU  DeviceKind = 0
	KindCUDA DeviceKind = 1
)

// String returns the conventional device-kind name.
func (k DeviceKind) String() string {
	switch k {
	case KindCPU:
		return "cpu"
	case KindCUDA:
		return "cuda"
	default:
		return "unknown"
	}
}

// EmbeddingBagMode selects how an embedding bag reduces each bag.
type EmbeddingBagMode int32

const (
	EmbeddingBagSum  EmbeddingBagMode = 0
	EmbeddingBagMean EmbeddingBagMode = 1
	EmbeddingBagMax  EmbeddingBagMode = 2
)

// String returns the reduction name.
func (m EmbeddingBagMode) String() string {
	switch m {
	case EmbeddingBagSum:
		return "sum"
	case EmbeddingBagMean:
		return "mean"
	case EmbeddingBagMax:
		return "max"
	default:
		return "unknown"
	}
}
