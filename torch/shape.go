package torch

import (
	"fmt"
	"strconv"
	"strings"
	"unsafe"
)

// Shape represents the shape of a tensor.
type Shape []int64

// NewShape creates a new shape from dimensions.
func NewShape(dims ...int64) Shape {
	return Shape(dims)
}

// Numel returns the total element count, or an error for invalid dimensions.
func (s Shape) Numel() (int, error) {
	return shapeElementCount(s)
}

// ParseShape parses a comma-separated shape string (for example: "1,3,224,224").
func ParseShape(raw string) (Shape, error) {
	parts := strings.Split(raw, ",")
	shape := make(Shape, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("empty dimension")
		}

		dim, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse dimension %q: %w", part, err)
		}
		if dim < 0 {
			return nil, fmt.Errorf("negative dimension %d", dim)
		}
		shape = append(shape, dim)
	}

	return shape, nil
}

// Clone returns an independent copy of the shape.
func (s Shape) Clone() Shape {
	return cloneShape(s)
}

func cloneShape(shape Shape) Shape {
	if len(shape) == 0 {
		// Keep scalar tensors as non-nil empty shape (rank 0), not nil.
		return Shape{}
	}

	shapeCopy := make(Shape, len(shape))
	copy(shapeCopy, shape)
	return shapeCopy
}

func shapeElementCount(shape Shape) (int, error) {
	maxInt := int(^uint(0) >> 1)

	count := 1
	for i, dim := range shape {
		if dim < 0 {
			return 0, fmt.Errorf("invalid shape dimension at index %d: %d (must be >= 0)", i, dim)
		}

		if dim == 0 {
			count = 0
			continue
		}

		if count == 0 {
			continue
		}

		if dim > int64(maxInt) {
			return 0, fmt.Errorf("shape dimension at index %d is too large: %d", i, dim)
		}

		dimInt := int(dim)
		if count > maxInt/dimInt {
			return 0, fmt.Errorf("shape %v exceeds maximum supported element count", shape)
		}

		count *= dimInt
	}

	return count, nil
}

// ShapeElementCount returns the total element count for a shape.
// Dimensions must be non-negative; zero dimensions produce a count of zero.
func ShapeElementCount(shape Shape) (int, error) {
	return shapeElementCount(shape)
}

func shapePtr(shape Shape) uintptr {
	if len(shape) == 0 {
		return 0
	}
	// #nosec G103 -- Required for CGO-free FFI; the caller keeps the shape alive for the call.
	return uintptr(unsafe.Pointer(unsafe.SliceData(shape)))
}

func tensorDataByteSize(elementCount int, elementSize uintptr) (uintptr, error) {
	if elementCount < 0 {
		return 0, fmt.Errorf("element count cannot be negative: %d", elementCount)
	}
	if elementCount == 0 {
		return 0, nil
	}
	if elementSize == 0 {
		return 0, fmt.Errorf("element size cannot be zero")
	}

	count := uintptr(elementCount)
	if count > ^uintptr(0)/elementSize {
		return 0, fmt.Errorf("tensor data size overflow: %d elements with element size %d", elementCount, elementSize)
	}

	return count * elementSize, nil
}
