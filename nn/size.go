package nn

import "fmt"

// Size describes a kernel, stride or dilation extent per spatial
// dimension. A single-element Size broadcasts to both dimensions of a
// 2-D op.
type Size []int64

// Size1 builds a one-dimensional extent.
func Size1(k int64) Size {
	return Size{k}
}

// Size2 builds a two-dimensional extent with distinct height and width.
func Size2(h, w int64) Size {
	return Size{h, w}
}

// Square builds a two-dimensional extent with equal height and width.
// Square(k) is identical to Size2(k, k).
func Square(k int64) Size {
	return Size{k, k}
}

// pair resolves the size to a height/width pair, broadcasting a single
// element across both dimensions.
func (s Size) pair() ([2]int64, error) {
	switch len(s) {
	case 1:
		return [2]int64{s[0], s[0]}, nil
	case 2:
		return [2]int64{s[0], s[1]}, nil
	default:
		return [2]int64{}, fmt.Errorf("size must have one or two dimensions, got %d", len(s))
	}
}

// single resolves the size to a single extent for 1-D ops.
func (s Size) single() (int64, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("size must have exactly one dimension, got %d", len(s))
	}
	return s[0], nil
}

func (s Size) positive(what string) error {
	if len(s) == 0 {
		return fmt.Errorf("%s cannot be empty", what)
	}
	for _, v := range s {
		if v <= 0 {
			return fmt.Errorf("%s values must be positive, got %d", what, v)
		}
	}
	return nil
}
