package nn

import "fmt"

type paddingMode int

const (
	paddingExplicit paddingMode = iota
	paddingSame
	paddingValid
)

// Padding selects how much zero padding a convolution or pooling layer
// applies. Use Same or Valid for the common cases, or PaddingOf for an
// explicit amount per dimension.
type Padding struct {
	mode   paddingMode
	values Size
}

// Same pads so the output keeps the input's spatial extent. Requires
// stride 1 and a symmetric effective kernel.
var Same = Padding{mode: paddingSame}

// Valid applies no padding.
var Valid = Padding{mode: paddingValid}

// PaddingOf pads by the given amount per spatial dimension. A single
// value broadcasts across both dimensions of a 2-D op.
func PaddingOf(values ...int64) Padding {
	return Padding{mode: paddingExplicit, values: Size(values)}
}

func (p Padding) String() string {
	switch p.mode {
	case paddingSame:
		return "same"
	case paddingValid:
		return "valid"
	default:
		return fmt.Sprintf("explicit%v", []int64(p.values))
	}
}

// resolvePair computes the per-dimension padding for a 2-D op.
func (p Padding) resolvePair(kernel, stride, dilation [2]int64) ([2]int64, error) {
	switch p.mode {
	case paddingValid:
		return [2]int64{0, 0}, nil
	case paddingSame:
		var out [2]int64
		for i := 0; i < 2; i++ {
			pad, err := samePadding(kernel[i], stride[i], dilation[i])
			if err != nil {
				return [2]int64{}, err
			}
			out[i] = pad
		}
		return out, nil
	default:
		values, err := p.values.pair()
		if err != nil {
			return [2]int64{}, fmt.Errorf("padding: %w", err)
		}
		for _, v := range values {
			if v < 0 {
				return [2]int64{}, fmt.Errorf("padding values cannot be negative, got %d", v)
			}
		}
		return values, nil
	}
}

// resolveSingle computes the padding for a 1-D op.
func (p Padding) resolveSingle(kernel, stride, dilation int64) (int64, error) {
	switch p.mode {
	case paddingValid:
		return 0, nil
	case paddingSame:
		return samePadding(kernel, stride, dilation)
	default:
		value, err := p.values.single()
		if err != nil {
			return 0, fmt.Errorf("padding: %w", err)
		}
		if value < 0 {
			return 0, fmt.Errorf("padding values cannot be negative, got %d", value)
		}
		return value, nil
	}
}

func samePadding(kernel, stride, dilation int64) (int64, error) {
	if stride != 1 {
		return 0, fmt.Errorf("same padding requires stride 1, got %d", stride)
	}
	span := dilation * (kernel - 1)
	if span%2 != 0 {
		return 0, fmt.Errorf("same padding requires a symmetric effective kernel, got kernel %d with dilation %d", kernel, dilation)
	}
	return span / 2, nil
}
