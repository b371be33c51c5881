package vision

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/tensorware/pure-torch/torch"
)

// Image is a CHW float64 pixel buffer, the intermediate form the
// transforms operate on before tensor conversion.
type Image struct {
	Data     []float64
	Channels int
	Height   int
	Width    int
}

// ToImage converts interleaved HWC uint8 pixels to a planar CHW image
// scaled to [0, 1].
func ToImage(pixels []uint8, height, width, channels int) (*Image, error) {
	if height <= 0 || width <= 0 || channels <= 0 {
		return nil, errors.Errorf("image dimensions must be positive, got %dx%dx%d", height, width, channels)
	}
	if len(pixels) != height*width*channels {
		return nil, errors.Errorf("pixel buffer has %d bytes, want %d for %dx%dx%d", len(pixels), height*width*channels, height, width, channels)
	}

	data := make([]float64, len(pixels))
	plane := height * width
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < channels; c++ {
				data[c*plane+y*width+x] = float64(pixels[(y*width+x)*channels+c]) / 255
			}
		}
	}
	return &Image{Data: data, Channels: channels, Height: height, Width: width}, nil
}

// plane returns the channel's pixel slice.
func (img *Image) plane(c int) []float64 {
	size := img.Height * img.Width
	return img.Data[c*size : (c+1)*size]
}

// Tensor converts the image to a CHW float32 tensor.
func (img *Image) Tensor() (*torch.Tensor, error) {
	data := make([]float32, len(img.Data))
	for i, v := range img.Data {
		data[i] = float32(v)
	}
	shape := torch.NewShape(int64(img.Channels), int64(img.Height), int64(img.Width))
	t, err := torch.FromSlice(shape, data)
	return t, errors.Wrap(err, "converting image to tensor")
}

// Normalize shifts and scales each channel: (x - mean[c]) / std[c].
type Normalize struct {
	mean []float64
	std  []float64
}

// NewNormalize builds a per-channel normalization transform.
func NewNormalize(mean, std []float64) (*Normalize, error) {
	if len(mean) == 0 || len(mean) != len(std) {
		return nil, errors.Errorf("mean and std must have equal non-zero length, got %d and %d", len(mean), len(std))
	}
	for i, s := range std {
		if s <= 0 {
			return nil, errors.Errorf("std[%d] must be positive, got %g", i, s)
		}
	}
	return &Normalize{
		mean: append([]float64(nil), mean...),
		std:  append([]float64(nil), std...),
	}, nil
}

// ImageNetNormalize returns the standard ImageNet channel statistics.
func ImageNetNormalize() *Normalize {
	n, _ := NewNormalize(
		[]float64{0.485, 0.456, 0.406},
		[]float64{0.229, 0.224, 0.225},
	)
	return n
}

// Apply normalizes the image in place.
func (n *Normalize) Apply(img *Image) error {
	if img.Channels != len(n.mean) {
		return errors.Errorf("image has %d channels, normalization expects %d", img.Channels, len(n.mean))
	}
	for c := 0; c < img.Channels; c++ {
		plane := img.plane(c)
		floats.AddConst(-n.mean[c], plane)
		floats.Scale(1/n.std[c], plane)
	}
	return nil
}

// ToTensor converts interleaved HWC uint8 pixels straight to a CHW
// float32 tensor in [0, 1].
func ToTensor(pixels []uint8, height, width, channels int) (*torch.Tensor, error) {
	img, err := ToImage(pixels, height, width, channels)
	if err != nil {
		return nil, err
	}
	return img.Tensor()
}
