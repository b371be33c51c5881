package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToImageLayout(t *testing.T) {
	// 1x2 image, 3 channels, interleaved HWC.
	pixels := []uint8{
		255, 0, 51, // pixel (0,0): R=255 G=0 B=51
		0, 255, 102, // pixel (0,1)
	}

	img, err := ToImage(pixels, 1, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 3, img.Channels)
	assert.Equal(t, 1, img.Height)
	assert.Equal(t, 2, img.Width)

	assert.InDeltaSlice(t, []float64{1, 0}, img.plane(0), 1e-9)
	assert.InDeltaSlice(t, []float64{0, 1}, img.plane(1), 1e-9)
	assert.InDeltaSlice(t, []float64{0.2, 0.4}, img.plane(2), 1e-9)
}

func TestToImageValidation(t *testing.T) {
	_, err := ToImage(nil, 0, 2, 3)
	assert.ErrorContains(t, err, "positive")

	_, err = ToImage(make([]uint8, 5), 2, 2, 3)
	assert.ErrorContains(t, err, "want 12")
}

func TestNormalizeApply(t *testing.T) {
	norm, err := NewNormalize([]float64{0.5}, []float64{0.25})
	require.NoError(t, err)

	img := &Image{Data: []float64{0.5, 0.75, 1}, Channels: 1, Height: 1, Width: 3}
	require.NoError(t, norm.Apply(img))

	assert.InDeltaSlice(t, []float64{0, 1, 2}, img.Data, 1e-9)
}

func TestNormalizeChannelMismatch(t *testing.T) {
	norm := ImageNetNormalize()

	img := &Image{Data: make([]float64, 4), Channels: 1, Height: 2, Width: 2}
	assert.ErrorContains(t, norm.Apply(img), "channels")
}

func TestNewNormalizeValidation(t *testing.T) {
	_, err := NewNormalize(nil, nil)
	assert.Error(t, err)

	_, err = NewNormalize([]float64{0.5}, []float64{0.5, 0.5})
	assert.Error(t, err)

	_, err = NewNormalize([]float64{0.5}, []float64{0})
	assert.ErrorContains(t, err, "positive")
}

func TestImageNetNormalizePreset(t *testing.T) {
	norm := ImageNetNormalize()
	require.NotNil(t, norm)
	assert.Len(t, norm.mean, 3)
	assert.Len(t, norm.std, 3)

	// Presets are copied, not shared.
	other := ImageNetNormalize()
	other.mean[0] = 0
	assert.NotEqual(t, other.mean[0], norm.mean[0])
}
