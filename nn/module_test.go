package nn

import (
	"errors"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorware/pure-torch/torch"
)

// stubModule records forward calls without touching the native runtime.
type stubModule struct {
	name     string
	calls    *[]string
	closed   bool
	closeErr error
	params   []*Parameter
	training *bool
}

func (s *stubModule) Forward(input *torch.Tensor) (*torch.Tensor, error) {
	*s.calls = append(*s.calls, s.name)
	return &torch.Tensor{}, nil
}

func (s *stubModule) Parameters() []*Parameter { return s.params }

func (s *stubModule) Close() error {
	s.closed = true
	return s.closeErr
}

func (s *stubModule) SetTraining(training bool) {
	if s.training != nil {
		*s.training = training
	}
}

func TestSequentialForwardOrder(t *testing.T) {
	var calls []string
	seq := NewSequential(
		&stubModule{name: "first", calls: &calls},
		&stubModule{name: "second", calls: &calls},
		&stubModule{name: "third", calls: &calls},
	)

	out, err := seq.Forward(&torch.Tensor{})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestSequentialParametersPrefixed(t *testing.T) {
	var calls []string
	weight := &torch.Tensor{}
	seq := NewSequential(
		&stubModule{name: "a", calls: &calls, params: []*Parameter{{Name: "weight", Tensor: weight}}},
		&stubModule{name: "b", calls: &calls},
		&stubModule{name: "c", calls: &calls, params: []*Parameter{{Name: "weight", Tensor: weight}, {Name: "bias", Tensor: weight}}},
	)

	params := seq.Parameters()
	require.Len(t, params, 3)
	assert.Equal(t, "0.weight", params[0].Name)
	assert.Equal(t, "2.weight", params[1].Name)
	assert.Equal(t, "2.bias", params[2].Name)
}

func TestSequentialCloseAllChildren(t *testing.T) {
	var calls []string
	closeErr := errors.New("release failed")
	first := &stubModule{name: "a", calls: &calls, closeErr: closeErr}
	second := &stubModule{name: "b", calls: &calls}

	seq := NewSequential(first, second)
	err := seq.Close()

	assert.ErrorIs(t, err, closeErr)
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestSequentialTrainingPropagates(t *testing.T) {
	var calls []string
	var mode bool
	seq := NewSequential(&stubModule{name: "a", calls: &calls, training: &mode})

	seq.Train()
	assert.True(t, mode)
	seq.Eval()
	assert.False(t, mode)
}

func TestSequentialAppend(t *testing.T) {
	var calls []string
	seq := NewSequential()
	assert.Equal(t, 0, seq.Len())

	seq.Append(&stubModule{name: "a", calls: &calls})
	assert.Equal(t, 1, seq.Len())
}

func TestNewConv2dValidation(t *testing.T) {
	tests := []struct {
		name    string
		build   func() (*Conv2d, error)
		wantErr string
	}{
		{
			name:    "zero channels",
			build:   func() (*Conv2d, error) { return NewConv2d(0, 64, Square(3)) },
			wantErr: "positive",
		},
		{
			name:    "indivisible groups",
			build:   func() (*Conv2d, error) { return NewConv2d(6, 8, Square(3), WithGroups(4)) },
			wantErr: "not divisible",
		},
		{
			name:    "zero kernel",
			build:   func() (*Conv2d, error) { return NewConv2d(3, 64, Square(0)) },
			wantErr: "kernel",
		},
		{
			name:    "negative stride",
			build:   func() (*Conv2d, error) { return NewConv2d(3, 64, Square(3), WithStride(Size1(-1))) },
			wantErr: "stride",
		},
		{
			name: "same with stride",
			build: func() (*Conv2d, error) {
				return NewConv2d(3, 64, Square(3), WithStride(Square(2)), WithPadding(Same))
			},
			wantErr: "stride 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewLinearValidation(t *testing.T) {
	_, err := NewLinear(0, 10)
	assert.Error(t, err)
	_, err = NewLinear(10, -1)
	assert.Error(t, err)
}

func TestXavierUniformValidation(t *testing.T) {
	_, err := xavierUniform(torch.NewShape(4, 4), 0, 4)
	assert.ErrorContains(t, err, "positive")
	_, err = xavierUniform(torch.NewShape(4, 4), 4, -1)
	assert.ErrorContains(t, err, "positive")
}

func TestWithXavierInitOption(t *testing.T) {
	cfg := linearConfig{bias: true}
	WithXavierInit()(&cfg)
	assert.True(t, cfg.xavier)
	assert.True(t, cfg.bias)
}

func TestNewDropoutValidation(t *testing.T) {
	_, err := NewDropout(-0.1)
	assert.Error(t, err)
	_, err = NewDropout(1)
	assert.Error(t, err)

	d, err := NewDropout(0.5)
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}

func TestNewEmbeddingValidation(t *testing.T) {
	_, err := NewEmbedding(0, 16)
	assert.Error(t, err)
	_, err = NewEmbedding(100, 16, WithPaddingIdx(100))
	assert.ErrorContains(t, err, "out of range")
}

// Pooling layers hold no native state, so the canonical-call collapse is
// observable without a runtime: Square(k) and Size2(k, k) must configure
// identical layers.
func TestMaxPool2dCanonicalization(t *testing.T) {
	square, err := NewMaxPool2d(Square(3), WithPoolStride(Square(2)), WithPoolPadding(PaddingOf(1)))
	require.NoError(t, err)
	explicit, err := NewMaxPool2d(Size2(3, 3), WithPoolStride(Size2(2, 2)), WithPoolPadding(PaddingOf(1, 1)))
	require.NoError(t, err)

	assert.Equal(t, explicit, square)
}

func TestMaxPool2dDefaultStride(t *testing.T) {
	pool, err := NewMaxPool2d(Square(2))
	require.NoError(t, err)
	assert.Equal(t, pool.kernel, pool.stride)
}

func TestNewAvgPool2dRejectsDilation(t *testing.T) {
	_, err := NewAvgPool2d(Square(2), WithPoolDilation(Square(2)))
	assert.ErrorContains(t, err, "dilation")
}

func TestNewAdaptiveAvgPool2dValidation(t *testing.T) {
	_, err := NewAdaptiveAvgPool2d(Size2(0, 1))
	assert.Error(t, err)

	pool, err := NewAdaptiveAvgPool2d(Square(1))
	require.NoError(t, err)
	assert.Equal(t, [2]int64{1, 1}, pool.outputSize)
}

// requireNativeLibrary initializes the runtime from PURETORCH_LIB_PATH or
// skips the calling test.
func requireNativeLibrary(t *testing.T) {
	t.Helper()

	path := os.Getenv("PURETORCH_LIB_PATH")
	if path == "" {
		t.Skip("Skipping integration test: PURETORCH_LIB_PATH not set")
	}
	if err := torch.SetSharedLibraryPath(path); err != nil {
		t.Fatalf("SetSharedLibraryPath failed: %v", err)
	}
	if err := torch.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
}

func TestConvReluPoolForwardIntegration(t *testing.T) {
	requireNativeLibrary(t)

	conv, err := NewConv2d(3, 8, Square(3), WithPadding(Same))
	require.NoError(t, err)
	pool, err := NewMaxPool2d(Square(2))
	require.NoError(t, err)

	seq := NewSequential(conv, NewReLU(), pool)
	defer func() { _ = seq.Close() }()

	input, err := torch.Rand(torch.NewShape(1, 3, 8, 8))
	require.NoError(t, err)
	defer func() { _ = input.Close() }()

	out, err := seq.Forward(input)
	require.NoError(t, err)
	defer func() { _ = out.Close() }()

	shape, err := out.Shape()
	require.NoError(t, err)
	assert.Equal(t, torch.NewShape(1, 8, 4, 4), shape)
}

func TestLinearXavierInitIntegration(t *testing.T) {
	requireNativeLibrary(t)

	layer, err := NewLinear(8, 4, WithXavierInit())
	require.NoError(t, err)
	defer func() { _ = layer.Close() }()

	// Glorot bound for fanIn=8, fanOut=4.
	bound := math.Sqrt(6.0 / 12.0)
	weight := layer.Parameters()[0].Tensor
	values, err := torch.Data[float32](weight)
	require.NoError(t, err)
	for _, v := range values {
		assert.LessOrEqual(t, math.Abs(float64(v)), bound)
	}

	input, err := torch.Rand(torch.NewShape(2, 8))
	require.NoError(t, err)
	defer func() { _ = input.Close() }()

	out, err := layer.Forward(input)
	require.NoError(t, err)
	defer func() { _ = out.Close() }()

	shape, err := out.Shape()
	require.NoError(t, err)
	assert.Equal(t, torch.NewShape(2, 4), shape)
}

func TestSquareAndSize2ForwardShapesMatchIntegration(t *testing.T) {
	requireNativeLibrary(t)

	input, err := torch.Rand(torch.NewShape(1, 3, 16, 16))
	require.NoError(t, err)
	defer func() { _ = input.Close() }()

	for _, kernel := range []Size{Square(3), Size2(3, 3)} {
		conv, err := NewConv2d(3, 4, kernel)
		require.NoError(t, err)

		out, err := conv.Forward(input)
		require.NoError(t, err)

		shape, err := out.Shape()
		require.NoError(t, err)
		assert.Equal(t, torch.NewShape(1, 4, 14, 14), shape)

		require.NoError(t, out.Close())
		require.NoError(t, conv.Close())
	}
}
