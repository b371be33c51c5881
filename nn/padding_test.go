package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaddingResolvePair(t *testing.T) {
	ones := [2]int64{1, 1}

	tests := []struct {
		name     string
		padding  Padding
		kernel   [2]int64
		stride   [2]int64
		dilation [2]int64
		want     [2]int64
		wantErr  string
	}{
		{name: "valid is zero", padding: Valid, kernel: [2]int64{3, 3}, stride: [2]int64{2, 2}, dilation: ones, want: [2]int64{0, 0}},
		{name: "same 3x3", padding: Same, kernel: [2]int64{3, 3}, stride: ones, dilation: ones, want: [2]int64{1, 1}},
		{name: "same 7x7", padding: Same, kernel: [2]int64{7, 7}, stride: ones, dilation: ones, want: [2]int64{3, 3}},
		{name: "same dilated", padding: Same, kernel: [2]int64{3, 3}, stride: ones, dilation: [2]int64{2, 2}, want: [2]int64{2, 2}},
		{name: "same strided", padding: Same, kernel: [2]int64{3, 3}, stride: [2]int64{2, 2}, dilation: ones, wantErr: "stride 1"},
		{name: "same even kernel", padding: Same, kernel: [2]int64{4, 4}, stride: ones, dilation: ones, wantErr: "symmetric"},
		{name: "explicit broadcast", padding: PaddingOf(2), kernel: [2]int64{5, 5}, stride: ones, dilation: ones, want: [2]int64{2, 2}},
		{name: "explicit pair", padding: PaddingOf(1, 2), kernel: [2]int64{3, 5}, stride: ones, dilation: ones, want: [2]int64{1, 2}},
		{name: "explicit negative", padding: PaddingOf(-1), kernel: [2]int64{3, 3}, stride: ones, dilation: ones, wantErr: "negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.padding.resolvePair(tt.kernel, tt.stride, tt.dilation)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaddingResolveSingle(t *testing.T) {
	got, err := Same.resolveSingle(3, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = Valid.resolveSingle(3, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	got, err = PaddingOf(4).resolveSingle(9, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	_, err = PaddingOf(1, 2).resolveSingle(3, 1, 1)
	assert.Error(t, err)
}

func TestPaddingString(t *testing.T) {
	assert.Equal(t, "same", Same.String())
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "explicit[1 2]", PaddingOf(1, 2).String())
}
