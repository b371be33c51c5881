package torch

import (
	"reflect"
	"strings"
	"testing"
)

func TestNewShape(t *testing.T) {
	tests := []struct {
		name     string
		dims     []int64
		expected Shape
	}{
		{
			name:     "empty shape",
			dims:     []int64{},
			expected: Shape{},
		},
		{
			name:     "1D shape",
			dims:     []int64{10},
			expected: Shape{10},
		},
		{
			name:     "2D shape",
			dims:     []int64{3, 4},
			expected: Shape{3, 4},
		},
		{
			name:     "4D image batch",
			dims:     []int64{1, 3, 224, 224},
			expected: Shape{1, 3, 224, 224},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewShape(tt.dims...)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("NewShape() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestShapeElementCount(t *testing.T) {
	tests := []struct {
		name      string
		shape     Shape
		want      int
		expectErr string
	}{
		{name: "scalar", shape: Shape{}, want: 1},
		{name: "vector", shape: Shape{5}, want: 5},
		{name: "matrix", shape: Shape{3, 4}, want: 12},
		{name: "zero dimension", shape: Shape{3, 0, 4}, want: 0},
		{name: "negative dimension", shape: Shape{3, -1}, expectErr: "must be >= 0"},
		{name: "overflow", shape: Shape{1 << 40, 1 << 40}, expectErr: "exceeds maximum supported element count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShapeElementCount(tt.shape)
			if tt.expectErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.expectErr)
				}
				if !strings.Contains(err.Error(), tt.expectErr) {
					t.Fatalf("expected error containing %q, got %q", tt.expectErr, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ShapeElementCount(%v) = %d, want %d", tt.shape, got, tt.want)
			}
		})
	}
}

func TestParseShape(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      Shape
		expectErr bool
	}{
		{name: "single dim", raw: "10", want: Shape{10}},
		{name: "image batch", raw: "1,3,224,224", want: Shape{1, 3, 224, 224}},
		{name: "with spaces", raw: " 2 , 3 ", want: Shape{2, 3}},
		{name: "empty dimension", raw: "1,,2", expectErr: true},
		{name: "not a number", raw: "1,abc", expectErr: true},
		{name: "negative", raw: "-1,3", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseShape(tt.raw)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got shape %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseShape(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCloneShapeScalar(t *testing.T) {
	cloned := cloneShape(nil)
	if cloned == nil {
		t.Fatal("cloneShape(nil) must return a non-nil empty shape")
	}
	if len(cloned) != 0 {
		t.Fatalf("cloneShape(nil) = %v, want empty", cloned)
	}
}

func TestCloneShapeIndependence(t *testing.T) {
	original := Shape{2, 3}
	cloned := cloneShape(original)
	cloned[0] = 99
	if original[0] != 2 {
		t.Error("cloneShape must not alias the original backing array")
	}
}

func TestTensorDataByteSize(t *testing.T) {
	tests := []struct {
		name         string
		elementCount int
		elementSize  uintptr
		want         uintptr
		expectErr    bool
	}{
		{name: "zero elements", elementCount: 0, elementSize: 4, want: 0},
		{name: "float32 vector", elementCount: 10, elementSize: 4, want: 40},
		{name: "negative count", elementCount: -1, elementSize: 4, expectErr: true},
		{name: "zero element size", elementCount: 1, elementSize: 0, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tensorDataByteSize(tt.elementCount, tt.elementSize)
			if tt.expectErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("tensorDataByteSize() = %d, want %d", got, tt.want)
			}
		})
	}
}
