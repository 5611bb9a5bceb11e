package gguf

import (
	"errors"
	"testing"
)

func TestTensorSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		typ  TensorType
		dims []uint64
		want uint64
	}{
		{"f32", TypeF32, []uint64{4, 3}, 48},
		{"f16", TypeF16, []uint64{10}, 20},
		{"bf16", TypeBF16, []uint64{8, 2}, 32},
		{"i8", TypeI8, []uint64{17}, 17},
		{"q8_0", TypeQ8_0, []uint64{64}, 68},
		{"q4_0", TypeQ4_0, []uint64{32, 2}, 36},
		{"q4_k", TypeQ4_K, []uint64{256}, 144},
		{"q6_k", TypeQ6_K, []uint64{512}, 420},
		{"tq2_0", TypeTQ2_0, []uint64{256}, 66},
		{"mxfp4", TypeMXFP4, []uint64{32}, 17},
		{"scalar", TypeF32, nil, 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TensorInfo{Name: tc.name, Type: tc.typ, Dims: tc.dims}.Size()
			if err != nil {
				t.Fatalf("Size: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func TestTensorSizeErrors(t *testing.T) {
	t.Parallel()

	if _, err := (TensorInfo{Name: "x", Type: TensorType(4), Dims: []uint64{32}}).Size(); !errors.Is(err, ErrUnknownTensorType) {
		t.Fatalf("removed type: expected ErrUnknownTensorType, got %v", err)
	}
	if _, err := (TensorInfo{Name: "x", Type: TypeQ4_K, Dims: []uint64{100}}).Size(); err == nil {
		t.Fatal("expected error for first dim not a multiple of the block size")
	}
	if _, err := (TensorInfo{Name: "x", Type: TypeF32, Dims: []uint64{1 << 40, 1 << 40}}).Size(); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestAlign(t *testing.T) {
	t.Parallel()

	tests := []struct{ off, align, want uint64 }{
		{0, 16, 0},
		{10, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{33, 32, 64},
		{5, 0, 5},
	}
	for _, tc := range tests {
		if got := Align(tc.off, tc.align); got != tc.want {
			t.Errorf("Align(%d, %d): got %d want %d", tc.off, tc.align, got, tc.want)
		}
	}
}
