package gguf

import (
	"fmt"
	"math/bits"
)

const qkK = 256

// BlockSize is the number of elements packed into one block of t.
func (t TensorType) BlockSize() uint64 {
	switch t {
	case TypeF32, TypeF16, TypeBF16, TypeF64,
		TypeI8, TypeI16, TypeI32, TypeI64:
		return 1
	case TypeQ4_0, TypeQ4_1, TypeQ5_0, TypeQ5_1, TypeQ8_0, TypeQ8_1,
		TypeIQ4_NL, TypeMXFP4:
		return 32
	case TypeQ2_K, TypeQ3_K, TypeQ4_K, TypeQ5_K, TypeQ6_K, TypeQ8_K,
		TypeIQ2_XXS, TypeIQ2_XS, TypeIQ3_XXS, TypeIQ1_S, TypeIQ3_S,
		TypeIQ2_S, TypeIQ4_XS, TypeIQ1_M, TypeTQ1_0, TypeTQ2_0:
		return qkK
	default:
		return 0
	}
}

// TypeSize is the byte size of one block of t, or 0 for unknown types.
func (t TensorType) TypeSize() uint64 {
	bs := t.BlockSize()

	switch t {
	case TypeF32:
		return 4
	case TypeF16, TypeBF16:
		return 2
	case TypeQ4_0:
		return 2 + bs/2
	case TypeQ4_1:
		return 2 + 2 + bs/2
	case TypeQ5_0:
		return 2 + 4 + bs/2
	case TypeQ5_1:
		return 2 + 2 + 4 + bs/2
	case TypeQ8_0:
		return 2 + bs
	case TypeQ8_1:
		return 2 + 2 + bs
	case TypeQ2_K:
		return bs/16 + bs/4 + 2 + 2
	case TypeQ3_K:
		return bs/8 + bs/4 + 12 + 2
	case TypeQ4_K:
		return 2 + 2 + 12 + bs/2
	case TypeQ5_K:
		return 2 + 2 + 12 + bs/8 + bs/2
	case TypeQ6_K:
		return bs/2 + bs/4 + bs/16 + 2
	case TypeQ8_K:
		return 4 + bs + 2*bs/16
	case TypeIQ2_XXS:
		return 2 + 2*bs/8
	case TypeIQ2_XS:
		return 2 + 2*bs/8 + bs/32
	case TypeIQ3_XXS:
		return 2 + bs/4 + bs/8
	case TypeIQ1_S:
		return 2 + bs/8 + bs/16
	case TypeIQ4_NL:
		return 2 + bs/2
	case TypeIQ3_S:
		return 2 + bs/4 + bs/8 + bs/32 + 4
	case TypeIQ2_S:
		return 2 + bs/4 + bs/16
	case TypeIQ4_XS:
		return 2 + 2 + bs/2 + bs/64
	case TypeIQ1_M:
		return bs/8 + bs/16 + bs/32
	case TypeTQ1_0:
		return 2 + 4*13
	case TypeTQ2_0:
		return 2 + 64
	case TypeMXFP4:
		return 1 + bs/2
	case TypeI8:
		return 1
	case TypeI16:
		return 2
	case TypeI32:
		return 4
	case TypeI64, TypeF64:
		return 8
	default:
		return 0
	}
}

// Elements returns the number of elements described by the dims.
func (t TensorInfo) Elements() uint64 {
	var n uint64 = 1
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

// Size returns the payload byte length of the tensor.
func (t TensorInfo) Size() (uint64, error) {
	bs := t.Type.BlockSize()
	ts := t.Type.TypeSize()
	if bs == 0 || ts == 0 {
		return 0, fmt.Errorf("tensor %s: %w %d", t.Name, ErrUnknownTensorType, uint32(t.Type))
	}
	if len(t.Dims) > 0 && t.Dims[0]%bs != 0 {
		return 0, fmt.Errorf("tensor %s: first dim %d not a multiple of block size %d for %s",
			t.Name, t.Dims[0], bs, t.Type)
	}

	var n uint64 = 1
	for _, d := range t.Dims {
		hi, lo := bits.Mul64(n, d)
		if hi != 0 {
			return 0, fmt.Errorf("tensor %s: element count overflows", t.Name)
		}
		n = lo
	}
	hi, size := bits.Mul64(n/bs, ts)
	if hi != 0 {
		return 0, fmt.Errorf("tensor %s: byte size overflows", t.Name)
	}
	return size, nil
}
