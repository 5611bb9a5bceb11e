package gguf

import "fmt"

const (
	magicGGUF = "GGUF"

	// Version is the container version written by WriteMeta.
	Version uint32 = 3

	// DefaultAlignment applies when a container carries no general.alignment.
	DefaultAlignment uint64 = 32
)

// Well-known keys.
const (
	KeyAlignment    = "general.alignment"
	KeyArchitecture = "general.architecture"
	KeySplitCount   = "split.count"
	KeySplitNo      = "split.no"
	KeySplitTensors = "split.tensors.count"
)

type ValueType uint32

const (
	TypeUint8   ValueType = 0
	TypeInt8    ValueType = 1
	TypeUint16  ValueType = 2
	TypeInt16   ValueType = 3
	TypeUint32  ValueType = 4
	TypeInt32   ValueType = 5
	TypeFloat32 ValueType = 6
	TypeBool    ValueType = 7
	TypeString  ValueType = 8
	TypeArray   ValueType = 9
	TypeUint64  ValueType = 10
	TypeInt64   ValueType = 11
	TypeFloat64 ValueType = 12
)

func (t ValueType) String() string {
	switch t {
	case TypeUint8:
		return "u8"
	case TypeInt8:
		return "i8"
	case TypeUint16:
		return "u16"
	case TypeInt16:
		return "i16"
	case TypeUint32:
		return "u32"
	case TypeInt32:
		return "i32"
	case TypeUint64:
		return "u64"
	case TypeInt64:
		return "i64"
	case TypeFloat32:
		return "f32"
	case TypeFloat64:
		return "f64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeArray:
		return "array"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

type ArrayValue struct {
	ElemType ValueType
	Values   []any
}

// Value is a typed metadata value. Value holds the Go type matching Type:
// uint8..uint64, int8..int64, float32, float64, bool, string or ArrayValue.
type Value struct {
	Type  ValueType
	Value any
}

// Uint16 builds a u16 value.
func Uint16(v uint16) Value { return Value{Type: TypeUint16, Value: v} }

// Uint32 builds a u32 value.
func Uint32(v uint32) Value { return Value{Type: TypeUint32, Value: v} }

// String builds a string value.
func String(v string) Value { return Value{Type: TypeString, Value: v} }

type TensorType uint32

const (
	TypeF32     TensorType = 0
	TypeF16     TensorType = 1
	TypeQ4_0    TensorType = 2
	TypeQ4_1    TensorType = 3
	TypeQ5_0    TensorType = 6
	TypeQ5_1    TensorType = 7
	TypeQ8_0    TensorType = 8
	TypeQ8_1    TensorType = 9
	TypeQ2_K    TensorType = 10
	TypeQ3_K    TensorType = 11
	TypeQ4_K    TensorType = 12
	TypeQ5_K    TensorType = 13
	TypeQ6_K    TensorType = 14
	TypeQ8_K    TensorType = 15
	TypeIQ2_XXS TensorType = 16
	TypeIQ2_XS  TensorType = 17
	TypeIQ3_XXS TensorType = 18
	TypeIQ1_S   TensorType = 19
	TypeIQ4_NL  TensorType = 20
	TypeIQ3_S   TensorType = 21
	TypeIQ2_S   TensorType = 22
	TypeIQ4_XS  TensorType = 23
	TypeI8      TensorType = 24
	TypeI16     TensorType = 25
	TypeI32     TensorType = 26
	TypeI64     TensorType = 27
	TypeF64     TensorType = 28
	TypeIQ1_M   TensorType = 29
	TypeBF16    TensorType = 30
	TypeTQ1_0   TensorType = 34
	TypeTQ2_0   TensorType = 35
	TypeMXFP4   TensorType = 39
)

func (t TensorType) String() string {
	switch t {
	case TypeF32:
		return "F32"
	case TypeF16:
		return "F16"
	case TypeQ4_0:
		return "Q4_0"
	case TypeQ4_1:
		return "Q4_1"
	case TypeQ5_0:
		return "Q5_0"
	case TypeQ5_1:
		return "Q5_1"
	case TypeQ8_0:
		return "Q8_0"
	case TypeQ8_1:
		return "Q8_1"
	case TypeQ2_K:
		return "Q2_K"
	case TypeQ3_K:
		return "Q3_K"
	case TypeQ4_K:
		return "Q4_K"
	case TypeQ5_K:
		return "Q5_K"
	case TypeQ6_K:
		return "Q6_K"
	case TypeQ8_K:
		return "Q8_K"
	case TypeIQ2_XXS:
		return "IQ2_XXS"
	case TypeIQ2_XS:
		return "IQ2_XS"
	case TypeIQ3_XXS:
		return "IQ3_XXS"
	case TypeIQ1_S:
		return "IQ1_S"
	case TypeIQ4_NL:
		return "IQ4_NL"
	case TypeIQ3_S:
		return "IQ3_S"
	case TypeIQ2_S:
		return "IQ2_S"
	case TypeIQ4_XS:
		return "IQ4_XS"
	case TypeI8:
		return "I8"
	case TypeI16:
		return "I16"
	case TypeI32:
		return "I32"
	case TypeI64:
		return "I64"
	case TypeF64:
		return "F64"
	case TypeIQ1_M:
		return "IQ1_M"
	case TypeBF16:
		return "BF16"
	case TypeTQ1_0:
		return "TQ1_0"
	case TypeTQ2_0:
		return "TQ2_0"
	case TypeMXFP4:
		return "MXFP4"
	default:
		return fmt.Sprintf("type(%d)", uint32(t))
	}
}

// TensorInfo is one tensor directory entry. Offset is relative to the
// start of the owning container's data region.
type TensorInfo struct {
	Name   string
	Dims   []uint64
	Type   TensorType
	Offset uint64
}

// Container is the metadata of a GGUF file: key-value table and tensor
// directory. Header counts are derived from the lengths of KV and Tensors.
type Container struct {
	Version   uint32
	KV        *KV
	Tensors   []TensorInfo
	Alignment uint64
}

// NewContainer returns an empty version 3 container.
func NewContainer() *Container {
	return &Container{
		Version:   Version,
		KV:        NewKV(),
		Alignment: DefaultAlignment,
	}
}

// TensorByName returns the tensor info for the given name.
func (c *Container) TensorByName(name string) (TensorInfo, bool) {
	for _, t := range c.Tensors {
		if t.Name == name {
			return t, true
		}
	}
	return TensorInfo{}, false
}

// Align rounds offset up to the next multiple of alignment.
func Align(offset, alignment uint64) uint64 {
	if alignment == 0 {
		return offset
	}
	rem := offset % alignment
	if rem == 0 {
		return offset
	}
	return offset + (alignment - rem)
}

func validAlignment(a uint64) bool {
	return a != 0 && a&(a-1) == 0
}

func asUint64(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint8:
		return uint64(t), true
	case uint16:
		return uint64(t), true
	case uint32:
		return uint64(t), true
	case uint64:
		return t, true
	case int8:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int16:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int32:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	case int64:
		if t < 0 {
			return 0, false
		}
		return uint64(t), true
	default:
		return 0, false
	}
}
