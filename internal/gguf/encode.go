package gguf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// MetaSize returns the byte length of the encoded metadata region, padded
// to alignment. It runs WriteMeta against io.Discard.
func (c *Container) MetaSize(alignment uint64) (uint64, error) {
	n, err := c.WriteMeta(io.Discard, alignment)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// WriteMeta encodes the header, key-value table and tensor directory to w,
// followed by zero padding up to alignment. It returns the bytes written.
func (c *Container) WriteMeta(w io.Writer, alignment uint64) (int64, error) {
	e := &encoder{w: w}

	version := c.Version
	if version == 0 {
		version = Version
	}

	e.raw([]byte(magicGGUF))
	e.u32(version)
	e.u64(uint64(len(c.Tensors)))
	e.u64(uint64(c.KV.Len()))

	for key, v := range c.KV.All() {
		e.str(key)
		e.u32(uint32(v.Type))
		e.value(key, v.Type, v.Value)
	}

	for _, t := range c.Tensors {
		e.str(t.Name)
		e.u32(uint32(len(t.Dims)))
		for _, d := range t.Dims {
			e.u64(d)
		}
		e.u32(uint32(t.Type))
		e.u64(t.Offset)
	}

	if pad := Align(uint64(e.n), alignment) - uint64(e.n); pad > 0 {
		e.raw(make([]byte, pad))
	}
	return e.n, e.err
}

// AppendValue appends the wire encoding of v, type tag included, to buf.
func AppendValue(buf []byte, key string, v Value) ([]byte, error) {
	w := bytes.NewBuffer(buf)
	e := &encoder{w: w}
	e.u32(uint32(v.Type))
	e.value(key, v.Type, v.Value)
	return w.Bytes(), e.err
}

// encoder writes little-endian GGUF primitives and keeps the first error.
type encoder struct {
	w       io.Writer
	n       int64
	err     error
	scratch [8]byte
}

func (e *encoder) raw(p []byte) {
	if e.err != nil {
		return
	}
	n, err := e.w.Write(p)
	e.n += int64(n)
	if err == nil && n != len(p) {
		err = io.ErrShortWrite
	}
	e.err = err
}

func (e *encoder) u8(v uint8) {
	e.scratch[0] = v
	e.raw(e.scratch[:1])
}

func (e *encoder) u16(v uint16) {
	binary.LittleEndian.PutUint16(e.scratch[:2], v)
	e.raw(e.scratch[:2])
}

func (e *encoder) u32(v uint32) {
	binary.LittleEndian.PutUint32(e.scratch[:4], v)
	e.raw(e.scratch[:4])
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.scratch[:8], v)
	e.raw(e.scratch[:8])
}

func (e *encoder) str(s string) {
	e.u64(uint64(len(s)))
	if len(s) > 0 {
		e.raw([]byte(s))
	}
}

func (e *encoder) fail(key string, t ValueType, v any) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s: %T is not a %s", ErrInvalidValue, key, v, t)
	}
}

func (e *encoder) value(key string, t ValueType, v any) {
	switch t {
	case TypeUint8:
		x, ok := v.(uint8)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u8(x)
	case TypeInt8:
		x, ok := v.(int8)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u8(uint8(x))
	case TypeUint16:
		x, ok := v.(uint16)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u16(x)
	case TypeInt16:
		x, ok := v.(int16)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u16(uint16(x))
	case TypeUint32:
		x, ok := v.(uint32)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u32(x)
	case TypeInt32:
		x, ok := v.(int32)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u32(uint32(x))
	case TypeUint64:
		x, ok := v.(uint64)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u64(x)
	case TypeInt64:
		x, ok := v.(int64)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u64(uint64(x))
	case TypeFloat32:
		x, ok := v.(float32)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u32(math.Float32bits(x))
	case TypeFloat64:
		x, ok := v.(float64)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u64(math.Float64bits(x))
	case TypeBool:
		x, ok := v.(bool)
		if !ok {
			e.fail(key, t, v)
			return
		}
		if x {
			e.u8(1)
		} else {
			e.u8(0)
		}
	case TypeString:
		x, ok := v.(string)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.str(x)
	case TypeArray:
		arr, ok := v.(ArrayValue)
		if !ok {
			e.fail(key, t, v)
			return
		}
		e.u32(uint32(arr.ElemType))
		e.u64(uint64(len(arr.Values)))
		for _, item := range arr.Values {
			e.value(key, arr.ElemType, item)
		}
	default:
		if e.err == nil {
			e.err = fmt.Errorf("%w: %s: unsupported value type %d", ErrInvalidValue, key, uint32(t))
		}
	}
}
