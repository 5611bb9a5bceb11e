package gguf

import (
	"errors"
	"fmt"
	"io"
)

// Decode parses header, key-value table and tensor directory from r
// without touching tensor payloads. size is the total input size (0 if
// unknown) and bounds every length read from the input. It returns the
// container and the absolute offset of its data region.
func Decode(rd io.Reader, size int64) (*Container, uint64, error) {
	r := newReader(rd, size)

	c, err := decode(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: truncated metadata at offset %d", ErrCorrupt, r.off)
		}
		return nil, 0, err
	}

	dataOffset := Align(uint64(r.off), c.Alignment)
	if size > 0 && dataOffset > uint64(size) && len(c.Tensors) > 0 {
		return nil, 0, fmt.Errorf("%w: data region starts past end of file", ErrCorrupt)
	}
	return c, dataOffset, nil
}

func decode(r *reader) (*Container, error) {
	magic, err := r.readN(4)
	if err != nil {
		return nil, err
	}
	if string(magic) != magicGGUF {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMagic, string(magic))
	}

	version, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	tensorCount, err := r.readU64()
	if err != nil {
		return nil, err
	}
	kvCount, err := r.readU64()
	if err != nil {
		return nil, err
	}
	// key length + value type is the smallest possible kv entry; name
	// length + ndims + type + offset the smallest tensor entry.
	if !r.remaining(kvCount, 12) || !r.remaining(tensorCount, 24) {
		return nil, fmt.Errorf("%w: counts exceed file size (kv=%d tensors=%d)", ErrCorrupt, kvCount, tensorCount)
	}

	kv := NewKV()
	for i := range kvCount {
		key, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("read key %d: %w", i, err)
		}
		vtypeU32, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("read value type for %s: %w", key, err)
		}
		vtype := ValueType(vtypeU32)
		val, err := readValue(r, vtype)
		if err != nil {
			return nil, fmt.Errorf("read value for %s: %w", key, err)
		}
		if _, dup := kv.Get(key); dup {
			return nil, fmt.Errorf("%w: duplicate key %s", ErrCorrupt, key)
		}
		kv.Set(key, Value{Type: vtype, Value: val})
	}

	tensors := make([]TensorInfo, 0, tensorCount)
	for i := range tensorCount {
		name, err := r.readString()
		if err != nil {
			return nil, fmt.Errorf("read tensor name %d: %w", i, err)
		}
		nDim, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("read tensor dims %s: %w", name, err)
		}
		if nDim > maxDims {
			return nil, fmt.Errorf("%w: tensor %s has %d dims", ErrCorrupt, name, nDim)
		}
		dims := make([]uint64, nDim)
		for d := range nDim {
			v, err := r.readU64()
			if err != nil {
				return nil, fmt.Errorf("read tensor dim %s[%d]: %w", name, d, err)
			}
			dims[d] = v
		}
		ttypeU32, err := r.readU32()
		if err != nil {
			return nil, fmt.Errorf("read tensor type %s: %w", name, err)
		}
		offset, err := r.readU64()
		if err != nil {
			return nil, fmt.Errorf("read tensor offset %s: %w", name, err)
		}
		tensors = append(tensors, TensorInfo{
			Name:   name,
			Dims:   dims,
			Type:   TensorType(ttypeU32),
			Offset: offset,
		})
	}

	alignment := DefaultAlignment
	if v, ok := kv.Get(KeyAlignment); ok {
		u, ok := asUint64(v.Value)
		if !ok || !validAlignment(u) {
			return nil, fmt.Errorf("%w: %s must be a power of two, got %v", ErrCorrupt, KeyAlignment, v.Value)
		}
		alignment = u
	}

	return &Container{
		Version:   version,
		KV:        kv,
		Tensors:   tensors,
		Alignment: alignment,
	}, nil
}

const maxDims = 4
