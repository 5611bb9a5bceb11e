package gguf

import (
	"fmt"
	"io"
	"os"
)

// Part is an open GGUF file whose metadata has been parsed. The file
// handle stays open for payload reads until Close.
type Part struct {
	*Container

	Path       string
	DataOffset uint64
	Size       int64

	f *os.File
}

// Open opens path and parses its metadata. Payload bytes are not read.
// Failures to open or stat the file are returned unwrapped (*fs.PathError);
// format problems wrap ErrInvalidMagic, ErrUnsupportedVersion or ErrCorrupt.
func Open(path string) (*Part, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	size := st.Size()

	adviseSequential(f, size)

	c, dataOffset, err := Decode(f, size)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	p := &Part{
		Container:  c,
		Path:       path,
		DataOffset: dataOffset,
		Size:       size,
		f:          f,
	}
	if err := p.checkTensorRanges(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return p, nil
}

// checkTensorRanges verifies every tensor payload lies inside the file.
func (p *Part) checkTensorRanges() error {
	var avail uint64
	if uint64(p.Size) > p.DataOffset {
		avail = uint64(p.Size) - p.DataOffset
	}
	for _, t := range p.Tensors {
		n, err := t.Size()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if t.Offset > avail || n > avail-t.Offset {
			return fmt.Errorf("%w: tensor %s at offset %d size %d exceeds data region of %d bytes",
				ErrCorrupt, t.Name, t.Offset, n, avail)
		}
	}
	return nil
}

// CheckAlignment verifies every tensor offset is a multiple of unit.
func (p *Part) CheckAlignment(unit uint64) error {
	for _, t := range p.Tensors {
		if t.Offset%unit != 0 {
			return fmt.Errorf("%w: tensor %s offset %d is not a multiple of %d", ErrCorrupt, t.Name, t.Offset, unit)
		}
	}
	return nil
}

// ReadTensor reads the payload of t into buf, growing it when it is too
// small, and returns the filled slice. Reads are positioned at
// DataOffset+t.Offset and never depend on the file cursor.
func (p *Part) ReadTensor(t TensorInfo, buf []byte) ([]byte, error) {
	if p.f == nil {
		return buf, fmt.Errorf("read tensor %s: %w", t.Name, os.ErrClosed)
	}
	n, err := t.Size()
	if err != nil {
		return buf, err
	}
	if uint64(cap(buf)) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	off := int64(p.DataOffset + t.Offset)
	if _, err := p.f.ReadAt(buf, off); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return buf, fmt.Errorf("read tensor %s at %d: %w", t.Name, off, err)
	}
	return buf, nil
}

// Close releases the file handle. It is safe to call more than once.
func (p *Part) Close() error {
	if p.f == nil {
		return nil
	}
	err := p.f.Close()
	p.f = nil
	return err
}
