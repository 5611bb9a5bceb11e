package merge

import (
	"context"
	"fmt"

	"github.com/samcharles93/ggufmerge/internal/gguf"
)

// streamer copies tensor payloads from the parts into the output in plan
// order. buf grows to the largest tensor seen and is never shrunk.
type streamer struct {
	w    *outputWriter
	buf  []byte
	emit func(Event)
}

// stream writes every placement and closes each part once its tensors are
// written. The output cursor must sit at the start of the data region.
func (s *streamer) stream(ctx context.Context, parts []*gguf.Part, p *plan) ([]Placement, error) {
	dataStart := int64(p.metaSize)
	written := make([]Placement, 0, len(p.placements))

	current, count := -1, 0
	finishPart := func() {
		if current < 0 {
			return
		}
		_ = parts[current].Close()
		s.emit(Event{Kind: EventPartStreamed, Part: current, Path: parts[current].Path, Tensors: count})
	}

	for _, pl := range p.placements {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if pl.part != current {
			finishPart()
			// Parts without tensors still get closed and reported.
			for j := current + 1; j < pl.part; j++ {
				current, count = j, 0
				finishPart()
			}
			current, count = pl.part, 0
		}
		part := parts[pl.part]

		if got, want := s.w.pos-dataStart, int64(pl.offset); got != want {
			return written, &Error{
				Kind:   ErrSizeMismatch,
				Path:   s.w.path,
				Tensor: pl.src.Name,
				Err:    fmt.Errorf("write cursor at data offset %d, tensor registered at %d", got, want),
			}
		}

		var err error
		s.buf, err = part.ReadTensor(pl.src, s.buf)
		if err != nil {
			return written, ioError(part.Path, err)
		}
		if err := s.w.write(s.buf); err != nil {
			return written, ioError(s.w.path, err)
		}
		if err := s.w.writeZeros(pl.padding); err != nil {
			return written, ioError(s.w.path, err)
		}

		written = append(written, Placement{
			Name:    pl.src.Name,
			Part:    pl.part,
			Offset:  pl.offset,
			Size:    pl.size,
			Padding: pl.padding,
		})
		count++
		s.emit(Event{Kind: EventTensorWritten, Part: pl.part, Path: part.Path, Tensor: pl.src.Name, Offset: pl.offset, Size: pl.size})
	}

	finishPart()
	for j := current + 1; j < len(parts); j++ {
		current, count = j, 0
		finishPart()
	}
	return written, nil
}
