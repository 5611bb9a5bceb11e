package merge

import (
	"errors"
	"fmt"

	"github.com/samcharles93/ggufmerge/internal/gguf"
)

// placement is one tensor's journey from a part into the output.
type placement struct {
	part    int
	src     gguf.TensorInfo
	offset  uint64 // relative to the output data region
	size    uint64
	padding uint64
}

// plan is the merged metadata plus everything the streamer needs.
type plan struct {
	out        *gguf.Container
	alignment  uint64 // tensor padding unit
	metaAlign  uint64 // padding applied after the metadata
	metaSize   uint64
	dataSize   uint64
	placements []placement
}

// buildPlan builds the output container from the parts: part 0's key-value
// table with split.count reset to 0, then every part's tensors in order.
// Offsets are assigned as tensors are registered, so the metadata size
// measured here is final.
func buildPlan(parts []*gguf.Part, alignment uint64, emit func(Event)) (*plan, error) {
	first := parts[0]

	declared, ok := gguf.GetUint64(first.KV, gguf.KeySplitCount)
	if !ok {
		return nil, &Error{
			Kind: ErrMissingMetadata,
			Path: first.Path,
			Key:  gguf.KeySplitCount,
			Err:  errors.New("part 0 does not declare a split count"),
		}
	}
	if declared != uint64(len(parts)) {
		emit(Event{Kind: EventSplitCountMismatch, Path: first.Path, Declared: declared, Actual: len(parts)})
	}

	// A declared alignment is part of the metadata being copied, so the
	// output has to honour it.
	if _, ok := first.KV.Get(gguf.KeyAlignment); ok {
		alignment = first.Alignment
	}

	out := gguf.NewContainer()
	out.KV = first.KV.Clone()
	out.KV.Set(gguf.KeySplitCount, gguf.Uint16(0))
	out.Alignment = first.Alignment

	p := &plan{
		out:       out,
		alignment: alignment,
		metaAlign: max(alignment, out.Alignment),
	}

	owner := make(map[string]int)
	var cursor uint64
	for i, part := range parts {
		for _, t := range part.Tensors {
			if prev, dup := owner[t.Name]; dup {
				return nil, &Error{
					Kind:   ErrDuplicateTensor,
					Path:   part.Path,
					Tensor: t.Name,
					Err:    fmt.Errorf("already registered by part %d (%s)", prev, parts[prev].Path),
				}
			}
			owner[t.Name] = i

			size, err := t.Size()
			if err != nil {
				return nil, formatError(part.Path, err)
			}
			padded := gguf.Align(size, alignment)

			out.Tensors = append(out.Tensors, gguf.TensorInfo{
				Name:   t.Name,
				Dims:   t.Dims,
				Type:   t.Type,
				Offset: cursor,
			})
			p.placements = append(p.placements, placement{
				part:    i,
				src:     t,
				offset:  cursor,
				size:    size,
				padding: padded - size,
			})
			cursor += padded
		}
	}
	p.dataSize = cursor

	metaSize, err := out.MetaSize(p.metaAlign)
	if err != nil {
		return nil, formatError(first.Path, err)
	}
	p.metaSize = metaSize
	return p, nil
}
