package merge

import (
	"context"
	"errors"
	"io/fs"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/ggufmerge/internal/gguf"
)

// readParts parses the metadata of every part without reading payloads.
// Up to concurrency headers are parsed at once; the result keeps input
// order, and when several parts fail the lowest-index failure is returned.
// On error every part opened so far is closed.
func readParts(ctx context.Context, paths []string, concurrency int) ([]*gguf.Part, error) {
	parts := make([]*gguf.Part, len(paths))
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			p, err := openPart(path)
			if err != nil {
				errs[i] = err
				return nil
			}
			parts[i] = p
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		closeParts(parts)
		return nil, err
	}
	for _, err := range errs {
		if err != nil {
			closeParts(parts)
			return nil, err
		}
	}
	return parts, nil
}

// openPart opens one part and checks its tensor offsets against the
// declared general.alignment, or DefaultAlignment when none is declared.
func openPart(path string) (*gguf.Part, error) {
	p, err := gguf.Open(path)
	if err != nil {
		return nil, classifyOpenError(path, err)
	}
	unit := uint64(DefaultAlignment)
	if _, ok := p.KV.Get(gguf.KeyAlignment); ok {
		unit = p.Alignment
	}
	if err := p.CheckAlignment(unit); err != nil {
		_ = p.Close()
		return nil, formatError(path, err)
	}
	return p, nil
}

// classifyOpenError splits gguf.Open failures into I/O and format errors.
func classifyOpenError(path string, err error) error {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, gguf.ErrInvalidMagic),
		errors.Is(err, gguf.ErrUnsupportedVersion),
		errors.Is(err, gguf.ErrCorrupt):
		return formatError(path, err)
	case errors.As(err, &pathErr):
		return ioError(path, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return ioError(path, err)
	}
}

func closeParts(parts []*gguf.Part) {
	for _, p := range parts {
		if p != nil {
			_ = p.Close()
		}
	}
}
