package merge

import (
	"bytes"
	"fmt"
)

// finalize encodes the merged metadata and writes it over the reserved
// region at the start of the output.
func finalize(w *outputWriter, p *plan) error {
	var buf bytes.Buffer
	buf.Grow(int(p.metaSize))
	n, err := p.out.WriteMeta(&buf, p.metaAlign)
	if err != nil {
		return &Error{Kind: ErrSizeMismatch, Path: w.path, Err: err}
	}
	if uint64(n) != p.metaSize {
		return &Error{
			Kind: ErrSizeMismatch,
			Path: w.path,
			Err:  fmt.Errorf("reserved %d bytes, metadata encodes to %d", p.metaSize, n),
		}
	}
	if err := w.patch(buf.Bytes()); err != nil {
		return ioError(w.path, err)
	}
	return nil
}
