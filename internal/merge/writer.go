package merge

import (
	"errors"
	"io"
	"os"
)

const writerPadBufSize = 4096

// outputWriter owns the merged file. It reserves the metadata region with
// zeros up-front, appends tensor payloads, and patches the region once the
// final metadata is known.
type outputWriter struct {
	f       *os.File
	path    string
	pos     int64
	padBuf  []byte
	patched bool
}

// createOutput creates path exclusively; it fails if the file exists.
func createOutput(path string) (*outputWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return &outputWriter{
		f:      f,
		path:   path,
		padBuf: make([]byte, writerPadBufSize),
	}, nil
}

// reserve writes n zero bytes (actual bytes, not a seek hole).
func (w *outputWriter) reserve(n uint64) error {
	if w.pos != 0 {
		return errors.New("merge: placeholder must be reserved first")
	}
	return w.writeZeros(n)
}

func (w *outputWriter) write(p []byte) error {
	if err := writeFull(w.f, p); err != nil {
		return err
	}
	w.pos += int64(len(p))
	return nil
}

func (w *outputWriter) writeZeros(n uint64) error {
	for n > 0 {
		toWrite := min(n, uint64(len(w.padBuf)))
		if err := w.write(w.padBuf[:toWrite]); err != nil {
			return err
		}
		n -= toWrite
	}
	return nil
}

// patch overwrites the start of the file with meta, which must be exactly
// as long as the reserved region.
func (w *outputWriter) patch(meta []byte) error {
	if w.patched {
		return errors.New("merge: metadata already written")
	}
	if _, err := w.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := writeFull(w.f, meta); err != nil {
		return err
	}
	w.patched = true
	return nil
}

// finish flushes the file to stable storage and closes it.
func (w *outputWriter) finish() error {
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

// abort closes the file without syncing, optionally removing it.
func (w *outputWriter) abort(remove bool) {
	_ = w.f.Close()
	if remove {
		_ = os.Remove(w.path)
	}
}

func writeFull(f *os.File, p []byte) error {
	for len(p) > 0 {
		n, err := f.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
