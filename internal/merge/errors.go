package merge

import (
	"errors"
	"strings"
)

// Error kinds. Test with errors.Is.
var (
	ErrPrecondition    = errors.New("precondition failed")
	ErrIO              = errors.New("i/o error")
	ErrFormat          = errors.New("invalid part")
	ErrMissingMetadata = errors.New("missing metadata")
	ErrDuplicateTensor = errors.New("duplicate tensor")
	ErrSizeMismatch    = errors.New("metadata size mismatch")
	ErrVerify          = errors.New("verification failed")
)

// Error describes a failed merge. Kind is one of the Err* values above;
// Path, Key and Tensor name the offending file, metadata key or tensor
// when they apply.
type Error struct {
	Kind   error
	Path   string
	Key    string
	Tensor string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("merge: ")
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Key != "" {
		b.WriteString(": key ")
		b.WriteString(e.Key)
	}
	if e.Tensor != "" {
		b.WriteString(": tensor ")
		b.WriteString(e.Tensor)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func ioError(path string, err error) error {
	return &Error{Kind: ErrIO, Path: path, Err: err}
}

func formatError(path string, err error) error {
	return &Error{Kind: ErrFormat, Path: path, Err: err}
}
