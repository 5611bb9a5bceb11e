package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/ggufmerge/internal/gguf"
)

// Verify re-opens a merged output and checks it against the parts it was
// built from: split.count is 0, the key-value table is part 0's apart from
// split.count, the tensor directory is the concatenation of the parts'
// directories, every offset is aligned, and every payload is byte-identical
// to its source. Mismatches are reported as ErrVerify.
func Verify(ctx context.Context, output string, parts []string) error {
	if len(parts) == 0 {
		return &Error{Kind: ErrPrecondition, Err: errors.New("no input parts")}
	}

	out, err := gguf.Open(output)
	if err != nil {
		if errors.Is(classifyOpenError(output, err), ErrFormat) {
			return verifyError(output, "", err)
		}
		return ioError(output, err)
	}
	defer func() { _ = out.Close() }()

	inputs, err := readParts(ctx, parts, 1)
	if err != nil {
		return err
	}
	defer closeParts(inputs)

	if err := verifyKV(out, inputs[0]); err != nil {
		return err
	}

	unit := uint64(DefaultAlignment)
	if _, ok := out.KV.Get(gguf.KeyAlignment); ok {
		unit = out.Alignment
	}
	if out.DataOffset%unit != 0 {
		return verifyError(output, "", fmt.Errorf("data region starts at %d, not a multiple of %d", out.DataOffset, unit))
	}

	want := 0
	for _, p := range inputs {
		want += len(p.Tensors)
	}
	if len(out.Tensors) != want {
		return verifyError(output, "", fmt.Errorf("output has %d tensors, parts have %d", len(out.Tensors), want))
	}

	var outBuf, srcBuf []byte
	var prevEnd uint64
	i := 0
	for _, p := range inputs {
		for _, src := range p.Tensors {
			if err := ctx.Err(); err != nil {
				return err
			}
			got := out.Tensors[i]
			i++

			if got.Name != src.Name {
				return verifyError(output, got.Name, fmt.Errorf("tensor %d is %q, want %q from %s", i-1, got.Name, src.Name, p.Path))
			}
			if got.Type != src.Type || !slices.Equal(got.Dims, src.Dims) {
				return verifyError(output, got.Name, fmt.Errorf("shape %v %s, want %v %s", got.Dims, got.Type, src.Dims, src.Type))
			}
			if got.Offset%unit != 0 {
				return verifyError(output, got.Name, fmt.Errorf("offset %d is not a multiple of %d", got.Offset, unit))
			}
			if got.Offset < prevEnd {
				return verifyError(output, got.Name, fmt.Errorf("offset %d overlaps previous tensor ending at %d", got.Offset, prevEnd))
			}
			size, err := got.Size()
			if err != nil {
				return verifyError(output, got.Name, err)
			}
			prevEnd = got.Offset + size

			outBuf, err = out.ReadTensor(got, outBuf)
			if err != nil {
				return ioError(output, err)
			}
			srcBuf, err = p.ReadTensor(src, srcBuf)
			if err != nil {
				return ioError(p.Path, err)
			}
			if !bytes.Equal(outBuf, srcBuf) {
				return verifyError(output, got.Name, fmt.Errorf("payload differs from %s", p.Path))
			}
		}
	}
	return nil
}

func verifyKV(out, first *gguf.Part) error {
	n, ok := gguf.GetUint64(out.KV, gguf.KeySplitCount)
	if !ok || n != 0 {
		return &Error{Kind: ErrVerify, Path: out.Path, Key: gguf.KeySplitCount, Err: errors.New("split count is not 0")}
	}

	want := first.KV.Clone()
	want.Set(gguf.KeySplitCount, gguf.Uint16(0))
	if !slices.Equal(out.KV.Keys(), want.Keys()) {
		return verifyError(out.Path, "", fmt.Errorf("keys differ from %s", first.Path))
	}
	// Values are compared in their encoded form so NaN floats match.
	var gotBuf, wantBuf []byte
	for k, v := range want.All() {
		got, _ := out.KV.Get(k)
		var err error
		if gotBuf, err = gguf.AppendValue(gotBuf[:0], k, got); err != nil {
			return &Error{Kind: ErrVerify, Path: out.Path, Key: k, Err: err}
		}
		if wantBuf, err = gguf.AppendValue(wantBuf[:0], k, v); err != nil {
			return &Error{Kind: ErrVerify, Path: first.Path, Key: k, Err: err}
		}
		if !bytes.Equal(gotBuf, wantBuf) {
			return &Error{Kind: ErrVerify, Path: out.Path, Key: k, Err: fmt.Errorf("value differs from %s", first.Path)}
		}
	}
	return nil
}

func verifyError(path, tensor string, err error) error {
	return &Error{Kind: ErrVerify, Path: path, Tensor: tensor, Err: err}
}
