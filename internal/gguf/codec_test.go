package gguf

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// writeTestFile lays out c and payloads as a GGUF file at path. Tensor
// offsets are assigned in order using the container alignment.
func writeTestFile(t *testing.T, path string, c *Container, payloads [][]byte) {
	t.Helper()

	var off uint64
	for i := range c.Tensors {
		c.Tensors[i].Offset = off
		off += Align(uint64(len(payloads[i])), c.Alignment)
	}

	var buf bytes.Buffer
	if _, err := c.WriteMeta(&buf, c.Alignment); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	for _, p := range payloads {
		buf.Write(p)
		buf.Write(make([]byte, Align(uint64(len(p)), c.Alignment)-uint64(len(p))))
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func sampleContainer() *Container {
	c := NewContainer()
	c.KV.Set(KeyArchitecture, String("llama"))
	c.KV.Set(KeySplitCount, Uint16(2))
	c.KV.Set("llama.block_count", Uint32(2))
	c.KV.Set("llama.rope.freq_base", Value{Type: TypeFloat32, Value: float32(10000)})
	c.KV.Set("tokenizer.ggml.add_bos_token", Value{Type: TypeBool, Value: true})
	c.KV.Set("tokenizer.ggml.tokens", Value{Type: TypeArray, Value: ArrayValue{
		ElemType: TypeString,
		Values:   []any{"<s>", "</s>", "hello"},
	}})
	c.KV.Set("tokenizer.ggml.scores", Value{Type: TypeArray, Value: ArrayValue{
		ElemType: TypeFloat32,
		Values:   []any{float32(0), float32(-1), float32(-2.5)},
	}})
	c.KV.Set("general.offset", Value{Type: TypeInt64, Value: int64(-42)})
	c.Tensors = []TensorInfo{
		{Name: "token_embd.weight", Dims: []uint64{4, 3}, Type: TypeF32},
		{Name: "blk.0.attn_q.weight", Dims: []uint64{10}, Type: TypeI8},
	}
	return c
}

func TestWriteMetaDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	c := sampleContainer()
	c.Tensors[1].Offset = 48

	var buf bytes.Buffer
	n, err := c.WriteMeta(&buf, c.Alignment)
	if err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if int(n) != buf.Len() {
		t.Fatalf("reported %d bytes, wrote %d", n, buf.Len())
	}
	if n%int64(c.Alignment) != 0 {
		t.Fatalf("meta size %d not aligned to %d", n, c.Alignment)
	}
	size, err := c.MetaSize(c.Alignment)
	if err != nil {
		t.Fatalf("meta size: %v", err)
	}
	if size != uint64(n) {
		t.Fatalf("MetaSize %d disagrees with WriteMeta %d", size, n)
	}

	got, dataOffset, err := Decode(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dataOffset != uint64(n) {
		t.Fatalf("data offset: got %d want %d", dataOffset, n)
	}
	if diff := cmp.Diff(c.KV.Keys(), got.KV.Keys()); diff != "" {
		t.Fatalf("key order mismatch (-want +got):\n%s", diff)
	}
	for k, want := range c.KV.All() {
		v, _ := got.KV.Get(k)
		if diff := cmp.Diff(want, v); diff != "" {
			t.Fatalf("value %s mismatch (-want +got):\n%s", k, diff)
		}
	}
	if diff := cmp.Diff(c.Tensors, got.Tensors); diff != "" {
		t.Fatalf("tensor directory mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteMetaRejectsMistypedValue(t *testing.T) {
	t.Parallel()

	c := NewContainer()
	c.KV.Set(KeySplitCount, Value{Type: TypeUint16, Value: uint32(3)})
	if _, err := c.MetaSize(16); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	var good bytes.Buffer
	if _, err := sampleContainer().WriteMeta(&good, 32); err != nil {
		t.Fatalf("write meta: %v", err)
	}

	badVersion := bytes.Clone(good.Bytes())
	badVersion[4] = 1

	badAlign := NewContainer()
	badAlign.KV.Set(KeyAlignment, Uint32(24))
	var badAlignBuf bytes.Buffer
	if _, err := badAlign.WriteMeta(&badAlignBuf, 32); err != nil {
		t.Fatalf("write meta: %v", err)
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrCorrupt},
		{"bad magic", append([]byte("GGML"), good.Bytes()[4:]...), ErrInvalidMagic},
		{"version 1", badVersion, ErrUnsupportedVersion},
		{"truncated kv", good.Bytes()[:40], ErrCorrupt},
		{"truncated tensors", good.Bytes()[:good.Len()-40], ErrCorrupt},
		{"bad alignment", badAlignBuf.Bytes(), ErrCorrupt},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Decode(bytes.NewReader(tc.data), int64(len(tc.data)))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestOpenAndReadTensor(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model.gguf")
	c := sampleContainer()
	embd := bytes.Repeat([]byte{0xAB}, 48)
	attn := []byte("0123456789")
	writeTestFile(t, path, c, [][]byte{embd, attn})

	p, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = p.Close() }()

	if p.DataOffset%p.Alignment != 0 {
		t.Fatalf("data offset %d not aligned", p.DataOffset)
	}
	info, ok := p.TensorByName("blk.0.attn_q.weight")
	if !ok {
		t.Fatal("missing tensor")
	}

	buf := make([]byte, 0, 4)
	buf, err = p.ReadTensor(info, buf)
	if err != nil {
		t.Fatalf("read tensor: %v", err)
	}
	if !bytes.Equal(buf, attn) {
		t.Fatalf("payload mismatch: %q", buf)
	}

	// A large enough buffer is reused, not reallocated.
	big := make([]byte, 0, 128)
	got, err := p.ReadTensor(p.Tensors[0], big)
	if err != nil {
		t.Fatalf("read tensor: %v", err)
	}
	if &got[0] != &big[:1][0] {
		t.Fatal("expected buffer reuse")
	}
	if !bytes.Equal(got, embd) {
		t.Fatal("embedding payload mismatch")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := p.ReadTensor(info, nil); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected os.ErrClosed after close, got %v", err)
	}
}

func TestOpenRejectsTruncatedPayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.gguf")
	writeTestFile(t, path, sampleContainer(), [][]byte{make([]byte, 48), make([]byte, 10)})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data[:len(data)-30], 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestOpenRejectsWrappingOffset(t *testing.T) {
	t.Parallel()

	c := NewContainer()
	c.KV.Set(KeyArchitecture, String("llama"))
	c.Tensors = []TensorInfo{{Name: "w", Dims: []uint64{10}, Type: TypeI8}}
	metaSize, err := c.MetaSize(c.Alignment)
	if err != nil {
		t.Fatalf("meta size: %v", err)
	}
	// DataOffset+Offset wraps to 0, the start of the header.
	c.Tensors[0].Offset = math.MaxUint64 - metaSize + 1

	var buf bytes.Buffer
	if _, err := c.WriteMeta(&buf, c.Alignment); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	buf.Write(make([]byte, c.Alignment))
	path := filepath.Join(t.TempDir(), "wrap.gguf")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	if p, err := Open(path); !errors.Is(err, ErrCorrupt) {
		if err == nil {
			_ = p.Close()
		}
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestPartCheckAlignment(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model.gguf")
	writeTestFile(t, path, sampleContainer(), [][]byte{make([]byte, 48), make([]byte, 10)})
	p, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = p.Close() }()

	if err := p.CheckAlignment(16); err != nil {
		t.Fatalf("offsets should be 16-aligned: %v", err)
	}
	// The second tensor starts at 64.
	if err := p.CheckAlignment(128); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "nope.gguf"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
