package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/ggufmerge/internal/gguf"
	"github.com/samcharles93/ggufmerge/internal/merge"
)

// writeSplitSet writes a two-part split set under dir and returns the
// path of the first part.
func writeSplitSet(t *testing.T, dir string) string {
	t.Helper()

	prefix := filepath.Join(dir, "tiny")
	payloads := [][]byte{[]byte("0123456789"), []byte("abcdefghijklmnopq")}
	for i, data := range payloads {
		c := gguf.NewContainer()
		c.KV.Set(gguf.KeyArchitecture, gguf.String("llama"))
		c.KV.Set("general.name", gguf.String("tiny"))
		c.KV.Set(gguf.KeySplitNo, gguf.Uint16(uint16(i)))
		c.KV.Set(gguf.KeySplitCount, gguf.Uint16(2))
		c.Tensors = []gguf.TensorInfo{{
			Name: "blk." + string(rune('0'+i)) + ".weight",
			Dims: []uint64{uint64(len(data))},
			Type: gguf.TypeI8,
		}}

		var buf bytes.Buffer
		if _, err := c.WriteMeta(&buf, c.Alignment); err != nil {
			t.Fatalf("write meta: %v", err)
		}
		buf.Write(data)
		buf.Write(make([]byte, gguf.Align(uint64(len(data)), c.Alignment)-uint64(len(data))))
		if err := os.WriteFile(merge.SplitPath(prefix, i+1, 2), buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return merge.SplitPath(prefix, 1, 2)
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	err := newApp(&stdout, io.Discard).Run(context.Background(), append([]string{"ggufmerge"}, args...))
	return stdout.String(), err
}

func TestMergeCommand(t *testing.T) {
	cfgHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgHome)
	t.Setenv(envOutDir, "")
	if err := os.MkdirAll(filepath.Join(cfgHome, "ggufmerge"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := "alignment: 32\nlog_format: json\n"
	if err := os.WriteFile(filepath.Join(cfgHome, "ggufmerge", "config.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	first := writeSplitSet(t, dir)
	reportPath := filepath.Join(dir, "report.json")

	if _, err := runApp(t, "merge", "--verify", "--report", reportPath, first); err != nil {
		t.Fatalf("merge: %v", err)
	}

	out := filepath.Join(dir, "tiny.gguf")
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected default output %s: %v", out, err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var rep struct {
		Output    string `json:"output"`
		Alignment uint64 `json:"alignment"`
		State     string `json:"state"`
		Verified  bool   `json:"verified"`
		Tensors   []struct {
			Name    string `json:"name"`
			Padding uint64 `json:"padding"`
		} `json:"tensors"`
	}
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if rep.Output != out || rep.State != "done" || !rep.Verified {
		t.Fatalf("unexpected report: %s", data)
	}
	if rep.Alignment != 32 {
		t.Fatalf("config alignment not applied: %d", rep.Alignment)
	}
	if len(rep.Tensors) != 2 || rep.Tensors[0].Padding != 22 || rep.Tensors[1].Padding != 15 {
		t.Fatalf("unexpected placements: %s", data)
	}

	// The output exists now, so a second merge must refuse to overwrite it.
	if _, err := runApp(t, "merge", first); err == nil || !strings.Contains(err.Error(), "precondition") {
		t.Fatalf("expected precondition error, got %v", err)
	}

	// An explicit flag beats the config file.
	out16 := filepath.Join(dir, "tiny16.gguf")
	if _, err := runApp(t, "merge", "--alignment", "16", "--out", out16, first); err != nil {
		t.Fatalf("merge with flag: %v", err)
	}
	stdout, err := runApp(t, "inspect", "--json", "--kv", out16)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var doc struct {
		TensorCount int `json:"tensor_count"`
		KV          []struct {
			Key   string `json:"key"`
			Value any    `json:"value"`
		} `json:"kv"`
		Tensors []struct {
			Offset uint64 `json:"offset"`
		} `json:"tensors"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("decode inspect output: %v\n%s", err, stdout)
	}
	if doc.TensorCount != 2 || len(doc.Tensors) != 2 || doc.Tensors[1].Offset != 16 {
		t.Fatalf("unexpected inspect output: %s", stdout)
	}
	found := false
	for _, kv := range doc.KV {
		if kv.Key == gguf.KeySplitCount {
			found = true
			if n, ok := kv.Value.(float64); !ok || n != 0 {
				t.Fatalf("split.count = %v", kv.Value)
			}
		}
	}
	if !found {
		t.Fatalf("split.count missing from inspect output: %s", stdout)
	}
}

func TestInspectText(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	first := writeSplitSet(t, t.TempDir())
	stdout, err := runApp(t, "inspect", "--tensors=-1", first)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"Model: tiny (llama)", "GGUF v3", "split.count:", "blk.0.weight", "dims=[10]"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in output:\n%s", want, stdout)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	stdout, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "version:") {
		t.Fatalf("unexpected output %q", stdout)
	}
}
