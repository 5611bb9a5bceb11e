package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/ggufmerge/internal/merge"
)

func TestResolveMergeOut(t *testing.T) {
	t.Run("explicit output wins", func(t *testing.T) {
		t.Setenv(envOutDir, t.TempDir())
		outPath := filepath.Join(t.TempDir(), "nested", "model.gguf")

		got, defaulted, err := resolveMergeOut("/models/m-00001-of-00002.gguf", outPath, "/cfg")
		if err != nil {
			t.Fatalf("resolveMergeOut returned error: %v", err)
		}
		if defaulted {
			t.Fatalf("expected explicit output to not be defaulted")
		}
		if got != filepath.Clean(outPath) {
			t.Fatalf("unexpected output path: got %q want %q", got, filepath.Clean(outPath))
		}
		if _, err := os.Stat(filepath.Dir(got)); err != nil {
			t.Fatalf("expected output directory to exist: %v", err)
		}
	})

	t.Run("env output dir overrides config", func(t *testing.T) {
		envDir := filepath.Join(t.TempDir(), "merged")
		t.Setenv(envOutDir, envDir)

		got, defaulted, err := resolveMergeOut("/models/qwen-00001-of-00004.gguf", "", t.TempDir())
		if err != nil {
			t.Fatalf("resolveMergeOut returned error: %v", err)
		}
		if !defaulted {
			t.Fatalf("expected output to be defaulted")
		}
		if want := filepath.Join(envDir, "qwen.gguf"); got != want {
			t.Fatalf("unexpected output path: got %q want %q", got, want)
		}
	})

	t.Run("config output dir", func(t *testing.T) {
		t.Setenv(envOutDir, "")
		cfgDir := filepath.Join(t.TempDir(), "cfg-out")

		got, _, err := resolveMergeOut("/models/qwen-00001-of-00004.gguf", "", cfgDir)
		if err != nil {
			t.Fatalf("resolveMergeOut returned error: %v", err)
		}
		if want := filepath.Join(cfgDir, "qwen.gguf"); got != want {
			t.Fatalf("unexpected output path: got %q want %q", got, want)
		}
	})

	t.Run("default is next to the first part", func(t *testing.T) {
		t.Setenv(envOutDir, "")
		dir := t.TempDir()

		got, defaulted, err := resolveMergeOut(filepath.Join(dir, "a.gguf"), "", "")
		if err != nil {
			t.Fatalf("resolveMergeOut returned error: %v", err)
		}
		if !defaulted {
			t.Fatalf("expected output to be defaulted")
		}
		if want := filepath.Join(dir, "a.merged.gguf"); got != want {
			t.Fatalf("unexpected output path: got %q want %q", got, want)
		}
	})
}

func TestExpandParts(t *testing.T) {
	dir := t.TempDir()
	prefix := filepath.Join(dir, "model")
	for i := 1; i <= 3; i++ {
		if err := os.WriteFile(merge.SplitPath(prefix, i, 3), []byte("x"), 0o644); err != nil {
			t.Fatalf("write split %d: %v", i, err)
		}
	}

	t.Run("first split expands", func(t *testing.T) {
		got, err := expandParts([]string{merge.SplitPath(prefix, 1, 3)})
		if err != nil {
			t.Fatalf("expandParts returned error: %v", err)
		}
		want := []string{
			merge.SplitPath(prefix, 1, 3),
			merge.SplitPath(prefix, 2, 3),
			merge.SplitPath(prefix, 3, 3),
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("parts (-want +got):\n%s", diff)
		}
	})

	t.Run("explicit list is kept in order", func(t *testing.T) {
		args := []string{"b.gguf", "./a.gguf"}
		got, err := expandParts(args)
		if err != nil {
			t.Fatalf("expandParts returned error: %v", err)
		}
		if diff := cmp.Diff([]string{"b.gguf", "a.gguf"}, got); diff != "" {
			t.Fatalf("parts (-want +got):\n%s", diff)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := expandParts(nil); err == nil {
			t.Fatal("expected error for no parts")
		}
		if _, err := expandParts([]string{"a.gguf", " "}); err == nil {
			t.Fatal("expected error for blank part")
		}
	})
}
