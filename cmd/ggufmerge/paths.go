package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/ggufmerge/internal/merge"
)

const envOutDir = "GGUFMERGE_OUT_DIR"

// expandParts turns the merge arguments into the ordered part list. A
// single argument naming the first file of a split set expands to the
// whole set.
func expandParts(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one part is required")
	}
	if len(args) == 1 {
		if _, no, count, ok := merge.ParseSplitPath(args[0]); ok && no == 1 && count > 1 {
			return merge.SplitPaths(filepath.Clean(args[0]))
		}
	}
	parts := make([]string, len(args))
	for i, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			return nil, fmt.Errorf("part %d: empty path", i)
		}
		parts[i] = filepath.Clean(a)
	}
	return parts, nil
}

// resolveMergeOut picks the output path. An explicit --out wins; otherwise
// the name is derived from the first part and placed in $GGUFMERGE_OUT_DIR,
// the configured out_dir, or next to the first part, in that order.
func resolveMergeOut(first, outFlag, cfgOutDir string) (string, bool, error) {
	outFlag = strings.TrimSpace(outFlag)
	if outFlag != "" {
		outPath := filepath.Clean(outFlag)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return "", false, err
		}
		return outPath, false, nil
	}

	name := filepath.Base(merge.MergedPath(first))
	outDir := strings.TrimSpace(os.Getenv(envOutDir))
	if outDir == "" {
		outDir = strings.TrimSpace(cfgOutDir)
	}
	if outDir == "" {
		outDir = filepath.Dir(first)
	}

	outPath := filepath.Join(outDir, name)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", true, err
	}
	return outPath, true, nil
}
