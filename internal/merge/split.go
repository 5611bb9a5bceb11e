package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

// splitPattern matches llama.cpp split names: model-00001-of-00003.gguf
var splitPattern = regexp.MustCompile(`^(.+)-(\d{5})-of-(\d{5})\.gguf$`)

// SplitPath returns the path of split no (1-based) out of count for prefix.
func SplitPath(prefix string, no, count int) string {
	return fmt.Sprintf("%s-%05d-of-%05d.gguf", prefix, no, count)
}

// ParseSplitPath splits a split file path into its prefix, number and
// count. ok is false when path does not follow the split naming.
func ParseSplitPath(path string) (prefix string, no, count int, ok bool) {
	dir, base := filepath.Split(path)
	m := splitPattern.FindStringSubmatch(base)
	if m == nil {
		return "", 0, 0, false
	}
	no, _ = strconv.Atoi(m[2])
	count, _ = strconv.Atoi(m[3])
	if no < 1 || count < 1 || no > count {
		return "", 0, 0, false
	}
	return dir + m[1], no, count, true
}

// SplitPaths expands the first split of a set into the paths of every
// split, in order. Each path must exist.
func SplitPaths(first string) ([]string, error) {
	prefix, no, count, ok := ParseSplitPath(first)
	if !ok {
		return nil, &Error{Kind: ErrPrecondition, Path: first, Err: errors.New("not a split file name (want <prefix>-00001-of-0000N.gguf)")}
	}
	if no != 1 {
		return nil, &Error{Kind: ErrPrecondition, Path: first, Err: fmt.Errorf("split %d is not the first of %d", no, count)}
	}

	paths := make([]string, count)
	for i := range count {
		p := SplitPath(prefix, i+1, count)
		st, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &Error{Kind: ErrPrecondition, Path: p, Err: fmt.Errorf("split %d of %d is missing", i+1, count)}
			}
			return nil, ioError(p, err)
		}
		if st.IsDir() {
			return nil, &Error{Kind: ErrPrecondition, Path: p, Err: errors.New("is a directory")}
		}
		paths[i] = p
	}
	return paths, nil
}

// MergedPath derives the default output name for a split set:
// model-00001-of-00003.gguf becomes model.gguf. Other names get a
// ".merged.gguf" suffix in place of their extension.
func MergedPath(first string) string {
	if prefix, _, _, ok := ParseSplitPath(first); ok {
		return prefix + ".gguf"
	}
	ext := filepath.Ext(first)
	return first[:len(first)-len(ext)] + ".merged.gguf"
}
