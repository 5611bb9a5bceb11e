//go:build linux

package gguf

import (
	"os"

	"golang.org/x/sys/unix"
)

// adviseSequential hints the kernel that the file is read front to back.
func adviseSequential(f *os.File, size int64) {
	_ = unix.Fadvise(int(f.Fd()), 0, size, unix.FADV_SEQUENTIAL)
}
