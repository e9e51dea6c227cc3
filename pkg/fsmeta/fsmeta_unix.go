//go:build !windows

package fsmeta

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// Stat reports the creation and access times of path. Most Unix
// filesystems don't expose a true birth time through syscall.Stat_t, so
// Created falls back to the modification time reported by os.Stat.
func Stat(path string) (Times, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Times{}, fmt.Errorf("fsmeta: stat %s: %w", path, err)
	}

	accessed := info.ModTime()
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		accessed = time.Unix(sys.Atim.Sec, sys.Atim.Nsec)
	}

	return Times{
		Created:  info.ModTime(),
		Accessed: accessed,
	}, nil
}
