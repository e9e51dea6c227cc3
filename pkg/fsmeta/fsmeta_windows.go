//go:build windows

package fsmeta

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// Stat reports the creation and access times of path using the
// syscall.Win32FileAttributeData NTFS exposes through os.Stat's Sys().
func Stat(path string) (Times, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Times{}, fmt.Errorf("fsmeta: stat %s: %w", path, err)
	}

	sys, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return Times{Created: info.ModTime(), Accessed: info.ModTime()}, nil
	}

	return Times{
		Created:  time.Unix(0, sys.CreationTime.Nanoseconds()),
		Accessed: time.Unix(0, sys.LastAccessTime.Nanoseconds()),
	}, nil
}
