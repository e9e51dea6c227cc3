// Package externaltool shells out to a 7z-compatible archiver for archive
// formats this module does not parse itself (Cabinet, Windows Installer).
package externaltool

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// sevenZipCandidates lists the binary names/paths tried, in order, to
// locate a 7z-compatible archiver. The Windows default install path is
// tried directly since 7-Zip does not normally put itself on PATH there.
var sevenZipCandidates = []string{
	"7z",
	`C:\Program Files\7-Zip\7z.exe`,
}

// ErrNotFound is returned when no 7z-compatible archiver can be located.
type ErrNotFound struct {
	Tried []string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("externaltool: no 7z-compatible archiver found (tried %v)", e.Tried)
}

// find locates an available 7z binary, returning its resolved path.
func find() (string, error) {
	for _, candidate := range sevenZipCandidates {
		if runtime.GOOS != "windows" && candidate != "7z" {
			continue
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", &ErrNotFound{Tried: sevenZipCandidates}
}

// Extract expands the archive at path into outDir using an external
// 7z-compatible tool, overwriting any existing output. outDir is created
// by 7z itself if it does not already exist.
func Extract(ctx context.Context, path, outDir string) error {
	bin, err := find()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, bin, "x", "-y", "-o"+outDir, path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("externaltool: %s x %s: %w: %s", bin, path, err, output)
	}

	return nil
}
