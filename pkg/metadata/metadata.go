// Package metadata manages the .instarch/ directory used for safety infrastructure.
package metadata

import (
	"fmt"
	"path/filepath"
	"time"

	"instarch/pkg/safepath"
)

// DirName is the name of the metadata directory inside the target.
const DirName = ".instarch"

// Dir provides access to the .instarch/ metadata directory structure.
type Dir struct {
	root      string              // absolute path to .instarch/
	validator *safepath.Validator // parent target's validator
}

// Init creates and returns a Dir for the given target root.
// It creates the .instarch/ directory if it does not already exist.
func Init(targetRoot string, validator *safepath.Validator) (*Dir, error) {
	metaRoot := filepath.Join(targetRoot, DirName)

	if err := validator.SafeMkdirAll(metaRoot); err != nil {
		return nil, fmt.Errorf("create metadata directory: %w", err)
	}

	return &Dir{
		root:      metaRoot,
		validator: validator,
	}, nil
}

// Root returns the absolute path to the .instarch/ directory.
func (d *Dir) Root() string {
	return d.root
}

// JournalPath returns the journal file path for a given run ID.
func (d *Dir) JournalPath(runID string) string {
	return filepath.Join(d.root, "journal", runID+".jsonl")
}

// ReportPath returns the extraction report path for a given run ID.
func (d *Dir) ReportPath(runID string) string {
	return filepath.Join(d.root, "reports", runID+".txt")
}

// LockPath returns the advisory lock file path.
func (d *Dir) LockPath() string {
	return filepath.Join(d.root, "lock")
}

// RunID generates a timestamped run ID for the given command.
// Format: <command>-<YYYYMMDDTHHmmss>.
func (d *Dir) RunID(command string) string {
	return command + "-" + time.Now().UTC().Format("20060102T150405")
}
