package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"instarch/pkg/filelock"
	"instarch/pkg/journal"
	"instarch/pkg/metadata"
	"instarch/pkg/orchestrator"
	"instarch/pkg/safepath"
)

// lockOutDir creates outDir (and its .instarch/ metadata directory) if
// needed and takes an advisory lock on it, returning the metadata handle
// and an acquired lock the caller must release.
func lockOutDir(outDir string) (*metadata.Dir, *filelock.Lock, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create out dir %s: %w", outDir, err)
	}

	validator, err := safepath.New(outDir)
	if err != nil {
		return nil, nil, fmt.Errorf("validate out dir %s: %w", outDir, err)
	}

	meta, err := metadata.Init(outDir, validator)
	if err != nil {
		return nil, nil, fmt.Errorf("init metadata dir: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(meta.LockPath()), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create lock dir: %w", err)
	}

	lock, err := filelock.Acquire(meta.LockPath())
	if err != nil {
		return nil, nil, fmt.Errorf("lock %s: %w", outDir, err)
	}

	return meta, lock, nil
}

// newJournalWriter opens the run's journal file under meta's .instarch/
// directory, naming the run after command.
func newJournalWriter(meta *metadata.Dir, command string) (*journal.Writer, error) {
	runID := meta.RunID(command)
	path := meta.JournalPath(runID)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	return journal.NewWriter(path)
}

// journalEntryFor builds the journal entry describing one extraction
// attempt's outcome.
func journalEntryFor(installer string, rep orchestrator.Report, err error, duration time.Duration) journal.Entry {
	entry := journal.Entry{
		Type:     "extract",
		Source:   installer,
		Duration: duration,
		Success:  err == nil,
	}
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	entry.Files = len(rep.ExpandedFiles) + len(rep.EntryNames)
	entry.Dest = rep.ReportPath
	return entry
}
