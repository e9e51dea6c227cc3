// Package journal provides append-only audit logging for installer
// extraction and patch-apply runs. Each operation is logged once it
// completes, recording what was done and whether it succeeded.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Entry represents a single logged operation.
type Entry struct {
	Timestamp time.Time     `json:"ts"`
	Type      string        `json:"type"` // "extract", "patch-apply", "patch-inspect"
	Source    string        `json:"src"`  // installer or patch path
	Dest      string        `json:"dst,omitempty"`
	Files     int           `json:"files,omitempty"` // entries written or records applied
	Bytes     int64         `json:"bytes,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Success   bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
}

// Writer appends journal entries to a JSONL file. Each Log call writes one
// JSON line and calls file.Sync() to ensure durability.
//
// Writer is safe for concurrent use.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a journal writer at the given path. The parent directory
// must already exist. The file is created if it does not exist, or appended to
// if it does.
func NewWriter(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return &Writer{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Log writes an entry to the journal and syncs to disk.
func (w *Writer) Log(entry Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := w.encoder.Encode(entry); err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}

	return nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.file.Close()
}
