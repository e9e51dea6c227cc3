// Package report writes a plain-text inventory of an extraction's output
// tree: one line per file, giving its name, size, and timestamps.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"instarch/pkg/collector"
	"instarch/pkg/fsmeta"
	"instarch/pkg/metadata"
)

// Line is one reported file's inventory row.
type Line struct {
	Name     string
	Size     int64
	Created  string
	Accessed string
}

// timeLayout matches the teacher's existing timestamp formatting
// convention: RFC3339 without sub-second precision, stable across runs.
const timeLayout = "2006-01-02T15:04:05Z07:00"

// Collect walks dir and builds one Line per regular file found, skipping
// the instarch metadata directory. Lines are returned in the order
// [collector.Collector.Collect] visits them.
func Collect(dir string) ([]Line, error) {
	c := collector.New(collector.Options{SkipDirs: []string{metadata.DirName}})

	files, err := c.Collect(dir)
	if err != nil {
		return nil, fmt.Errorf("report: collect %s: %w", dir, err)
	}

	lines := make([]Line, 0, len(files))
	for _, f := range files {
		times, err := fsmeta.Stat(f.Path)
		if err != nil {
			return nil, fmt.Errorf("report: stat %s: %w", f.Path, err)
		}

		rel, err := filepath.Rel(dir, f.Path)
		if err != nil {
			rel = f.Name
		}

		lines = append(lines, Line{
			Name:     rel,
			Size:     f.Size,
			Created:  times.Created.Format(timeLayout),
			Accessed: times.Accessed.Format(timeLayout),
		})
	}

	return lines, nil
}

// Write formats lines as "<name> - <size> - <created> - <accessed>" rows,
// one per line, and writes them to w.
func Write(w io.Writer, lines []Line) error {
	bw := bufio.NewWriter(w)

	for _, l := range lines {
		if _, err := fmt.Fprintf(bw, "%s - %d - %s - %s\n", l.Name, l.Size, l.Created, l.Accessed); err != nil {
			return fmt.Errorf("report: write line for %s: %w", l.Name, err)
		}
	}

	return bw.Flush()
}

// WriteFile collects dir's contents and writes the resulting report to
// path, creating or truncating it.
func WriteFile(dir, path string) error {
	lines, err := Collect(dir)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}

	if err := Write(f, lines); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
