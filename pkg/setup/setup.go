// Package setup provides a single façade over the two setup table schemas
// (nfo300, installshield), detecting which one a reader holds and exposing
// a uniform entry-enumeration and extraction API.
package setup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"instarch/pkg/installshield"
	"instarch/pkg/nfo300"
	"instarch/pkg/sanitizer"
	"instarch/pkg/scan"
)

// Entry is a setup table entry, uniform across both schemas.
type Entry struct {
	Name string
	Size int64
}

// Setup is a single-shot façade: entries are enumerated, payloads are
// streamed, then the object is discarded. It owns one seekable reader.
type Setup interface {
	// Entries returns the installer's embedded file table.
	Entries() ([]Entry, error)
	// EntryReader returns a reader over entry's payload bytes.
	EntryReader(entry Entry) (io.Reader, error)
	// Size returns the number of bytes from the setup header to the end
	// of the installer.
	Size() int64
	// ExtractTo writes every entry to dir under a sanitized, collision-free
	// name and returns the paths written, in entry order.
	ExtractTo(dir string) ([]string, error)
}

// nfo300Setup adapts *nfo300.Parser to Setup.
type nfo300Setup struct{ p *nfo300.Parser }

func (s nfo300Setup) Entries() ([]Entry, error) {
	raw, err := s.p.Entries()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(raw))
	for i, e := range raw {
		entries[i] = Entry{Name: e.Name, Size: e.Size}
	}
	return entries, nil
}

func (s nfo300Setup) EntryReader(entry Entry) (io.Reader, error) {
	raw, err := s.p.Entries()
	if err != nil {
		return nil, err
	}
	for _, e := range raw {
		if e.Name == entry.Name {
			return s.p.EntryReader(e)
		}
	}
	return nil, fmt.Errorf("setup: entry %q not found", entry.Name)
}

func (s nfo300Setup) Size() int64 { return s.p.Size() }

func (s nfo300Setup) ExtractTo(dir string) ([]string, error) {
	raw, err := s.p.Entries()
	if err != nil {
		return nil, err
	}
	return extractEntries(dir, len(raw), func(i int) (string, io.Reader, error) {
		r, err := s.p.EntryReader(raw[i])
		return raw[i].Name, r, err
	})
}

// installShieldSetup adapts *installshield.Parser to Setup.
type installShieldSetup struct{ p *installshield.Parser }

func (s installShieldSetup) Entries() ([]Entry, error) {
	raw, err := s.p.Entries()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, len(raw))
	for i, e := range raw {
		entries[i] = Entry{Name: e.Name, Size: e.Size}
	}
	return entries, nil
}

func (s installShieldSetup) EntryReader(entry Entry) (io.Reader, error) {
	raw, err := s.p.Entries()
	if err != nil {
		return nil, err
	}
	for _, e := range raw {
		if e.Name == entry.Name {
			return s.p.EntryReader(e)
		}
	}
	return nil, fmt.Errorf("setup: entry %q not found", entry.Name)
}

func (s installShieldSetup) Size() int64 { return s.p.Size() }

func (s installShieldSetup) ExtractTo(dir string) ([]string, error) {
	raw, err := s.p.Entries()
	if err != nil {
		return nil, err
	}
	return extractEntries(dir, len(raw), func(i int) (string, io.Reader, error) {
		r, err := s.p.EntryReader(raw[i])
		return raw[i].Name, r, err
	})
}

// extractEntries drives the shared sanitize-write-disambiguate loop both
// schema adapters need, calling next(i) to fetch the i'th entry's original
// name and payload reader in order.
func extractEntries(dir string, n int, next func(i int) (name string, r io.Reader, err error)) ([]string, error) {
	used := make(map[string]int)
	paths := make([]string, 0, n)

	for i := range n {
		name, r, err := next(i)
		if err != nil {
			return nil, fmt.Errorf("setup: open entry %d payload: %w", i, err)
		}

		sanitized := sanitizer.SanitizeEntryName(name)
		count := used[sanitized]
		used[sanitized] = count + 1
		finalName := sanitizer.ResolveNameConflict(sanitized, count)

		outPath := filepath.Join(dir, finalName)
		f, err := os.Create(outPath)
		if err != nil {
			return nil, fmt.Errorf("setup: create %s: %w", outPath, err)
		}

		if _, err := io.Copy(f, r); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("setup: write %s: %w", outPath, err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("setup: close %s: %w", outPath, err)
		}

		paths = append(paths, outPath)
	}

	return paths, nil
}

// Detect inspects r to determine which setup schema it holds and returns a
// Setup façade over it.
func Detect(r io.ReadSeeker) (Setup, error) {
	desc, err := scan.DetectSetupFormat(r)
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	switch desc.Format {
	case scan.FormatNFO300:
		p, err := nfo300.New(r, desc.Offset)
		if err != nil {
			return nil, err
		}
		return nfo300Setup{p: p}, nil
	case scan.FormatInstallShield:
		p, err := installshield.New(r, desc.Offset)
		if err != nil {
			return nil, err
		}
		return installShieldSetup{p: p}, nil
	default:
		return nil, fmt.Errorf("setup: unrecognized format")
	}
}
