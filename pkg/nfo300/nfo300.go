// Package nfo300 parses the NFO300 self-extracting installer's embedded
// file table: an ASCII marker followed by a quoted-CSV table of entry
// name/checksum/size triples, bounded to 1000 bytes.
package nfo300

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"instarch/pkg/scan"
)

// Tag is the ASCII marker identifying an NFO300 header.
var Tag = []byte("NFO300")

// maxTableBytes bounds the quoted-CSV entry table, including the tag's own
// line.
const maxTableBytes = 1000

// Entry describes one file embedded in the installer's payload.
type Entry struct {
	Name string
	// Size is parsed from the on-disk int32 field and widened by sign
	// extension, so a negative on-disk size stays negative here rather
	// than wrapping to a huge unsigned value. Downstream readers treat a
	// negative Size as an already-exhausted entry.
	Size int64
	// Checksum is an opaque declared value; instarch never recomputes or
	// verifies it.
	Checksum int32
	// Offset is the absolute byte offset of the entry's payload within
	// the installer.
	Offset int64
}

// Parser reads the NFO300 table and streams individual entry payloads from
// a single underlying reader.
type Parser struct {
	r      io.ReadSeeker
	offset int64
	size   int64
}

// Detect locates the NFO300 tag within the first scan.MaxPESize bytes of r
// and returns a Parser positioned to read its entry table. r must support
// seeking; Detect leaves it positioned arbitrarily on return.
func Detect(r io.ReadSeeker) (*Parser, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("nfo300: seek start: %w", err)
	}

	offset, found, err := scan.FindNeedle(io.LimitReader(r, scan.MaxPESize), Tag)
	if err != nil {
		return nil, fmt.Errorf("nfo300: scan for tag: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("nfo300: tag not found within %d bytes", scan.MaxPESize)
	}

	return New(r, offset)
}

// New returns a Parser for the NFO300 header known to start at offset
// within r.
func New(r io.ReadSeeker, offset int64) (*Parser, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("nfo300: seek end: %w", err)
	}

	return &Parser{r: r, offset: offset, size: size}, nil
}

// Size returns the number of bytes from the NFO300 header to the end of
// the installer.
func (p *Parser) Size() int64 {
	return p.size - p.offset
}

// Entries parses and returns the installer's embedded file table. Entry
// offsets are computed contiguously, starting immediately after the
// table, in table order.
func (p *Parser) Entries() ([]Entry, error) {
	if _, err := p.r.Seek(p.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("nfo300: seek to header: %w", err)
	}

	limited := &io.LimitedReader{R: p.r, N: maxTableBytes}
	br := bufio.NewReader(limited)

	// The tag occupies its own line; skip it before reading entries.
	if _, err := br.ReadString('\n'); err != nil && err != io.EOF {
		return nil, fmt.Errorf("nfo300: read tag line: %w", err)
	}

	var entries []Entry
	for {
		b, err := br.Peek(1)
		if err != nil || len(b) == 0 || b[0] != '"' {
			break
		}

		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("nfo300: read entry line: %w", err)
		}

		entry, err := parseEntryLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	// br may have buffered bytes past the table; the data offset is the
	// header offset plus exactly the bytes consumed by the limited reader,
	// not the bufio reader's read-ahead.
	dataOffset := p.offset + (maxTableBytes - int64(limited.N)) - int64(br.Buffered())

	offset := dataOffset
	for i := range entries {
		entries[i].Offset = offset
		offset += entries[i].Size
	}

	return entries, nil
}

// parseEntryLine parses one quoted-CSV line of the form
// "name","checksum","size".
func parseEntryLine(line string) (Entry, error) {
	line = strings.TrimRight(line, "\r\n")

	name, rest, ok := strings.Cut(line, ",")
	if !ok {
		return Entry{}, fmt.Errorf("nfo300: malformed entry line %q: missing name separator", line)
	}

	checksumStr, sizeStr, ok := strings.Cut(rest, ",")
	if !ok {
		return Entry{}, fmt.Errorf("nfo300: malformed entry line %q: missing size separator", line)
	}

	size32, err := strconv.ParseInt(strings.Trim(sizeStr, `"`), 10, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("nfo300: malformed size %q: %w", sizeStr, err)
	}

	checksum64, err := strconv.ParseInt(strings.Trim(checksumStr, `"`), 10, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("nfo300: malformed checksum %q: %w", checksumStr, err)
	}

	return Entry{
		Name:     strings.Trim(name, `"`),
		Size:     int64(int32(size32)),
		Checksum: int32(checksum64),
	}, nil
}

// EntryReader returns a reader over entry's payload bytes. A negative
// entry.Size produces an already-exhausted reader.
func (p *Parser) EntryReader(entry Entry) (io.Reader, error) {
	if _, err := p.r.Seek(entry.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("nfo300: seek to entry %q: %w", entry.Name, err)
	}

	return io.LimitReader(p.r, entry.Size), nil
}
