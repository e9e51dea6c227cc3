// Package installshield parses the InstallShield self-extracting
// installer's embedded file table and reverses its per-entry XOR/rotate
// payload obfuscation.
package installshield

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"instarch/pkg/scan"
)

// Tag is the ASCII marker identifying an InstallShield header.
var Tag = []byte("InstallShield")

// header mirrors the on-disk packed header: 14-byte signature, num_files,
// type, then 26 opaque bytes (8 + 2 + 16) this reader preserves but never
// interprets.
type header struct {
	Signature [14]byte
	NumFiles  uint16
	Type      uint32
	X4        [8]byte
	X5        uint16
	X6        [16]byte
}

// record mirrors the on-disk packed entry record. Its total size (computed
// from these fields, not a hardcoded constant) is the span between one
// entry's start and the next; file_len payload bytes immediately follow
// each record.
type record struct {
	FileName           [260]byte
	EncodedFlags       uint32
	X3                 uint32
	FileLen            uint32
	X5                 [8]byte
	IsUnicodeLauncher  uint16
	X7                 [30]byte
}

var recordSize = int64(binary.Size(record{}))

// Entry describes one file embedded in the installer's obfuscated payload.
type Entry struct {
	Name    string
	Size    int64
	// Offset is the absolute byte offset of this entry's record (not its
	// payload) within the installer.
	Offset int64
}

// Parser reads the InstallShield table and streams de-obfuscated entry
// payloads from a single underlying reader.
type Parser struct {
	r      io.ReadSeeker
	offset int64
	hdr    header
	size   int64
}

// Detect locates the InstallShield tag within the first scan.MaxPESize
// bytes of r and returns a Parser for the header found there.
func Detect(r io.ReadSeeker) (*Parser, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("installshield: seek start: %w", err)
	}

	offset, found, err := scan.FindNeedle(io.LimitReader(r, scan.MaxPESize), Tag)
	if err != nil {
		return nil, fmt.Errorf("installshield: scan for tag: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("installshield: tag not found within %d bytes", scan.MaxPESize)
	}

	return New(r, offset)
}

// New returns a Parser for the InstallShield header known to start at
// offset within r.
func New(r io.ReadSeeker, offset int64) (*Parser, error) {
	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("installshield: seek end: %w", err)
	}

	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("installshield: seek to header: %w", err)
	}

	var hdr header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("installshield: read header: %w", err)
	}

	if !bytes.Equal(hdr.Signature[:], append(append([]byte{}, Tag...), 0)) {
		return nil, fmt.Errorf("installshield: bad signature %q", hdr.Signature[:])
	}

	return &Parser{r: r, offset: offset, hdr: hdr, size: size}, nil
}

// Size returns the number of bytes from the InstallShield header to the
// end of the installer.
func (p *Parser) Size() int64 {
	return p.size - p.offset
}

// Entries parses and returns the installer's embedded file table. It reads
// NumFiles fixed-size records, seeking forward by each record's file_len
// between records to reach the next.
func (p *Parser) Entries() ([]Entry, error) {
	pos := p.offset + int64(binary.Size(header{}))
	if _, err := p.r.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("installshield: seek to entry table: %w", err)
	}

	entries := make([]Entry, 0, p.hdr.NumFiles)
	for i := uint16(0); i < p.hdr.NumFiles; i++ {
		var rec record
		if err := binary.Read(p.r, binary.LittleEndian, &rec); err != nil {
			return nil, fmt.Errorf("installshield: read record %d: %w", i, err)
		}

		entries = append(entries, Entry{
			Name:   cString(rec.FileName[:]),
			Size:   int64(rec.FileLen),
			Offset: pos,
		})

		pos += recordSize + int64(rec.FileLen)
		if _, err := p.r.Seek(pos, io.SeekStart); err != nil {
			return nil, fmt.Errorf("installshield: seek past entry %d payload: %w", i, err)
		}
	}

	return entries, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// obfuscationConstant is cyclically XORed against the NUL-terminated entry
// filename to derive that entry's keystream.
var obfuscationConstant = [4]byte{0x13, 0x35, 0x86, 0x07}

func deriveKey(name string) []byte {
	key := []byte(name)
	for i := range key {
		key[i] ^= obfuscationConstant[i%len(obfuscationConstant)]
	}
	return key
}

func decodeByte(b, k byte) byte {
	rotated := b>>4 | b<<4
	return ^(k ^ rotated)
}

// entryReader de-obfuscates payload bytes as they are read. Unlike the
// original toolchain's per-1024-byte block phase reuse, the keystream
// position advances continuously, one key byte per decoded byte, for the
// entire entry.
type entryReader struct {
	r   io.Reader
	key []byte
	pos int
}

func (e *entryReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	for i := range p[:n] {
		p[i] = decodeByte(p[i], e.key[e.pos%len(e.key)])
		e.pos++
	}
	return n, err
}

// EntryReader returns a reader that streams and de-obfuscates entry's
// payload bytes.
func (p *Parser) EntryReader(entry Entry) (io.Reader, error) {
	payloadOffset := entry.Offset + recordSize
	if _, err := p.r.Seek(payloadOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("installshield: seek to entry %q payload: %w", entry.Name, err)
	}

	key := deriveKey(entry.Name)
	if len(key) == 0 {
		return nil, fmt.Errorf("installshield: entry %q has empty filename key", entry.Name)
	}

	return &entryReader{
		r:   io.LimitReader(p.r, entry.Size),
		key: key,
	}, nil
}
