// Package wzpatch parses WzPatch differential patch files: a zlib-wrapped
// stream of per-file add/remove/modify records, where a modify record is
// followed by a block program (repeat, new-literal-block, old-block-copy,
// end) describing how to reconstruct the new file from the old one.
package wzpatch

import (
	"bufio"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"instarch/pkg/crcwz"
)

// Magic is the 8-byte signature every WzPatch file begins with.
var Magic = [8]byte{'W', 'z', 'P', 'a', 't', 'c', 'h', 0x1A}

// ChecksumMismatchError reports a CRC mismatch, carrying enough context to
// identify which checksum failed and against what scope.
type ChecksumMismatchError struct {
	Scope    string
	Expected uint32
	Got      uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("wzpatch: checksum mismatch for %s: expected %#08x, got %#08x", e.Scope, e.Expected, e.Got)
}

// ErrBadMagic is returned by Open when r does not begin with Magic.
var ErrBadMagic = errors.New("wzpatch: bad magic")

// ErrProtocolViolation is returned by a Handler when it receives a
// modify-block event (repeat, new-literal-block, old-block-copy, end)
// without a preceding OnModify establishing which file the blocks belong
// to. Process itself never drives a Handler out of order, but a Handler
// may be invoked directly, so implementations must guard against it.
var ErrProtocolViolation = errors.New("wzpatch: protocol violation: modify block without preceding OnModify")

// Header holds the fixed fields that follow the magic.
type Header struct {
	Version  int32
	Checksum uint32
}

// Patch represents an opened WzPatch file, positioned to allow repeated
// passes over its record stream (checksum verification, then apply or
// inspect).
type Patch struct {
	r          io.ReadSeeker
	hdr        Header
	dataOffset int64
}

// Open validates the magic and header, and returns a Patch ready for
// VerifyChecksum and Process. r must be seekable so both can be called
// independently, each re-seeking to the start of the compressed stream.
func Open(r io.ReadSeeker) (*Patch, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("wzpatch: seek start: %w", err)
	}

	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("wzpatch: read magic: %w", err)
	}
	if magic != Magic {
		return nil, ErrBadMagic
	}

	var hdr Header
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("wzpatch: read header: %w", err)
	}

	dataOffset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("wzpatch: tell data offset: %w", err)
	}

	return &Patch{r: r, hdr: hdr, dataOffset: dataOffset}, nil
}

// Version returns the patch format version recorded in the header.
func (p *Patch) Version() int32 {
	return p.hdr.Version
}

// VerifyChecksum streams [data_offset, EOF) of the patch file through the
// custom CRC32 variant and compares it against the header's declared
// checksum.
func (p *Patch) VerifyChecksum() error {
	if _, err := p.r.Seek(p.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("wzpatch: seek to data: %w", err)
	}

	d := crcwz.New()
	if _, err := io.Copy(d, p.r); err != nil {
		return fmt.Errorf("wzpatch: read for checksum: %w", err)
	}

	if got := d.Sum32(); got != p.hdr.Checksum {
		return &ChecksumMismatchError{Scope: "patch file", Expected: p.hdr.Checksum, Got: got}
	}

	return nil
}

// Handler receives the record and block stream as Process walks it. data
// streams are bounded, forward-only, and drained by the caller before
// Process advances.
type Handler interface {
	OnAdd(path string, data io.Reader, length, checksum uint32) error
	OnRemove(path string) error
	OnModify(path string, oldChecksum, newChecksum uint32) error
	OnModRepeat(b byte, length uint32) error
	OnModNewBlock(data io.Reader, length uint32) error
	OnModOldBlock(offset, length uint32) error
	OnModEnd(newChecksum uint32) error
}

// Process decompresses the patch's record stream and drives handler
// through every record and, for modify records, every block. A read error
// encountered while a record's path has not yet been (even partially)
// consumed is treated as a clean end of stream; any error once at least
// one byte of a record has been read is fatal and propagated.
func (p *Patch) Process(h Handler) error {
	if _, err := p.r.Seek(p.dataOffset, io.SeekStart); err != nil {
		return fmt.Errorf("wzpatch: seek to data: %w", err)
	}

	zr, err := zlib.NewReader(bufio.NewReader(p.r))
	if err != nil {
		return fmt.Errorf("wzpatch: open zlib stream: %w", err)
	}
	defer zr.Close()

	br := bufio.NewReader(zr)

	for {
		path, op, err := readPath(br)
		if err != nil {
			if errors.Is(err, errCleanEnd) {
				return nil
			}
			return err
		}

		switch op {
		case opAdd:
			var length, checksum uint32
			if err := readUint32Pair(br, &length, &checksum); err != nil {
				return fmt.Errorf("wzpatch: read add record for %q: %w", path, err)
			}
			data := io.LimitReader(br, int64(length))
			if err := h.OnAdd(path, data, length, checksum); err != nil {
				return err
			}
			if _, err := io.Copy(io.Discard, data); err != nil {
				return fmt.Errorf("wzpatch: drain add data for %q: %w", path, err)
			}

		case opModify:
			var oldChecksum, newChecksum uint32
			if err := readUint32Pair(br, &oldChecksum, &newChecksum); err != nil {
				return fmt.Errorf("wzpatch: read modify record for %q: %w", path, err)
			}
			if err := h.OnModify(path, oldChecksum, newChecksum); err != nil {
				return err
			}
			if err := processBlocks(br, h); err != nil {
				return fmt.Errorf("wzpatch: process blocks for %q: %w", path, err)
			}
			if err := h.OnModEnd(newChecksum); err != nil {
				return err
			}

		case opRemove:
			if err := h.OnRemove(path); err != nil {
				return err
			}

		default:
			return fmt.Errorf("wzpatch: unknown op byte %d for %q", op, path)
		}
	}
}

const (
	opAdd    = 0
	opModify = 1
	opRemove = 2
)

var errCleanEnd = errors.New("wzpatch: clean end of record stream")

// readPath reads a path string terminated by a byte in {0,1,2}; that
// terminator doubles as the record's op selector. A read error before any
// byte has been consumed is reported as errCleanEnd; an error after at
// least one byte was read is fatal.
func readPath(r io.ByteReader) (string, byte, error) {
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if len(buf) == 0 {
				return "", 0, errCleanEnd
			}
			return "", 0, fmt.Errorf("wzpatch: truncated path after %q: %w", buf, err)
		}
		if b == 0 || b == 1 || b == 2 {
			return string(buf), b, nil
		}
		buf = append(buf, b)
	}
}

func readUint32Pair(r io.Reader, a, b *uint32) error {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	*a = binary.LittleEndian.Uint32(buf[0:4])
	*b = binary.LittleEndian.Uint32(buf[4:8])
	return nil
}

// processBlocks reads the block program following a modify record until
// the End block.
func processBlocks(r *bufio.Reader, h Handler) error {
	for {
		var raw [4]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return fmt.Errorf("read block header: %w", err)
		}
		value := binary.LittleEndian.Uint32(raw[:])

		switch {
		case value == 0:
			return nil

		case value>>28 == 0x8:
			length := value & 0x0FFFFFFF
			data := io.LimitReader(r, int64(length))
			if err := h.OnModNewBlock(data, length); err != nil {
				return err
			}
			if _, err := io.Copy(io.Discard, data); err != nil {
				return fmt.Errorf("drain new block data: %w", err)
			}

		case value>>28 == 0xC:
			b := byte(value & 0xFF)
			length := (value >> 8) & 0xFFFFF
			if err := h.OnModRepeat(b, length); err != nil {
				return err
			}

		default:
			length := value & 0x0FFFFFFF
			var offRaw [4]byte
			if _, err := io.ReadFull(r, offRaw[:]); err != nil {
				return fmt.Errorf("read old block offset: %w", err)
			}
			offset := binary.LittleEndian.Uint32(offRaw[:])
			if err := h.OnModOldBlock(offset, length); err != nil {
				return err
			}
		}
	}
}
