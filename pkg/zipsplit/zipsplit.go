// Package zipsplit repairs central-directory offsets in a zip archive that
// was produced by concatenating numbered splits ("*.z0".."*.zN"+".zip").
// Such archives carry local-header offsets and disk numbers relative to the
// split that contains each entry, not to the concatenated stream; a
// standard zip reader given the raw concatenation cannot locate entries
// belonging to any split but the first. FixOffsets rewrites those fields
// in-place so archive/zip (or any conformant reader) can consume the
// result as a single-disk archive.
//
// The byte-level structures are hand-parsed via encoding/binary because
// archive/zip's public API exposes no way to read or mutate central
// directory fields directly.
package zipsplit

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	eocdSignature       = 0x06054b50
	centralDirSignature = 0x02014b50
	eocdLen             = 22
	cdHeaderLen         = 46
	eocdSearchWindow    = 64 << 10
)

// ErrNoEndOfCentralDirectory is returned when rw does not contain a
// recognizable End of Central Directory record.
var ErrNoEndOfCentralDirectory = errors.New("zipsplit: no end of central directory record found")

// Range describes one split's byte range within a joined stream. It
// mirrors splitfile.Range field for field; callers convert
// splitfile.Joined's Splits() result element by element.
type Range struct {
	Start int64
	End   int64
}

// FixOffsets rewrites rw's central directory so every entry's local-header
// offset and disk-number field are expressed relative to the start of the
// joined stream described by splits, and the End of Central Directory
// record is rewritten to describe a conventional single-disk archive.
//
// rw must be seekable and writable over the full extent of the archive;
// callers pass a *cow.Overlay so the underlying split files are never
// mutated on disk.
func FixOffsets(rw io.ReadWriteSeeker, splits []Range) error {
	size, err := rw.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("zipsplit: seek end: %w", err)
	}

	eocdOffset, err := findEndOfCentralDirectory(rw, size)
	if err != nil {
		return err
	}

	eocd, err := readAt(rw, eocdOffset, eocdLen)
	if err != nil {
		return fmt.Errorf("zipsplit: read EOCD: %w", err)
	}

	totalEntries := binary.LittleEndian.Uint16(eocd[10:12])
	cdStartDisk := binary.LittleEndian.Uint16(eocd[6:8])
	cdOffsetOnDisk := binary.LittleEndian.Uint32(eocd[16:20])

	if int(cdStartDisk) >= len(splits) {
		return fmt.Errorf("zipsplit: central directory start disk %d out of range (%d splits)", cdStartDisk, len(splits))
	}
	cdAbsOffset := splits[cdStartDisk].Start + int64(cdOffsetOnDisk)

	pos := cdAbsOffset
	for range totalEntries {
		hdr, err := readAt(rw, pos, cdHeaderLen)
		if err != nil {
			return fmt.Errorf("zipsplit: read central directory header at %d: %w", pos, err)
		}
		if binary.LittleEndian.Uint32(hdr[0:4]) != centralDirSignature {
			return fmt.Errorf("zipsplit: bad central directory signature at %d", pos)
		}

		nameLen := binary.LittleEndian.Uint16(hdr[28:30])
		extraLen := binary.LittleEndian.Uint16(hdr[30:32])
		commentLen := binary.LittleEndian.Uint16(hdr[32:34])
		diskNum := binary.LittleEndian.Uint16(hdr[34:36])
		localOffset := binary.LittleEndian.Uint32(hdr[42:46])

		if int(diskNum) >= len(splits) {
			return fmt.Errorf("zipsplit: entry disk number %d out of range (%d splits)", diskNum, len(splits))
		}

		if diskNum > 0 {
			newOffset := splits[diskNum].Start + int64(localOffset)
			if err := writeUint32At(rw, pos+42, uint32(newOffset)); err != nil {
				return fmt.Errorf("zipsplit: patch local header offset: %w", err)
			}
			if err := writeUint16At(rw, pos+34, 0); err != nil {
				return fmt.Errorf("zipsplit: patch disk number: %w", err)
			}
		}

		pos += int64(cdHeaderLen) + int64(nameLen) + int64(extraLen) + int64(commentLen)
	}

	// Normalize the EOCD to describe a single-disk archive: this disk,
	// the disk the central directory starts on, and the per-disk entry
	// count all collapse to the same single-disk values, and the central
	// directory offset becomes absolute within the joined stream.
	if err := writeUint16At(rw, eocdOffset+4, 0); err != nil {
		return err
	}
	if err := writeUint16At(rw, eocdOffset+6, 0); err != nil {
		return err
	}
	if err := writeUint16At(rw, eocdOffset+8, totalEntries); err != nil {
		return err
	}
	if err := writeUint32At(rw, eocdOffset+16, uint32(cdAbsOffset)); err != nil {
		return err
	}

	return nil
}

func findEndOfCentralDirectory(r io.ReadSeeker, size int64) (int64, error) {
	if size < eocdLen {
		return 0, ErrNoEndOfCentralDirectory
	}

	window := size
	if window > eocdSearchWindow {
		window = eocdSearchWindow
	}

	buf, err := readAt(r, size-window, window)
	if err != nil {
		return 0, fmt.Errorf("zipsplit: read EOCD search window: %w", err)
	}

	for i := len(buf) - eocdLen; i >= 0; i-- {
		if binary.LittleEndian.Uint32(buf[i:i+4]) != eocdSignature {
			continue
		}
		commentLen := int(binary.LittleEndian.Uint16(buf[i+eocdLen-2 : i+eocdLen]))
		if i+eocdLen+commentLen != len(buf) {
			continue
		}
		return size - window + int64(i), nil
	}

	return 0, ErrNoEndOfCentralDirectory
}

func readAt(r io.ReadSeeker, offset int64, n int64) ([]byte, error) {
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeUint16At(rw io.ReadWriteSeeker, offset int64, v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return writeBytesAt(rw, offset, buf)
}

func writeUint32At(rw io.ReadWriteSeeker, offset int64, v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return writeBytesAt(rw, offset, buf)
}

func writeBytesAt(rw io.ReadWriteSeeker, offset int64, p []byte) error {
	if _, err := rw.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err := rw.Write(p)
	return err
}
