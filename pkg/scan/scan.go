// Package scan implements the byte-scanning primitives used to locate a
// setup payload inside a Windows PE image: a sliding-window needle search,
// the installer toolchain's "PADDINGXXPADDING" sentinel finder, and format
// detection built on top of both.
package scan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// MaxPESize bounds how much of a reader scan functions will examine before
// giving up.
const MaxPESize int64 = 40 << 20

// ErrFormatUnknown is returned by DetectSetupFormat when the scan window is
// exhausted without finding a recognized setup tag.
var ErrFormatUnknown = errors.New("scan: no recognized setup format found")

const needleWindow = 4096

// FindNeedle searches r for the first occurrence of needle, reading
// needleWindow-sized chunks at a time. It returns the absolute byte offset of
// the match (relative to r's current position), false if the needle was not
// found before r is exhausted, or an error from the underlying reader.
//
// The search streams through r in fixed-size windows with an overlap of
// len(needle)-1 bytes carried across window boundaries, so matches that
// straddle a window boundary are still found. It never seeks: callers that
// need an absolute stream offset pass a reader already positioned there.
func FindNeedle(r io.Reader, needle []byte) (int64, bool, error) {
	if len(needle) == 0 {
		return 0, false, fmt.Errorf("scan: empty needle")
	}
	if len(needle) > needleWindow {
		return 0, false, fmt.Errorf("scan: needle longer than window size")
	}

	overlap := len(needle) - 1
	buf := make([]byte, needleWindow)
	n := overlap
	// skip is the number of leading buf bytes that hold no stream data: the
	// first window has nothing carried over into its overlap region yet.
	skip := overlap
	var offset int64

	for {
		read, err := io.ReadFull(r, buf[n:])
		n += read
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return 0, false, err
		}

		if n-skip >= len(needle) {
			if idx := bytes.Index(buf[skip:n], needle); idx >= 0 {
				return offset + int64(skip+idx) - int64(overlap), true, nil
			}
		}

		if read == 0 {
			return 0, false, nil
		}

		offset += int64(n) - int64(overlap)
		copy(buf, buf[n-overlap:n])
		n = overlap
		skip = 0
	}
}

// paddingSentinel is the 16-byte marker the installer toolchain writes
// between the PE image and its appended setup payload.
var paddingSentinel = []byte("PADDINGXXPADDING")

// FindPaddingData locates the end of a run of paddingSentinel bytes starting
// at or after base, within the first limit bytes of r measured from base. r
// must be positioned so that reading from it begins at base. It returns the
// absolute offset (base + relative offset) of the first byte that breaks the
// padding pattern, or false if no padding run was found.
func FindPaddingData(r io.ReadSeeker, base, limit int64) (int64, bool, error) {
	padIdx, found, err := FindNeedle(io.LimitReader(r, limit), paddingSentinel)
	if err != nil || !found {
		return 0, false, err
	}

	absPad := base + padIdx
	if _, err := r.Seek(absPad, io.SeekStart); err != nil {
		return 0, false, err
	}

	buf := make([]byte, 4096)
	read, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, false, err
	}
	buf = buf[:read]

	for i := 0; i < len(buf); i += 16 {
		chunk := buf[i:min(i+16, len(buf))]
		if bytes.Equal(chunk, paddingSentinel) {
			continue
		}

		strip := len(chunk)
		for j := range chunk {
			if chunk[j] != paddingSentinel[j] {
				strip = j
				break
			}
		}
		return absPad + int64(i) + int64(strip), true, nil
	}

	return 0, false, nil
}

// Format identifies which setup table schema was detected.
type Format int

const (
	// FormatUnknown is the zero value, never returned by a successful detect.
	FormatUnknown Format = iota
	// FormatNFO300 is the quoted-CSV table schema.
	FormatNFO300
	// FormatInstallShield is the packed binary record schema.
	FormatInstallShield
)

// String implements fmt.Stringer.
func (f Format) String() string {
	switch f {
	case FormatNFO300:
		return "NFO300"
	case FormatInstallShield:
		return "InstallShield"
	default:
		return "unknown"
	}
}

// SetupFormatDescriptor tags a detected setup variant with the absolute
// offset of its header within the installer.
type SetupFormatDescriptor struct {
	Format Format
	Offset int64
}

var (
	nfo300Tag        = []byte("NFO300")
	installShieldTag = []byte("InstallShield")
)

// DetectSetupFormat repeatedly finds a padding-sentinel region, inspects the
// 16 bytes immediately following it, and classifies the result as NFO300 or
// InstallShield by leading magic. When neither magic matches, it advances
// past the inspected bytes and retries. The whole scan is bounded by
// MaxPESize; DetectSetupFormat returns ErrFormatUnknown once that budget is
// exhausted without a match.
func DetectSetupFormat(r io.ReadSeeker) (SetupFormatDescriptor, error) {
	var offset int64

	for offset < MaxPESize {
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return SetupFormatDescriptor{}, err
		}

		ix, found, err := FindPaddingData(r, offset, MaxPESize-offset)
		if err != nil {
			return SetupFormatDescriptor{}, err
		}
		if !found {
			return SetupFormatDescriptor{}, ErrFormatUnknown
		}

		if _, err := r.Seek(ix, io.SeekStart); err != nil {
			return SetupFormatDescriptor{}, err
		}

		magic := make([]byte, 16)
		if _, err := io.ReadFull(r, magic); err != nil {
			return SetupFormatDescriptor{}, err
		}

		switch {
		case bytes.HasPrefix(magic, nfo300Tag):
			return SetupFormatDescriptor{Format: FormatNFO300, Offset: ix}, nil
		case bytes.HasPrefix(magic, installShieldTag):
			return SetupFormatDescriptor{Format: FormatInstallShield, Offset: ix}, nil
		default:
			offset = ix + 16
		}
	}

	return SetupFormatDescriptor{}, ErrFormatUnknown
}
