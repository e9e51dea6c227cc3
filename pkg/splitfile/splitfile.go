// Package splitfile presents an ordered sequence of files (a zip archive
// split across "*.z0".."*.zN"+".zip", or any other split stream) as a
// single logical io.ReadSeeker, tracking each split's byte range within the
// joined stream.
package splitfile

import (
	"fmt"
	"io"
)

// File is the minimal interface splitfile needs from an open split: seek
// within it and read from it. *os.File satisfies this.
type File interface {
	io.ReadSeeker
	io.Closer
}

// Opener resolves a split index to an open File and reports how many
// splits exist. Implementations decide how splits are named and ordered;
// splitfile only needs to open them by index, 0 through NumSplits()-1.
type Opener interface {
	OpenSplit(index int) (File, error)
	NumSplits() int
}

// Range describes one split's byte range within the joined stream.
type Range struct {
	// Start is the first byte of this split in the joined stream.
	Start int64
	// End is one past the last byte of this split in the joined stream.
	End int64
}

// Len returns the number of bytes this split contributes.
func (r Range) Len() int64 {
	return r.End - r.Start
}

// Joined implements io.ReadSeeker over all splits an Opener exposes,
// concatenated in index order.
type Joined struct {
	opener Opener
	ranges []Range
	size   int64

	pos     int64
	openIdx int
	open    File
}

// New opens every split once to determine its size, builds the cumulative
// range table, and returns a Joined positioned at offset 0. It closes each
// split's probe handle immediately after stat'ing it; splits are reopened
// lazily as Read/Seek touch them.
func New(opener Opener) (*Joined, error) {
	n := opener.NumSplits()
	if n == 0 {
		return nil, fmt.Errorf("splitfile: opener exposes no splits")
	}

	ranges := make([]Range, n)
	var cursor int64
	for i := range n {
		f, err := opener.OpenSplit(i)
		if err != nil {
			return nil, fmt.Errorf("splitfile: open split %d: %w", i, err)
		}
		size, err := f.Seek(0, io.SeekEnd)
		closeErr := f.Close()
		if err != nil {
			return nil, fmt.Errorf("splitfile: stat split %d: %w", i, err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("splitfile: close split %d: %w", i, closeErr)
		}

		ranges[i] = Range{Start: cursor, End: cursor + size}
		cursor += size
	}

	return &Joined{
		opener:  opener,
		ranges:  ranges,
		size:    cursor,
		openIdx: -1,
	}, nil
}

// Size returns the total length of the joined stream.
func (j *Joined) Size() int64 {
	return j.size
}

// Splits returns the byte range each split occupies within the joined
// stream, in index order.
func (j *Joined) Splits() []Range {
	out := make([]Range, len(j.ranges))
	copy(out, j.ranges)
	return out
}

// splitForOffset returns the index of the split containing abs, via binary
// search over the (sorted, contiguous) range table.
func (j *Joined) splitForOffset(abs int64) int {
	lo, hi := 0, len(j.ranges)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if abs < j.ranges[mid].End {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

func (j *Joined) ensureOpen(idx int) error {
	if j.openIdx == idx && j.open != nil {
		return nil
	}
	if j.open != nil {
		_ = j.open.Close()
		j.open = nil
		j.openIdx = -1
	}

	f, err := j.opener.OpenSplit(idx)
	if err != nil {
		return fmt.Errorf("splitfile: open split %d: %w", idx, err)
	}
	j.open = f
	j.openIdx = idx
	return nil
}

// Read implements io.Reader, transparently crossing split boundaries.
func (j *Joined) Read(p []byte) (int, error) {
	if j.pos >= j.size {
		return 0, io.EOF
	}

	idx := j.splitForOffset(j.pos)
	if err := j.ensureOpen(idx); err != nil {
		return 0, err
	}

	rng := j.ranges[idx]
	localOff := j.pos - rng.Start
	if _, err := j.open.Seek(localOff, io.SeekStart); err != nil {
		return 0, fmt.Errorf("splitfile: seek within split %d: %w", idx, err)
	}

	maxInSplit := rng.End - j.pos
	toRead := int64(len(p))
	if toRead > maxInSplit {
		toRead = maxInSplit
	}

	n, err := j.open.Read(p[:toRead])
	j.pos += int64(n)
	if err != nil && err != io.EOF {
		return n, err
	}
	return n, nil
}

// Seek implements io.Seeker over the joined, logical offset space.
func (j *Joined) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = j.pos + offset
	case io.SeekEnd:
		target = j.size + offset
	default:
		return 0, fmt.Errorf("splitfile: invalid whence %d", whence)
	}

	if target < 0 {
		return 0, fmt.Errorf("splitfile: negative seek position")
	}

	j.pos = target
	return j.pos, nil
}

// Close releases the currently open split handle, if any.
func (j *Joined) Close() error {
	if j.open == nil {
		return nil
	}
	err := j.open.Close()
	j.open = nil
	j.openIdx = -1
	return err
}
