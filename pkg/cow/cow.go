// Package cow implements a page-granular copy-on-write byte overlay atop a
// read-only io.ReadSeeker. Writes are captured in memory; the underlying
// reader is never mutated. This lets zipsplit repair central-directory
// offsets on a joined split-archive stream without needing write access to
// the original files.
package cow

import (
	"fmt"
	"io"
)

// DefaultPageSize is the overlay's default page granularity in bytes.
const DefaultPageSize = 4096

// Overlay wraps a read-only io.ReadSeeker and intercepts writes into a
// page-indexed map, leaving the base reader untouched. It implements
// io.ReadWriteSeeker.
type Overlay struct {
	base     io.ReadSeeker
	size     int64
	pageSize int64
	pages    map[int64][]byte // pageIndex -> full-page contents, overlay-owned
	pos      int64
}

// New wraps base with a copy-on-write overlay using the given page size. A
// pageSize <= 0 selects DefaultPageSize. size is the logical length of base
// and bounds all reads and writes.
func New(base io.ReadSeeker, size int64, pageSize int64) *Overlay {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Overlay{
		base:     base,
		size:     size,
		pageSize: pageSize,
		pages:    make(map[int64][]byte),
	}
}

// Len returns the logical length of the overlaid stream.
func (o *Overlay) Len() int64 {
	return o.size
}

// readPage returns the full contents of page pageIdx, preferring an overlay page if one has been written, otherwise reading
// through to base.
func (o *Overlay) readPage(pageIdx int64) ([]byte, error) {
	if p, ok := o.pages[pageIdx]; ok {
		return p, nil
	}

	start := pageIdx * o.pageSize
	page := make([]byte, o.pageSize)

	if start >= o.size {
		return page, nil
	}

	n := o.pageSize
	if start+n > o.size {
		n = o.size - start
	}

	if _, err := o.base.Seek(start, io.SeekStart); err != nil {
		return nil, fmt.Errorf("cow: seek base: %w", err)
	}
	if _, err := io.ReadFull(o.base, page[:n]); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("cow: read base page: %w", err)
	}

	return page, nil
}

// Read implements io.Reader.
func (o *Overlay) Read(p []byte) (int, error) {
	if o.pos >= o.size {
		return 0, io.EOF
	}

	total := 0
	for total < len(p) && o.pos < o.size {
		pageIdx := o.pos / o.pageSize
		pageOff := o.pos % o.pageSize

		page, err := o.readPage(pageIdx)
		if err != nil {
			return total, err
		}

		n := copy(p[total:], page[pageOff:])
		// readPage never returns fewer than pageSize bytes, but the final
		// page of the stream may extend past o.size; clamp to it.
		remaining := o.size - o.pos
		if int64(n) > remaining {
			n = int(remaining)
		}

		total += n
		o.pos += int64(n)
	}

	return total, nil
}

// ReadAt implements io.ReaderAt without disturbing the Read/Seek cursor,
// letting an Overlay be handed to APIs (such as archive/zip.NewReader)
// that require random access.
func (o *Overlay) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("cow: negative ReadAt offset")
	}
	if off >= o.size {
		return 0, io.EOF
	}

	total := 0
	pos := off
	for total < len(p) && pos < o.size {
		pageIdx := pos / o.pageSize
		pageOff := pos % o.pageSize

		page, err := o.readPage(pageIdx)
		if err != nil {
			return total, err
		}

		n := copy(p[total:], page[pageOff:])
		remaining := o.size - pos
		if int64(n) > remaining {
			n = int(remaining)
		}

		total += n
		pos += int64(n)
	}

	var err error
	if total < len(p) {
		err = io.EOF
	}
	return total, err
}

// Write implements io.Writer. Writes are captured entirely in the overlay's
// page map; the base reader is never touched.
func (o *Overlay) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		pageIdx := o.pos / o.pageSize
		pageOff := o.pos % o.pageSize

		page, err := o.readPage(pageIdx)
		if err != nil {
			return total, err
		}
		// When the page is already in the overlay, readPage returns the
		// stored slice itself; copying first means a write replaces the page
		// rather than editing that slice in place.
		owned := make([]byte, len(page))
		copy(owned, page)

		n := copy(owned[pageOff:], p[total:])
		o.pages[pageIdx] = owned

		total += n
		o.pos += int64(n)
		if o.pos > o.size {
			o.size = o.pos
		}
	}

	return total, nil
}

// Seek implements io.Seeker over the overlay's logical offset space.
func (o *Overlay) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = o.pos + offset
	case io.SeekEnd:
		target = o.size + offset
	default:
		return 0, fmt.Errorf("cow: invalid whence %d", whence)
	}

	if target < 0 {
		return 0, fmt.Errorf("cow: negative seek position")
	}

	o.pos = target
	return o.pos, nil
}
