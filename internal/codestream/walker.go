package codestream

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mrjoshuak/go-jp2walk/internal/bio"
)

var (
	// ErrSegmentLength is returned for a marker segment whose length field is
	// smaller than the segment's fixed fields.
	ErrSegmentLength = errors.New("jp2walk: invalid marker segment length")
	// ErrTilePartLength is returned when tile-part length bookkeeping underflows.
	ErrTilePartLength = errors.New("jp2walk: inconsistent tile-part length")
	// ErrOverrun is returned when a unit extends past the end of its region.
	ErrOverrun = errors.New("jp2walk: unit overruns its region")
	// ErrNotMarker is returned when the bytes where a marker is expected do
	// not start with 0xFF.
	ErrNotMarker = errors.New("jp2walk: expected a marker")
)

// Fixed sizes used by the tile-part bookkeeping.
const (
	markerSize      = 2 // marker code
	segmentHeader   = 4 // marker code + Lxxx
	sotFieldsLength = 8 // Isot(2) Psot(4) TPsot(1) TNsot(1)
	psotOffset      = 2 // Psot position inside the SOT fields
)

// Outcome tells a walker what a callback did with a unit's payload.
type Outcome int

const (
	// SkipPayload asks the walker to advance past the payload itself.
	SkipPayload Outcome = iota
	// AlreadyConsumed means the callback has read or repositioned the stream
	// past the payload.
	AlreadyConsumed
)

// String returns the name of the outcome.
func (o Outcome) String() string {
	switch o {
	case SkipPayload:
		return "SkipPayload"
	case AlreadyConsumed:
		return "AlreadyConsumed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Segment describes one marker segment found by the walker.
type Segment struct {
	Marker Marker
	// Offset of the marker code from the start of the stream.
	Offset int64
	// Length of the payload, excluding the marker and the length field.
	// For SOD it is the size of the entropy-coded data that follows.
	Length int64
}

// HeaderSize returns the number of bytes before the payload.
func (s Segment) HeaderSize() int64 {
	if s.Marker.HasLength() {
		return segmentHeader
	}
	return markerSize
}

// PayloadOffset returns the offset of the first payload byte.
func (s Segment) PayloadOffset() int64 {
	return s.Offset + s.HeaderSize()
}

// End returns the offset just past the segment.
func (s Segment) End() int64 {
	return s.PayloadOffset() + s.Length
}

// MarkerFunc is called for every marker segment. The reader is positioned at
// the first payload byte.
type MarkerFunc func(seg Segment, r *bio.Reader) (Outcome, error)

// Walker walks the marker segments of one codestream region.
type Walker struct {
	r   *bio.Reader
	end int64
	fn  MarkerFunc

	// tilePart is the number of bytes of the current tile-part not yet
	// accounted for by the segments read so far.
	tilePart       int64
	tilePartActive bool
}

// NewWalker creates a walker over the next budget bytes of r. A nil fn checks
// the structure without reporting it.
func NewWalker(r *bio.Reader, budget int64, fn MarkerFunc) (*Walker, error) {
	if budget < 0 {
		return nil, fmt.Errorf("%w: negative codestream budget %d", ErrOverrun, budget)
	}
	end := r.Offset() + budget
	if end > r.Size() {
		return nil, fmt.Errorf("%w: codestream of %d bytes at offset %d exceeds stream size %d",
			bio.ErrTruncated, budget, r.Offset(), r.Size())
	}
	return &Walker{r: r, end: end, fn: fn}, nil
}

// Walk walks the marker segments in the next budget bytes of r, calling fn
// for each one.
func Walk(r *bio.Reader, budget int64, fn MarkerFunc) error {
	w, err := NewWalker(r, budget, fn)
	if err != nil {
		return err
	}
	return w.Walk()
}

// Walk runs the walker to the end of its region.
func (w *Walker) Walk() error {
	for {
		remaining := w.end - w.r.Offset()
		if remaining == 0 {
			return nil
		}
		if remaining < markerSize {
			return fmt.Errorf("%w: %d stray byte(s) at offset %d", bio.ErrTruncated, remaining, w.r.Offset())
		}

		seg, err := w.next()
		if err != nil {
			return err
		}
		if err := w.dispatch(seg); err != nil {
			return err
		}

		if seg.Marker == EOC {
			w.tilePartActive = false
			more, err := w.nextIsSOC()
			if err != nil {
				return err
			}
			if !more {
				// Bytes after EOC inside an explicit budget are not part of
				// the codestream.
				return w.r.SeekTo(w.end)
			}
		}
	}
}

// nextIsSOC reports whether another codestream starts right after an EOC.
func (w *Walker) nextIsSOC() (bool, error) {
	if w.end-w.r.Offset() < markerSize {
		return false, nil
	}
	code, err := w.r.ReadU16()
	if err != nil {
		return false, err
	}
	if err := w.r.Rewind(markerSize); err != nil {
		return false, err
	}
	return Marker(code) == SOC, nil
}

// next reads one segment header and resolves its payload length.
func (w *Walker) next() (Segment, error) {
	start := w.r.Offset()
	code, err := w.r.ReadU16()
	if err != nil {
		return Segment{}, fmt.Errorf("reading marker: %w", err)
	}
	if code>>8 != 0xFF {
		return Segment{}, fmt.Errorf("%w: found %#04x at offset %d", ErrNotMarker, code, start)
	}
	seg := Segment{Marker: Marker(code), Offset: start}

	if !seg.Marker.HasLength() {
		if seg.Marker == SOD {
			n, err := w.startOfData(seg)
			if err != nil {
				return Segment{}, err
			}
			seg.Length = n
		}
		return seg, w.checkBounds(seg)
	}

	l, err := w.r.ReadU16()
	if err != nil {
		return Segment{}, fmt.Errorf("reading %s length: %w", seg.Marker, err)
	}
	if l < 2 {
		return Segment{}, fmt.Errorf("%w: %s at offset %d declares length %d", ErrSegmentLength, seg.Marker, start, l)
	}
	seg.Length = int64(l) - 2
	if err := w.checkBounds(seg); err != nil {
		return Segment{}, err
	}

	if seg.Marker == SOT {
		if err := w.startTilePart(seg); err != nil {
			return Segment{}, err
		}
	}
	if w.tilePartActive {
		w.tilePart -= segmentHeader + seg.Length
		if w.tilePart < 0 {
			return Segment{}, fmt.Errorf("%w: %s at offset %d runs past the end of its tile-part",
				ErrTilePartLength, seg.Marker, start)
		}
	}
	return seg, nil
}

// startTilePart sets the tile-part length state from the Psot field of an SOT
// segment. The reader is left at the start of the SOT payload.
func (w *Walker) startTilePart(seg Segment) error {
	if seg.Length < sotFieldsLength {
		return fmt.Errorf("%w: SOT at offset %d has %d payload bytes, need %d",
			ErrSegmentLength, seg.Offset, seg.Length, sotFieldsLength)
	}
	var fields [sotFieldsLength]byte
	if err := w.r.ReadFull(fields[:]); err != nil {
		return fmt.Errorf("reading SOT fields: %w", err)
	}
	if err := w.r.Rewind(sotFieldsLength); err != nil {
		return err
	}

	psot := binary.BigEndian.Uint32(fields[psotOffset:])
	if psot != 0 {
		w.tilePart = int64(psot)
	} else {
		// Only the last tile-part may leave Psot at zero: it then runs up to
		// the EOC marker that closes the region.
		w.tilePart = w.end - markerSize - seg.Offset
	}
	w.tilePartActive = true
	return nil
}

// startOfData closes the current tile-part header and returns the length of
// the entropy-coded data following SOD.
func (w *Walker) startOfData(seg Segment) (int64, error) {
	if !w.tilePartActive {
		return 0, fmt.Errorf("%w: SOD at offset %d outside of a tile-part", ErrTilePartLength, seg.Offset)
	}
	w.tilePartActive = false
	n := w.tilePart - markerSize
	if n <= 0 {
		return 0, fmt.Errorf("%w: tile-part has no data after SOD at offset %d",
			ErrTilePartLength, seg.Offset)
	}
	return n, nil
}

func (w *Walker) checkBounds(seg Segment) error {
	if seg.End() > w.end {
		return fmt.Errorf("%w: %s at offset %d with %d payload bytes ends at %d, region ends at %d",
			ErrOverrun, seg.Marker, seg.Offset, seg.Length, seg.End(), w.end)
	}
	return nil
}

// dispatch hands the segment to the callback and moves past its payload.
func (w *Walker) dispatch(seg Segment) error {
	if w.fn == nil {
		return w.r.SeekTo(seg.End())
	}
	outcome, err := w.fn(seg, w.r)
	if err != nil {
		return fmt.Errorf("%s at offset %d: %w", seg.Marker, seg.Offset, err)
	}

	switch outcome {
	case SkipPayload:
		return w.r.SeekTo(seg.End())
	case AlreadyConsumed:
		if off := w.r.Offset(); off < seg.PayloadOffset() || off > w.end {
			return fmt.Errorf("%w: callback for %s left stream at offset %d, outside [%d, %d]",
				ErrOverrun, seg.Marker, off, seg.PayloadOffset(), w.end)
		}
		return nil
	default:
		return fmt.Errorf("codestream: unknown callback outcome %v", outcome)
	}
}
