// Package jp2walk walks the structure of JPEG 2000 files without decoding
// them.
//
// A raw codestream (J2K) is a sequence of marker segments. A JP2 file wraps a
// codestream in a sequence of boxes. The walkers report every box and every
// marker segment to caller-supplied callbacks, together with offsets and
// lengths, and infer the length of tile-part data that the codestream does not
// state directly.
//
// Basic usage:
//
//	err := jp2walk.Parse("image.jp2",
//	    func(h jp2walk.BoxHeader, w *jp2walk.BoxWalker) (jp2walk.Outcome, error) {
//	        fmt.Println(h.Type, h.Offset, h.Length)
//	        return jp2walk.SkipPayload, nil
//	    },
//	    func(seg jp2walk.Segment, s *jp2walk.Stream) (jp2walk.Outcome, error) {
//	        fmt.Println(seg.Marker, seg.Offset, seg.Length)
//	        return jp2walk.SkipPayload, nil
//	    },
//	    nil)
package jp2walk

import (
	"github.com/mrjoshuak/go-jp2walk/internal/bio"
	"github.com/mrjoshuak/go-jp2walk/internal/box"
	"github.com/mrjoshuak/go-jp2walk/internal/codestream"
)

// Format constants for JPEG 2000 file formats.
const (
	// FormatJ2K is the raw codestream format (no file wrapper).
	FormatJ2K Format = iota
	// FormatJP2 is the JP2 file format with metadata boxes.
	FormatJP2
)

// Format represents a JPEG 2000 file format.
type Format int

// String returns the string representation of the format.
func (f Format) String() string {
	switch f {
	case FormatJ2K:
		return "J2K"
	case FormatJP2:
		return "JP2"
	default:
		return "Unknown"
	}
}

type (
	// Stream is the cursor shared by the walkers and the callbacks.
	Stream = bio.Reader
	// Marker is a two-byte codestream marker code.
	Marker = codestream.Marker
	// Segment describes one marker segment.
	Segment = codestream.Segment
	// BoxType is a four-character box type code.
	BoxType = box.Type
	// BoxHeader describes one box.
	BoxHeader = box.Header
	// BoxWalker walks a sequence of boxes and can descend into super-boxes.
	BoxWalker = box.Walker
	// Outcome tells a walker what a callback did with a payload.
	Outcome = codestream.Outcome
)

// Callback outcomes.
const (
	// SkipPayload asks the walker to move past the payload. For a codestream
	// box it also hands the contents to the marker callback.
	SkipPayload = codestream.SkipPayload
	// AlreadyConsumed means the callback has moved the stream itself.
	AlreadyConsumed = codestream.AlreadyConsumed
)

// Frequently used marker and box codes.
const (
	SOC = codestream.SOC
	SOT = codestream.SOT
	SOD = codestream.SOD
	EOC = codestream.EOC
	SIZ = codestream.SIZ
	COD = codestream.COD
	QCD = codestream.QCD
	COM = codestream.COM
	TLM = codestream.TLM

	BoxSignature  = box.TypeJP2Signature
	BoxFileType   = box.TypeFileType
	BoxJP2Header  = box.TypeJP2Header
	BoxCodestream = box.TypeContCodestream
)

// MarkerFunc is called for every marker segment with the stream positioned at
// the first payload byte. For SOD, the segment length is the inferred length
// of the tile-part data.
type MarkerFunc = codestream.MarkerFunc

// BoxFunc is called for every box with the stream positioned at the first
// content byte. Super-boxes are entered by calling w.Descend and returning
// AlreadyConsumed.
type BoxFunc = box.Func

// Options controls file walks.
type Options struct {
	// MaxBoxDepth bounds super-box nesting. Zero means the default of 16.
	MaxBoxDepth int

	// StrictSignature makes Parse identify files by their full signature
	// instead of the first byte.
	StrictSignature bool
}

// DefaultOptions returns the default walk options.
func DefaultOptions() *Options {
	return &Options{
		MaxBoxDepth: box.DefaultMaxDepth,
	}
}

func (o *Options) maxDepth() int {
	if o == nil || o.MaxBoxDepth <= 0 {
		return box.DefaultMaxDepth
	}
	return o.MaxBoxDepth
}
