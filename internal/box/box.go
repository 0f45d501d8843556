// Package box walks the box structure of JP2 files.
//
// JP2 files consist of a sequence of boxes, where each box has:
// - 4-byte length (0 for "to end of file", 1 for extended length)
// - 4-byte type code
// - Optional 8-byte extended length
// - Box contents
package box

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mrjoshuak/go-jp2walk/internal/bio"
)

// Box type codes
const (
	// Signature and file type
	TypeJP2Signature Type = 0x6A502020 // "jP  " - JP2 signature box
	TypeFileType     Type = 0x66747970 // "ftyp" - File type box

	// JP2 header
	TypeJP2Header    Type = 0x6A703268 // "jp2h" - JP2 header super-box
	TypeImageHeader  Type = 0x69686472 // "ihdr" - Image header box
	TypeBitsPerComp  Type = 0x62706363 // "bpcc" - Bits per component box
	TypeColorSpec    Type = 0x636F6C72 // "colr" - Color specification box
	TypePalette      Type = 0x70636C72 // "pclr" - Palette box
	TypeComponentMap Type = 0x636D6170 // "cmap" - Component mapping box
	TypeChannelDef   Type = 0x63646566 // "cdef" - Channel definition box
	TypeResolution   Type = 0x72657320 // "res " - Resolution super-box
	TypeCaptureRes   Type = 0x72657363 // "resc" - Capture resolution box
	TypeDisplayRes   Type = 0x72657364 // "resd" - Default display resolution box

	// Codestream
	TypeContCodestream Type = 0x6A703263 // "jp2c" - Contiguous codestream box
	TypeCodestreamH    Type = 0x6A706368 // "jpch" - Codestream header box
	TypeTilePartH      Type = 0x6A707468 // "jpth" - Tile-part header box
	TypeLayerH         Type = 0x6A706C68 // "jplh" - Compositing layer header box

	// Metadata
	TypeXML       Type = 0x786D6C20 // "xml " - XML box
	TypeUUID      Type = 0x75756964 // "uuid" - UUID box
	TypeUUIDInfo  Type = 0x75696E66 // "uinf" - UUID info super-box
	TypeUUIDList  Type = 0x756C7374 // "ulst" - UUID list box
	TypeURL       Type = 0x75726C20 // "url " - URL box
	TypeAssoc     Type = 0x61736F63 // "asoc" - Association super-box
	TypeLabel     Type = 0x6C626C20 // "lbl " - Label box
	TypeReaderReq Type = 0x72726571 // "rreq" - Reader requirements box

	// JPX / JPIP
	TypeFragTable     Type = 0x6674626C // "ftbl" - Fragment table super-box
	TypeColorGroup    Type = 0x63677270 // "cgrp" - Colour group super-box
	TypeComposition   Type = 0x636F6D70 // "comp" - Composition super-box
	TypeDesiredRep    Type = 0x64726570 // "drep" - Desired reproductions super-box
	TypePage          Type = 0x70616765 // "page" - Page super-box
	TypeCodestreamIdx Type = 0x63696478 // "cidx" - Codestream index super-box
	TypeFileIdx       Type = 0x66696478 // "fidx" - File index super-box
	TypeIndexPtr      Type = 0x69707472 // "iptr" - Index finder box

	// Motion JPEG 2000
	TypeMovie     Type = 0x6D6F6F76 // "moov" - Movie super-box
	TypeTrack     Type = 0x7472616B // "trak" - Track super-box
	TypeMediaData Type = 0x6D646174 // "mdat" - Media data box

	// IPR
	TypeIPR Type = 0x6A703269 // "jp2i" - IPR box
)

// BrandJP2 is the JP2 brand in the file type box.
const BrandJP2 Type = 0x6A703220 // "jp2 "

var (
	// ErrBoxLength is returned for a box whose length field cannot be honoured.
	ErrBoxLength = errors.New("jp2walk: invalid box length")
	// ErrTooDeep is returned when super-boxes nest beyond the configured limit.
	ErrTooDeep = errors.New("jp2walk: boxes nested too deeply")
)

// Type represents a 4-byte box type code.
type Type uint32

// String returns the 4-character type code.
func (t Type) String() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(t))
	return string(b)
}

var descriptions = map[Type]string{
	TypeJP2Signature:   "JP2 Signature box",
	TypeFileType:       "File Type box",
	TypeJP2Header:      "JP2 Header box",
	TypeImageHeader:    "Image Header box",
	TypeBitsPerComp:    "Bits Per Component box",
	TypeColorSpec:      "Colour Specification box",
	TypePalette:        "Palette box",
	TypeComponentMap:   "Component Mapping box",
	TypeChannelDef:     "Channel Definition box",
	TypeResolution:     "Resolution box",
	TypeCaptureRes:     "Capture Resolution box",
	TypeDisplayRes:     "Default Display Resolution box",
	TypeContCodestream: "Codestream box",
	TypeCodestreamH:    "Codestream Header box",
	TypeTilePartH:      "Tile-part Header box",
	TypeLayerH:         "Compositing Layer Header box",
	TypeXML:            "XML box",
	TypeUUID:           "UUID box",
	TypeUUIDInfo:       "UUID Info box",
	TypeUUIDList:       "UUID List box",
	TypeURL:            "Data Entry URL box",
	TypeAssoc:          "Association box",
	TypeLabel:          "Label box",
	TypeReaderReq:      "Reader Requirements box",
	TypeFragTable:      "Fragment Table box",
	TypeColorGroup:     "Colour Group box",
	TypeComposition:    "Composition box",
	TypeDesiredRep:     "Desired Reproductions box",
	TypePage:           "Page box",
	TypeCodestreamIdx:  "Codestream Index box",
	TypeFileIdx:        "File Index box",
	TypeIndexPtr:       "Index Finder box",
	TypeMovie:          "Movie box",
	TypeTrack:          "Track box",
	TypeMediaData:      "Media Data box",
	TypeIPR:            "Intellectual Property box",
}

// Description returns the long name of a box type.
func (t Type) Description() string {
	if d, ok := descriptions[t]; ok {
		return d
	}
	return "unknown box"
}

// IsSuperBox reports whether boxes of this type contain only other boxes.
func (t Type) IsSuperBox() bool {
	switch t {
	case TypeJP2Header, TypeResolution, TypeUUIDInfo, TypeAssoc,
		TypeCodestreamH, TypeLayerH, TypeColorGroup, TypeFragTable,
		TypeComposition, TypeDesiredRep, TypePage, TypeMovie, TypeTrack:
		return true
	default:
		return false
	}
}

// Header sizes.
const (
	headerSize         = 8
	extendedHeaderSize = 16
)

// Header describes one box found by the walker.
type Header struct {
	Type Type
	// Offset of the box from the start of the stream.
	Offset int64
	// Length is the total box length including the header. A zero length
	// field is resolved to the rest of the enclosing region.
	Length int64
	// HeaderSize is 8, or 16 for the extended length form.
	HeaderSize int64
}

// PayloadOffset returns the offset of the first content byte.
func (h Header) PayloadOffset() int64 {
	return h.Offset + h.HeaderSize
}

// PayloadLength returns the length of the box contents.
func (h Header) PayloadLength() int64 {
	return h.Length - h.HeaderSize
}

// End returns the offset just past the box.
func (h Header) End() int64 {
	return h.Offset + h.Length
}

// ReadHeader reads a box header at the current offset of r. end is the end of
// the enclosing region, used to resolve a zero length field and to reject
// boxes that do not fit.
func ReadHeader(r *bio.Reader, end int64) (Header, error) {
	h := Header{Offset: r.Offset(), HeaderSize: headerSize}
	if end-h.Offset < headerSize {
		return Header{}, fmt.Errorf("%w: %d byte(s) at offset %d cannot hold a box header",
			bio.ErrTruncated, end-h.Offset, h.Offset)
	}

	length, err := r.ReadU32()
	if err != nil {
		return Header{}, fmt.Errorf("reading box length: %w", err)
	}
	typ, err := r.ReadU32()
	if err != nil {
		return Header{}, fmt.Errorf("reading box type: %w", err)
	}
	h.Type = Type(typ)

	switch length {
	case 0:
		// Box extends to the end of the region
		h.Length = end - h.Offset
	case 1:
		if end-h.Offset < extendedHeaderSize {
			return Header{}, fmt.Errorf("%w: %d byte(s) at offset %d cannot hold an extended box header",
				bio.ErrTruncated, end-h.Offset, h.Offset)
		}
		ext, err := r.ReadU64()
		if err != nil {
			return Header{}, fmt.Errorf("reading extended length of %q: %w", h.Type, err)
		}
		if ext > math.MaxInt64 {
			return Header{}, fmt.Errorf("%w: %q at offset %d declares %d bytes", ErrBoxLength, h.Type, h.Offset, ext)
		}
		h.HeaderSize = extendedHeaderSize
		h.Length = int64(ext)
	default:
		h.Length = int64(length)
	}

	if h.Length < h.HeaderSize {
		return Header{}, fmt.Errorf("%w: %q at offset %d declares %d bytes, less than its %d-byte header",
			ErrBoxLength, h.Type, h.Offset, h.Length, h.HeaderSize)
	}
	if h.End() > end {
		return Header{}, fmt.Errorf("%w: %q at offset %d with %d bytes ends at %d, region ends at %d",
			ErrBoxLength, h.Type, h.Offset, h.Length, h.End(), end)
	}
	return h, nil
}
