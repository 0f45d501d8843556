package codestream

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Coding style flags (from COD/COC markers).
const (
	// CodingStylePrecincts indicates custom precinct sizes are used.
	CodingStylePrecincts uint8 = 0x01
	// CodingStyleSOP indicates SOP markers are used.
	CodingStyleSOP uint8 = 0x02
	// CodingStyleEPH indicates EPH markers are used.
	CodingStyleEPH uint8 = 0x04
)

// Comment registration values for COM marker.
const (
	// CommentBinary indicates binary data.
	CommentBinary uint16 = 0
	// CommentLatin indicates ISO/IEC 8859-15 (Latin) text.
	CommentLatin uint16 = 1
)

// ProgressionOrder defines the order in which packets appear in a tile.
type ProgressionOrder uint8

const (
	// LRCP is Layer-Resolution-Component-Position order.
	LRCP ProgressionOrder = iota
	// RLCP is Resolution-Layer-Component-Position order.
	RLCP
	// RPCL is Resolution-Position-Component-Layer order.
	RPCL
	// PCRL is Position-Component-Resolution-Layer order.
	PCRL
	// CPRL is Component-Position-Resolution-Layer order.
	CPRL
)

// String returns the string representation of the progression order.
func (p ProgressionOrder) String() string {
	switch p {
	case LRCP:
		return "LRCP"
	case RLCP:
		return "RLCP"
	case RPCL:
		return "RPCL"
	case PCRL:
		return "PCRL"
	case CPRL:
		return "CPRL"
	default:
		return fmt.Sprintf("Reserved(%d)", uint8(p))
	}
}

// Profile is the capability field (Rsiz) of a SIZ marker segment.
type Profile uint16

// Profiles (Rsiz values).
const (
	ProfileNone            Profile = 0x0000
	ProfileCinema2K        Profile = 0x0003
	ProfileCinema4K        Profile = 0x0004
	ProfileCinemaS2K       Profile = 0x0005
	ProfileCinemaS4K       Profile = 0x0006
	ProfileCinemaLTS       Profile = 0x0007
	ProfileBroadcastSingle Profile = 0x0100
	ProfileBroadcastMulti  Profile = 0x0200
	ProfileIMF2K           Profile = 0x0400
	ProfileIMF4K           Profile = 0x0500
	ProfileIMF8K           Profile = 0x0600
	ProfilePart2           Profile = 0x8000
)

var profileNames = map[Profile]string{
	ProfileNone:            "none",
	0x0001:                 "Profile-0",
	0x0002:                 "Profile-1",
	ProfileCinema2K:        "Cinema 2K",
	ProfileCinema4K:        "Cinema 4K",
	ProfileCinemaS2K:       "scalable Cinema 2K",
	ProfileCinemaS4K:       "scalable Cinema 4K",
	ProfileCinemaLTS:       "Cinema long-term storage",
	ProfileBroadcastSingle: "broadcast single-tile",
	ProfileBroadcastMulti:  "broadcast multi-tile",
	ProfileIMF2K:           "IMF 2K",
	ProfileIMF4K:           "IMF 4K",
	ProfileIMF8K:           "IMF 8K",
}

// String returns the profile name. Broadcast and IMF profiles carry a level in
// their low bits, which is ignored here.
func (p Profile) String() string {
	if p&ProfilePart2 != 0 {
		return fmt.Sprintf("Part 2 (0x%04X)", uint16(p))
	}
	if n, ok := profileNames[p]; ok {
		return n
	}
	if n, ok := profileNames[p&0xFF00]; ok && p >= ProfileBroadcastSingle {
		return fmt.Sprintf("%s, level 0x%02X", n, uint16(p&0xFF))
	}
	return fmt.Sprintf("0x%04X", uint16(p))
}

func shortPayload(m Marker, got, want int) error {
	return fmt.Errorf("%w: %s payload has %d bytes, need %d", ErrSegmentLength, m, got, want)
}

// ImageSize holds the fields of a SIZ marker segment.
type ImageSize struct {
	Profile       Profile // Rsiz
	Width         uint32  // Xsiz
	Height        uint32  // Ysiz
	XOffset       uint32  // XOsiz
	YOffset       uint32  // YOsiz
	TileWidth     uint32  // XTsiz
	TileHeight    uint32  // YTsiz
	TileXOffset   uint32  // XTOsiz
	TileYOffset   uint32  // YTOsiz
	ComponentInfo []ComponentInfo
}

// ComponentInfo holds per-component size information from the SIZ marker.
type ComponentInfo struct {
	// Bit depth of the component (Ssiz).
	// If bit 7 is set, the component is signed.
	BitDepth uint8

	// Horizontal subsampling factor (XRsiz).
	SubsamplingX uint8

	// Vertical subsampling factor (YRsiz).
	SubsamplingY uint8
}

// Precision returns the bit precision (1-38).
func (c ComponentInfo) Precision() int {
	return int(c.BitDepth&0x7F) + 1
}

// IsSigned returns true if the component values are signed.
func (c ComponentInfo) IsSigned() bool {
	return c.BitDepth&0x80 != 0
}

// NumTiles returns the number of tiles across and down the reference grid.
// A tile grid offset at or past the image edge yields no tiles.
func (s *ImageSize) NumTiles() (uint32, uint32) {
	return tileCount(s.Width, s.TileXOffset, s.TileWidth), tileCount(s.Height, s.TileYOffset, s.TileHeight)
}

func tileCount(extent, offset, size uint32) uint32 {
	if size == 0 || offset >= extent {
		return 0
	}
	return uint32((uint64(extent) - uint64(offset) + uint64(size) - 1) / uint64(size))
}

// ParseSIZ decodes a SIZ payload.
func ParseSIZ(data []byte) (*ImageSize, error) {
	if len(data) < 36 {
		return nil, shortPayload(SIZ, len(data), 36)
	}
	be := binary.BigEndian
	s := &ImageSize{
		Profile:     Profile(be.Uint16(data[0:])),
		Width:       be.Uint32(data[2:]),
		Height:      be.Uint32(data[6:]),
		XOffset:     be.Uint32(data[10:]),
		YOffset:     be.Uint32(data[14:]),
		TileWidth:   be.Uint32(data[18:]),
		TileHeight:  be.Uint32(data[22:]),
		TileXOffset: be.Uint32(data[26:]),
		TileYOffset: be.Uint32(data[30:]),
	}
	numComponents := int(be.Uint16(data[34:]))
	if want := 36 + 3*numComponents; len(data) < want {
		return nil, shortPayload(SIZ, len(data), want)
	}
	s.ComponentInfo = make([]ComponentInfo, numComponents)
	for i := range s.ComponentInfo {
		p := data[36+3*i:]
		s.ComponentInfo[i] = ComponentInfo{BitDepth: p[0], SubsamplingX: p[1], SubsamplingY: p[2]}
	}
	return s, nil
}

// TilePart holds the fields of an SOT marker segment.
type TilePart struct {
	TileIndex uint16 // Isot
	Length    uint32 // Psot, 0 for an implicit last tile-part
	Index     uint8  // TPsot
	Count     uint8  // TNsot, 0 when unknown
}

// ParseSOT decodes an SOT payload.
func ParseSOT(data []byte) (*TilePart, error) {
	if len(data) < sotFieldsLength {
		return nil, shortPayload(SOT, len(data), sotFieldsLength)
	}
	return &TilePart{
		TileIndex: binary.BigEndian.Uint16(data[0:]),
		Length:    binary.BigEndian.Uint32(data[psotOffset:]),
		Index:     data[6],
		Count:     data[7],
	}, nil
}

// CodingStyleDefault holds data from the COD marker.
type CodingStyleDefault struct {
	// Scod: Coding style flags
	CodingStyle uint8

	// SGcod: Style for progressions
	ProgressionOrder    ProgressionOrder
	NumLayers           uint16
	MultipleComponentXf uint8

	// SPcod: Coding parameters
	NumDecompositions  uint8
	CodeBlockWidthExp  uint8
	CodeBlockHeightExp uint8
	CodeBlockStyle     uint8
	WaveletTransform   uint8

	// Precinct sizes (if CodingStylePrecincts is set)
	PrecinctSizes []PrecinctSize
}

// CodeBlockWidth returns the code block width.
func (c CodingStyleDefault) CodeBlockWidth() int {
	return 1 << (c.CodeBlockWidthExp + 2)
}

// CodeBlockHeight returns the code block height.
func (c CodingStyleDefault) CodeBlockHeight() int {
	return 1 << (c.CodeBlockHeightExp + 2)
}

// IsReversible returns true if the 5-3 reversible wavelet is used.
func (c CodingStyleDefault) IsReversible() bool {
	return c.WaveletTransform == 1
}

// PrecinctSize holds the precinct dimensions for a resolution level.
type PrecinctSize struct {
	WidthExp  uint8 // PPx
	HeightExp uint8 // PPy
}

// ParseCOD decodes a COD payload.
func ParseCOD(data []byte) (*CodingStyleDefault, error) {
	if len(data) < 10 {
		return nil, shortPayload(COD, len(data), 10)
	}
	c := &CodingStyleDefault{
		CodingStyle:         data[0],
		ProgressionOrder:    ProgressionOrder(data[1]),
		NumLayers:           binary.BigEndian.Uint16(data[2:]),
		MultipleComponentXf: data[4],
		NumDecompositions:   data[5],
		CodeBlockWidthExp:   data[6],
		CodeBlockHeightExp:  data[7],
		CodeBlockStyle:      data[8],
		WaveletTransform:    data[9],
	}
	if c.CodingStyle&CodingStylePrecincts != 0 {
		n := int(c.NumDecompositions) + 1
		if len(data) < 10+n {
			return nil, shortPayload(COD, len(data), 10+n)
		}
		c.PrecinctSizes = make([]PrecinctSize, n)
		for i := range c.PrecinctSizes {
			b := data[10+i]
			c.PrecinctSizes[i] = PrecinctSize{WidthExp: b & 0x0F, HeightExp: b >> 4}
		}
	}
	return c, nil
}

// QuantizationDefault holds data from the QCD marker.
type QuantizationDefault struct {
	Style     uint8 // low 5 bits of Sqcd
	GuardBits uint8 // high 3 bits of Sqcd
	// StepSizes holds one entry per sub-band: exponents only for
	// no quantization, exponent<<11|mantissa otherwise.
	StepSizes []uint16
}

// ParseQCD decodes a QCD payload.
func ParseQCD(data []byte) (*QuantizationDefault, error) {
	if len(data) < 1 {
		return nil, shortPayload(QCD, len(data), 1)
	}
	q := &QuantizationDefault{
		Style:     data[0] & 0x1F,
		GuardBits: data[0] >> 5,
	}
	rest := data[1:]
	if q.Style == 0 {
		q.StepSizes = make([]uint16, len(rest))
		for i, b := range rest {
			q.StepSizes[i] = uint16(b >> 3)
		}
		return q, nil
	}
	q.StepSizes = make([]uint16, len(rest)/2)
	for i := range q.StepSizes {
		q.StepSizes[i] = binary.BigEndian.Uint16(rest[2*i:])
	}
	return q, nil
}

// Comment holds a COM marker segment.
type Comment struct {
	Registration uint16 // Rcom
	Data         []byte
}

// ParseCOM decodes a COM payload.
func ParseCOM(data []byte) (*Comment, error) {
	if len(data) < 2 {
		return nil, shortPayload(COM, len(data), 2)
	}
	return &Comment{
		Registration: binary.BigEndian.Uint16(data),
		Data:         data[2:],
	}, nil
}

// Text returns the comment as UTF-8. Only Latin comments are text.
func (c *Comment) Text() (string, error) {
	if c.Registration != CommentLatin {
		return "", fmt.Errorf("codestream: comment registration %d is not text", c.Registration)
	}
	b, err := charmap.ISO8859_15.NewDecoder().Bytes(c.Data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TileLength is one entry of a TLM marker segment.
type TileLength struct {
	TileIndex uint16 // Ttlm, sequential when absent
	Length    uint32 // Ptlm
}

// TileLengths holds a TLM marker segment.
type TileLengths struct {
	Index   uint8 // Ztlm
	Entries []TileLength
}

// ParseTLM decodes a TLM payload.
func ParseTLM(data []byte) (*TileLengths, error) {
	if len(data) < 2 {
		return nil, shortPayload(TLM, len(data), 2)
	}
	t := &TileLengths{Index: data[0]}
	stlm := data[1]
	// ST: size of Ttlm (0, 1 or 2 bytes); SP: size of Ptlm (2 or 4 bytes).
	st := int(stlm>>4) & 0x3
	sp := 2
	if stlm&0x40 != 0 {
		sp = 4
	}
	if st == 3 {
		return nil, fmt.Errorf("%w: TLM uses reserved Ttlm size", ErrSegmentLength)
	}
	entry := st + sp
	rest := data[2:]
	if len(rest)%entry != 0 {
		return nil, fmt.Errorf("%w: TLM body of %d bytes is not a multiple of %d", ErrSegmentLength, len(rest), entry)
	}
	n := len(rest) / entry
	t.Entries = make([]TileLength, n)
	for i := 0; i < n; i++ {
		p := rest[i*entry:]
		e := TileLength{TileIndex: uint16(i)}
		switch st {
		case 1:
			e.TileIndex = uint16(p[0])
		case 2:
			e.TileIndex = binary.BigEndian.Uint16(p)
		}
		if sp == 4 {
			e.Length = binary.BigEndian.Uint32(p[st:])
		} else {
			e.Length = uint32(binary.BigEndian.Uint16(p[st:]))
		}
		t.Entries[i] = e
	}
	return t, nil
}
