package box

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Signature is the content of a valid JP2 signature box.
var Signature = []byte{0x0D, 0x0A, 0x87, 0x0A}

// CheckSignature reports whether data is the content of a JP2 signature box.
func CheckSignature(data []byte) error {
	if !bytes.Equal(data, Signature) {
		return fmt.Errorf("box: signature content % X, want % X", data, Signature)
	}
	return nil
}

func shortContent(t Type, got, want int) error {
	return fmt.Errorf("%w: %q contents have %d bytes, need %d", ErrBoxLength, t, got, want)
}

// ImageHeader holds the contents of an image header box.
type ImageHeader struct {
	Height            uint32
	Width             uint32
	NumComponents     uint16
	BitsPerComponent  uint8 // 0xFF when a bpcc box follows
	CompressionType   uint8 // 7 for JP2
	UnknownColorspace uint8
	IPR               uint8
}

// VariableDepth reports whether component depths are given by a bpcc box.
func (h *ImageHeader) VariableDepth() bool {
	return h.BitsPerComponent == 0xFF
}

// ParseImageHeader decodes ihdr contents.
func ParseImageHeader(data []byte) (*ImageHeader, error) {
	if len(data) < 14 {
		return nil, shortContent(TypeImageHeader, len(data), 14)
	}
	return &ImageHeader{
		Height:            binary.BigEndian.Uint32(data[0:4]),
		Width:             binary.BigEndian.Uint32(data[4:8]),
		NumComponents:     binary.BigEndian.Uint16(data[8:10]),
		BitsPerComponent:  data[10],
		CompressionType:   data[11],
		UnknownColorspace: data[12],
		IPR:               data[13],
	}, nil
}

// Colour specification methods.
const (
	MethodEnumerated uint8 = 1
	MethodRestricted uint8 = 2 // restricted ICC profile
	MethodAnyICC     uint8 = 3
)

// Enumerated colourspaces.
const (
	CSBilevel1  = 0
	CSYCbCr1    = 1
	CSYCbCr2    = 3
	CSYCbCr3    = 4
	CSPhotoYCC  = 9
	CSCMY       = 11
	CSCMYK      = 12
	CSYCCK      = 13
	CSCIELab    = 14
	CSBilevel2  = 15
	CSSRGB      = 16
	CSGray      = 17
	CSsYCC      = 18
	CSCIEJab    = 19
	CSeSRGB     = 20
	CSROMMRGB   = 21
	CSYPbPr1125 = 22
	CSYPbPr1250 = 23
	CSeSYCC     = 24
)

var colourspaceNames = map[uint32]string{
	CSBilevel1:  "bi-level",
	CSYCbCr1:    "YCbCr(1)",
	CSYCbCr2:    "YCbCr(2)",
	CSYCbCr3:    "YCbCr(3)",
	CSPhotoYCC:  "PhotoYCC",
	CSCMY:       "CMY",
	CSCMYK:      "CMYK",
	CSYCCK:      "YCCK",
	CSCIELab:    "CIELab",
	CSBilevel2:  "bi-level(2)",
	CSSRGB:      "sRGB",
	CSGray:      "greyscale",
	CSsYCC:      "sYCC",
	CSCIEJab:    "CIEJab",
	CSeSRGB:     "e-sRGB",
	CSROMMRGB:   "ROMM-RGB",
	CSYPbPr1125: "YPbPr(1125/60)",
	CSYPbPr1250: "YPbPr(1250/50)",
	CSeSYCC:     "e-sYCC",
}

// ColourspaceName returns a short name for an enumerated colourspace.
func ColourspaceName(cs uint32) string {
	if n, ok := colourspaceNames[cs]; ok {
		return n
	}
	return fmt.Sprintf("reserved(%d)", cs)
}

// ColourSpec holds the contents of a colour specification box.
type ColourSpec struct {
	Method        uint8
	Precedence    uint8
	Approximation uint8
	Enumerated    uint32 // set for MethodEnumerated
	ICCProfile    []byte // set for the ICC methods
}

// ParseColourSpec decodes colr contents.
func ParseColourSpec(data []byte) (*ColourSpec, error) {
	if len(data) < 3 {
		return nil, shortContent(TypeColorSpec, len(data), 3)
	}
	c := &ColourSpec{
		Method:        data[0],
		Precedence:    data[1],
		Approximation: data[2],
	}
	switch c.Method {
	case MethodEnumerated:
		if len(data) < 7 {
			return nil, shortContent(TypeColorSpec, len(data), 7)
		}
		c.Enumerated = binary.BigEndian.Uint32(data[3:7])
	case MethodRestricted, MethodAnyICC:
		c.ICCProfile = data[3:]
	}
	return c, nil
}

// FileType holds the contents of a file type box.
type FileType struct {
	Brand         Type
	MinorVersion  uint32
	Compatibility []Type
}

// Compatible reports whether t appears in the compatibility list.
func (f *FileType) Compatible(t Type) bool {
	for _, c := range f.Compatibility {
		if c == t {
			return true
		}
	}
	return false
}

// ParseFileType decodes ftyp contents.
func ParseFileType(data []byte) (*FileType, error) {
	if len(data) < 8 {
		return nil, shortContent(TypeFileType, len(data), 8)
	}
	if (len(data)-8)%4 != 0 {
		return nil, fmt.Errorf("%w: %q compatibility list of %d bytes is not a multiple of 4",
			ErrBoxLength, TypeFileType, len(data)-8)
	}
	f := &FileType{
		Brand:         Type(binary.BigEndian.Uint32(data[0:4])),
		MinorVersion:  binary.BigEndian.Uint32(data[4:8]),
		Compatibility: make([]Type, (len(data)-8)/4),
	}
	for i := range f.Compatibility {
		f.Compatibility[i] = Type(binary.BigEndian.Uint32(data[8+i*4:]))
	}
	return f, nil
}

// Resolution holds a capture or default display resolution box, in grid
// points per metre.
type Resolution struct {
	VerticalNum   uint16
	VerticalDen   uint16
	HorizontalNum uint16
	HorizontalDen uint16
	VerticalExp   int8
	HorizontalExp int8
}

// Vertical returns the vertical resolution.
func (r *Resolution) Vertical() float64 {
	return scaled(r.VerticalNum, r.VerticalDen, r.VerticalExp)
}

// Horizontal returns the horizontal resolution.
func (r *Resolution) Horizontal() float64 {
	return scaled(r.HorizontalNum, r.HorizontalDen, r.HorizontalExp)
}

func scaled(num, den uint16, exp int8) float64 {
	if den == 0 {
		return 0
	}
	v := float64(num) / float64(den)
	for ; exp > 0; exp-- {
		v *= 10
	}
	for ; exp < 0; exp++ {
		v /= 10
	}
	return v
}

// ParseResolution decodes resc or resd contents.
func ParseResolution(data []byte) (*Resolution, error) {
	if len(data) < 10 {
		return nil, shortContent(TypeCaptureRes, len(data), 10)
	}
	be := binary.BigEndian
	return &Resolution{
		VerticalNum:   be.Uint16(data[0:]),
		VerticalDen:   be.Uint16(data[2:]),
		HorizontalNum: be.Uint16(data[4:]),
		HorizontalDen: be.Uint16(data[6:]),
		VerticalExp:   int8(data[8]),
		HorizontalExp: int8(data[9]),
	}, nil
}

// ChannelDefinition describes one channel in a cdef box.
type ChannelDefinition struct {
	Channel     uint16
	Type        uint16 // 0 colour, 1 opacity, 2 premultiplied opacity
	Association uint16
}

// ParseChannelDefinitions decodes cdef contents.
func ParseChannelDefinitions(data []byte) ([]ChannelDefinition, error) {
	if len(data) < 2 {
		return nil, shortContent(TypeChannelDef, len(data), 2)
	}
	n := int(binary.BigEndian.Uint16(data))
	if want := 2 + 6*n; len(data) < want {
		return nil, shortContent(TypeChannelDef, len(data), want)
	}
	defs := make([]ChannelDefinition, n)
	for i := range defs {
		p := data[2+6*i:]
		defs[i] = ChannelDefinition{
			Channel:     binary.BigEndian.Uint16(p[0:]),
			Type:        binary.BigEndian.Uint16(p[2:]),
			Association: binary.BigEndian.Uint16(p[4:]),
		}
	}
	return defs, nil
}
