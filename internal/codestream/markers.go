// Package codestream walks JPEG 2000 codestreams marker segment by marker segment.
package codestream

import "fmt"

// Marker codes for JPEG 2000 codestreams.
// These are defined in ISO/IEC 15444-1 Annex A.
const (
	// Delimiting markers and marker segments
	SOC Marker = 0xFF4F // Start of codestream
	SOT Marker = 0xFF90 // Start of tile-part
	SOD Marker = 0xFF93 // Start of data
	EOC Marker = 0xFFD9 // End of codestream

	// Fixed information marker segments
	SIZ Marker = 0xFF51 // Image and tile size

	// Functional marker segments
	COD Marker = 0xFF52 // Coding style default
	COC Marker = 0xFF53 // Coding style component
	RGN Marker = 0xFF5E // Region-of-interest
	QCD Marker = 0xFF5C // Quantization default
	QCC Marker = 0xFF5D // Quantization component
	POC Marker = 0xFF5F // Progression order change

	// Pointer marker segments
	TLM Marker = 0xFF55 // Tile-part lengths
	PLM Marker = 0xFF57 // Packet length, main header
	PLT Marker = 0xFF58 // Packet length, tile-part header
	PPM Marker = 0xFF60 // Packed packet headers, main header
	PPT Marker = 0xFF61 // Packed packet headers, tile-part header

	// In bit stream markers and marker segments
	SOP Marker = 0xFF91 // Start of packet
	EPH Marker = 0xFF92 // End of packet header

	// Informational marker segments
	CRG Marker = 0xFF63 // Component registration
	COM Marker = 0xFF64 // Comment

	// Part 2 extensions
	CAP Marker = 0xFF50 // Extended capabilities
	CBD Marker = 0xFF78 // Component bit depth
	MCT Marker = 0xFF74 // Multiple component transform collection
	MCC Marker = 0xFF75 // Multiple component transform component
	MCO Marker = 0xFF77 // Multiple component transform ordering

	// Reserved for markers without marker segment parameters (Table A.1).
	ReservedFirst Marker = 0xFF30
	ReservedLast  Marker = 0xFF3F
)

// Marker represents a JPEG 2000 marker code.
type Marker uint16

type markerInfo struct {
	name string
	desc string
}

var markerTable = map[Marker]markerInfo{
	SOC: {"SOC", "Start of codestream"},
	SOT: {"SOT", "Start of tile-part"},
	SOD: {"SOD", "Start of data"},
	EOC: {"EOC", "End of codestream"},
	SIZ: {"SIZ", "Image and tile size"},
	COD: {"COD", "Coding style default"},
	COC: {"COC", "Coding style component"},
	RGN: {"RGN", "Region-of-interest"},
	QCD: {"QCD", "Quantization default"},
	QCC: {"QCC", "Quantization component"},
	POC: {"POC", "Progression order change"},
	TLM: {"TLM", "Tile-part lengths"},
	PLM: {"PLM", "Packet length, main header"},
	PLT: {"PLT", "Packet length, tile-part header"},
	PPM: {"PPM", "Packed packet headers, main header"},
	PPT: {"PPT", "Packed packet headers, tile-part header"},
	SOP: {"SOP", "Start of packet"},
	EPH: {"EPH", "End of packet header"},
	CRG: {"CRG", "Component registration"},
	COM: {"COM", "Comment"},
	CAP: {"CAP", "Extended capabilities"},
	CBD: {"CBD", "Component bit depth"},
	MCT: {"MCT", "Multiple component transform collection"},
	MCC: {"MCC", "Multiple component transform component"},
	MCO: {"MCO", "Multiple component transform ordering"},
}

// String returns the short name of a marker. Reserved and unknown codes are
// rendered as hex.
func (m Marker) String() string {
	if info, ok := markerTable[m]; ok {
		return info.name
	}
	return fmt.Sprintf("0x%04X", uint16(m))
}

// Description returns the long name of a marker.
func (m Marker) Description() string {
	if info, ok := markerTable[m]; ok {
		return info.desc
	}
	if m.IsReserved() {
		return "Reserved, no segment"
	}
	return "Unknown marker"
}

// IsReserved reports whether m lies in the 0xFF30-0xFF3F block.
func (m Marker) IsReserved() bool {
	return m >= ReservedFirst && m <= ReservedLast
}

// HasLength returns true if this marker has a length field following it.
func (m Marker) HasLength() bool {
	switch m {
	case SOC, SOD, EOC, EPH:
		return false
	default:
		return !m.IsReserved()
	}
}

// IsDelimiter returns true if this is a delimiting marker.
func (m Marker) IsDelimiter() bool {
	switch m {
	case SOC, SOT, SOD, EOC:
		return true
	default:
		return false
	}
}
