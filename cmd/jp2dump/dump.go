package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"

	jp2walk "github.com/mrjoshuak/go-jp2walk"
	"github.com/mrjoshuak/go-jp2walk/internal/box"
	"github.com/mrjoshuak/go-jp2walk/internal/codestream"
)

const (
	// maxDecoded bounds the contents read for pretty-printing a box or segment.
	maxDecoded = 1 << 20
	// hexLimit bounds the hex dump of an unknown box.
	hexLimit = 256
)

// dumper prints boxes and marker segments as the walkers report them.
type dumper struct {
	w       io.Writer
	hexDump bool

	sawBox bool
	// Indentation of marker lines, one deeper than the enclosing jp2c box.
	markerDepth int
	// Start of the current codestream, for relative offsets.
	csStart int64
	// Bytes of tile-part data seen in the current codestream.
	dataSize int64
	// Set from SOC until the next delimiting marker.
	inMainHeader bool
}

func newDumper(w io.Writer, hexDump bool) *dumper {
	return &dumper{w: w, hexDump: hexDump}
}

func (d *dumper) printf(depth int, format string, args ...interface{}) {
	fmt.Fprint(d.w, strings.Repeat("  ", depth))
	fmt.Fprintf(d.w, format, args...)
}

func (d *dumper) box(h jp2walk.BoxHeader, w *jp2walk.BoxWalker) (jp2walk.Outcome, error) {
	d.sawBox = true
	depth := w.Depth()
	d.printf(depth, "[%s] %s at %d, %d bytes (header %d)\n",
		h.Type, h.Type.Description(), h.Offset, h.Length, h.HeaderSize)

	switch {
	case h.Type == box.TypeContCodestream:
		d.markerDepth = depth + 1
		return jp2walk.SkipPayload, nil
	case h.Type.IsSuperBox():
		if err := w.Descend(h); err != nil {
			return jp2walk.SkipPayload, err
		}
		return jp2walk.AlreadyConsumed, nil
	}

	if h.PayloadLength() > maxDecoded {
		return jp2walk.SkipPayload, nil
	}
	known := h.Type.Description() != "unknown box"
	if !known && !d.hexDump {
		return jp2walk.SkipPayload, nil
	}
	data, err := w.Reader().Bytes(h.PayloadLength())
	if err != nil {
		return jp2walk.SkipPayload, err
	}
	if !known {
		if len(data) > hexLimit {
			data = data[:hexLimit]
		}
		if len(data) > 0 {
			for _, line := range strings.Split(strings.TrimRight(hex.Dump(data), "\n"), "\n") {
				d.printf(depth+1, "%s\n", line)
			}
		}
		return jp2walk.AlreadyConsumed, nil
	}
	if err := d.boxContents(depth+1, h.Type, data); err != nil {
		glog.Warningf("%s box at offset %d: %v", h.Type, h.Offset, err)
	}
	return jp2walk.AlreadyConsumed, nil
}

func (d *dumper) boxContents(depth int, t box.Type, data []byte) error {
	switch t {
	case box.TypeJP2Signature:
		if err := box.CheckSignature(data); err != nil {
			return err
		}
		d.printf(depth, "signature ok\n")
	case box.TypeFileType:
		f, err := box.ParseFileType(data)
		if err != nil {
			return err
		}
		compat := make([]string, len(f.Compatibility))
		for i, c := range f.Compatibility {
			compat[i] = fmt.Sprintf("%q", c)
		}
		d.printf(depth, "brand %q, minor version %d, compatible %s\n",
			f.Brand, f.MinorVersion, strings.Join(compat, " "))
	case box.TypeImageHeader:
		ih, err := box.ParseImageHeader(data)
		if err != nil {
			return err
		}
		bpc := "per component"
		if !ih.VariableDepth() {
			bpc = fmt.Sprintf("%d-bit", int(ih.BitsPerComponent&0x7F)+1)
			if ih.BitsPerComponent&0x80 != 0 {
				bpc += " signed"
			}
		}
		d.printf(depth, "%dx%d, %d component(s), %s, compression %d\n",
			ih.Width, ih.Height, ih.NumComponents, bpc, ih.CompressionType)
	case box.TypeColorSpec:
		c, err := box.ParseColourSpec(data)
		if err != nil {
			return err
		}
		if c.Method == box.MethodEnumerated {
			d.printf(depth, "enumerated colourspace %s (%d)\n", box.ColourspaceName(c.Enumerated), c.Enumerated)
		} else {
			d.printf(depth, "method %d, ICC profile of %d bytes\n", c.Method, len(c.ICCProfile))
		}
	case box.TypeCaptureRes, box.TypeDisplayRes:
		r, err := box.ParseResolution(data)
		if err != nil {
			return err
		}
		d.printf(depth, "%.2f x %.2f grid points per metre\n", r.Horizontal(), r.Vertical())
	case box.TypeChannelDef:
		defs, err := box.ParseChannelDefinitions(data)
		if err != nil {
			return err
		}
		for _, def := range defs {
			d.printf(depth, "channel %d: type %d, association %d\n", def.Channel, def.Type, def.Association)
		}
	case box.TypeBitsPerComp:
		for i, b := range data {
			d.printf(depth, "component %d: %d-bit\n", i, int(b&0x7F)+1)
		}
	}
	return nil
}

func (d *dumper) marker(seg jp2walk.Segment, s *jp2walk.Stream) (jp2walk.Outcome, error) {
	depth := d.markerDepth
	if seg.Marker == codestream.SOC {
		d.csStart = seg.Offset
		d.dataSize = 0
		d.inMainHeader = true
	} else if d.inMainHeader && seg.Marker.IsDelimiter() {
		d.inMainHeader = false
		d.printf(depth, "main header %d bytes\n", seg.Offset-d.csStart)
	}
	d.printf(depth, "%s %s at %d (+%d), %d bytes\n",
		seg.Marker, seg.Marker.Description(), seg.Offset, seg.Offset-d.csStart, seg.Length)

	switch seg.Marker {
	case codestream.SOD:
		d.dataSize += seg.Length
		return jp2walk.SkipPayload, nil
	case codestream.EOC:
		d.summary(depth, seg.End()-d.csStart)
		return jp2walk.SkipPayload, nil
	case codestream.SIZ, codestream.SOT, codestream.COD, codestream.QCD, codestream.COM, codestream.TLM:
	default:
		return jp2walk.SkipPayload, nil
	}

	if seg.Length > maxDecoded {
		return jp2walk.SkipPayload, nil
	}
	data, err := s.Bytes(seg.Length)
	if err != nil {
		return jp2walk.SkipPayload, err
	}
	if err := d.segment(depth+1, seg.Marker, data); err != nil {
		glog.Warningf("%s segment at offset %d: %v", seg.Marker, seg.Offset, err)
	}
	return jp2walk.AlreadyConsumed, nil
}

func (d *dumper) segment(depth int, m codestream.Marker, data []byte) error {
	switch m {
	case codestream.SIZ:
		siz, err := codestream.ParseSIZ(data)
		if err != nil {
			return err
		}
		nx, ny := siz.NumTiles()
		d.printf(depth, "image %dx%d at (%d,%d), profile %s\n",
			siz.Width, siz.Height, siz.XOffset, siz.YOffset, siz.Profile)
		d.printf(depth, "tiles %dx%d of %dx%d at (%d,%d)\n",
			nx, ny, siz.TileWidth, siz.TileHeight, siz.TileXOffset, siz.TileYOffset)
		for i, c := range siz.ComponentInfo {
			sign := "unsigned"
			if c.IsSigned() {
				sign = "signed"
			}
			d.printf(depth, "component %d: %d-bit %s, sampling %dx%d\n",
				i, c.Precision(), sign, c.SubsamplingX, c.SubsamplingY)
		}
	case codestream.SOT:
		tp, err := codestream.ParseSOT(data)
		if err != nil {
			return err
		}
		count := "unknown"
		if tp.Count != 0 {
			count = fmt.Sprint(tp.Count)
		}
		length := "to end of codestream"
		if tp.Length != 0 {
			length = fmt.Sprintf("%d bytes", tp.Length)
		}
		d.printf(depth, "tile %d, part %d of %s, %s\n", tp.TileIndex, tp.Index, count, length)
	case codestream.COD:
		cod, err := codestream.ParseCOD(data)
		if err != nil {
			return err
		}
		transform := "9-7 irreversible"
		if cod.IsReversible() {
			transform = "5-3 reversible"
		}
		d.printf(depth, "%s, %d layer(s), %d level(s), code-block %dx%d, %s\n",
			cod.ProgressionOrder, cod.NumLayers, cod.NumDecompositions,
			cod.CodeBlockWidth(), cod.CodeBlockHeight(), transform)
		d.printf(depth, "SOP %t, EPH %t, MCT %d\n",
			cod.CodingStyle&codestream.CodingStyleSOP != 0,
			cod.CodingStyle&codestream.CodingStyleEPH != 0,
			cod.MultipleComponentXf)
	case codestream.QCD:
		q, err := codestream.ParseQCD(data)
		if err != nil {
			return err
		}
		d.printf(depth, "style %d, %d guard bit(s), %d step size(s)\n", q.Style, q.GuardBits, len(q.StepSizes))
	case codestream.COM:
		c, err := codestream.ParseCOM(data)
		if err != nil {
			return err
		}
		if c.Registration != codestream.CommentLatin {
			d.printf(depth, "binary comment, %d bytes\n", len(c.Data))
			break
		}
		text, err := c.Text()
		if err != nil {
			return err
		}
		d.printf(depth, "comment %q\n", text)
	case codestream.TLM:
		tlm, err := codestream.ParseTLM(data)
		if err != nil {
			return err
		}
		d.printf(depth, "index %d, %d entr(ies)\n", tlm.Index, len(tlm.Entries))
		for _, e := range tlm.Entries {
			d.printf(depth+1, "tile %d: %d bytes\n", e.TileIndex, e.Length)
		}
	}
	return nil
}

// summary reports how much of a codestream is tile-part data.
func (d *dumper) summary(depth int, size int64) {
	overhead := 0.0
	if size > 0 {
		overhead = float64(size-d.dataSize) * 100 / float64(size)
	}
	d.printf(depth, "codestream %d bytes, tile data %d bytes, overhead %.2f%%\n", size, d.dataSize, overhead)
}
