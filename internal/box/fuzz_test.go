package box

import (
	"testing"

	"github.com/mrjoshuak/go-jp2walk/internal/bio"
	"github.com/mrjoshuak/go-jp2walk/internal/codestream"
)

// FuzzWalk tests the box walker with arbitrary input.
// Run with: go test -fuzz=FuzzWalk -fuzztime=60s
func FuzzWalk(f *testing.F) {
	f.Add(join(signatureBox(), fileTypeBox(), boxBytes(TypeContCodestream, codestreamBytes(16))))
	f.Add(join(signatureBox(), jp2Header(jp2Header(boxBytes(TypeImageHeader, make([]byte, 14))))))
	f.Add(append(extendedHeader(24, TypeContCodestream), 0xFF, 0x4F, 0xFF, 0xD9, 0, 0, 0, 0))
	f.Add(header(0, TypeXML))
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		r := newReader(t, data)
		onBox := func(h Header, w *Walker) (codestream.Outcome, error) {
			if h.End() > int64(len(data)) || h.Length < h.HeaderSize {
				t.Fatalf("box %+v does not fit %d bytes", h, len(data))
			}
			if h.Type.IsSuperBox() {
				if err := w.Descend(h); err != nil {
					return codestream.SkipPayload, err
				}
				return codestream.AlreadyConsumed, nil
			}
			return codestream.SkipPayload, nil
		}
		onMarker := func(seg codestream.Segment, r *bio.Reader) (codestream.Outcome, error) {
			return codestream.SkipPayload, nil
		}
		err := Walk(r, int64(len(data)), onBox, onMarker, 4)
		if err == nil && r.Offset() != int64(len(data)) {
			t.Fatalf("successful walk stopped at %d of %d", r.Offset(), len(data))
		}
	})
}

// FuzzParseContents tests the box content decoders with arbitrary input.
func FuzzParseContents(f *testing.F) {
	f.Add([]byte{0, 0, 1, 0, 0, 0, 2, 0, 0, 3, 7, 7, 0, 0})
	f.Add([]byte{1, 0, 0, 0, 0, 0, 16})
	f.Add([]byte{0, 1, 0, 0, 0, 0, 0, 1})

	f.Fuzz(func(t *testing.T, data []byte) {
		ParseImageHeader(data)
		ParseColourSpec(data)
		ParseFileType(data)
		ParseResolution(data)
		ParseChannelDefinitions(data)
	})
}
