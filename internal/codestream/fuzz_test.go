package codestream

import (
	"bytes"
	"testing"

	"github.com/mrjoshuak/go-jp2walk/internal/bio"
)

// FuzzWalk tests the marker walker with arbitrary input.
// Run with: go test -fuzz=FuzzWalk -fuzztime=60s
func FuzzWalk(f *testing.F) {
	valid, _, _ := singleTile(false, 16)
	zero, _, _ := singleTile(true, 16)
	f.Add(valid)
	f.Add(zero)

	// Just SOC
	f.Add([]byte{0xFF, 0x4F})

	// Empty
	f.Add([]byte{})

	// Random markers
	f.Add([]byte{0xFF, 0x90, 0xFF, 0x93, 0xFF, 0xD9})

	f.Fuzz(func(t *testing.T, data []byte) {
		r := newReader(t, data)
		var last int64 = -1
		err := Walk(r, int64(len(data)), func(seg Segment, r *bio.Reader) (Outcome, error) {
			if seg.Offset <= last {
				t.Fatalf("segment at %d does not advance past %d", seg.Offset, last)
			}
			if seg.Marker>>8 != 0xFF {
				t.Fatalf("reported %#04x at %d as a marker", uint16(seg.Marker), seg.Offset)
			}
			if seg.Length < 0 {
				t.Fatalf("negative length %d for %s", seg.Length, seg.Marker)
			}
			last = seg.Offset
			return SkipPayload, nil
		})
		if err == nil && r.Offset() != int64(len(data)) {
			t.Fatalf("successful walk stopped at %d of %d", r.Offset(), len(data))
		}
	})
}

// FuzzTrailingBytes tests the EOC locator with arbitrary input.
func FuzzTrailingBytes(f *testing.F) {
	f.Add([]byte{0xFF, 0xD9})
	f.Add([]byte{0xFF, 0xD9, 0x00})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, data []byte) {
		n, err := TrailingBytes(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return
		}
		end := len(data) - int(n)
		if end < 2 || data[end-2] != 0xFF || data[end-1] != 0xD9 {
			t.Fatalf("TrailingBytes() = %d does not point after an EOC", n)
		}
	})
}
