package codestream

import (
	"errors"
	"fmt"
	"io"
)

// ErrNoEOC is returned when no end-of-codestream marker can be found.
var ErrNoEOC = errors.New("jp2walk: no end-of-codestream marker")

// tailChunk is how much of the file is read per step of the backward scan.
const tailChunk = 4096

// TrailingBytes returns the number of bytes that follow the last EOC marker in
// the first size bytes of r. A raw codestream carries no outer length, so this
// is what turns a file size into an exact walk budget.
func TrailingBytes(r io.ReaderAt, size int64) (int64, error) {
	if size < markerSize {
		return 0, ErrNoEOC
	}

	buf := make([]byte, tailChunk+1)
	// end is one past the last byte of the current window. Windows overlap by
	// one byte so a marker split across two reads is still seen.
	end := size
	for end >= markerSize {
		start := end - tailChunk - 1
		if start < 0 {
			start = 0
		}
		chunk := buf[:end-start]
		if _, err := r.ReadAt(chunk, start); err != nil && err != io.EOF {
			return 0, fmt.Errorf("scanning for EOC at offset %d: %w", start, err)
		}
		for i := len(chunk) - markerSize; i >= 0; i-- {
			if chunk[i] == byte(EOC>>8) && chunk[i+1] == byte(EOC&0xFF) {
				return size - (start + int64(i) + markerSize), nil
			}
		}
		if start == 0 {
			break
		}
		end = start + 1
	}
	return 0, ErrNoEOC
}
