package jp2walk

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mrjoshuak/go-jp2walk/internal/bio"
	"github.com/mrjoshuak/go-jp2walk/internal/box"
	"github.com/mrjoshuak/go-jp2walk/internal/codestream"
)

// signatureBox is the complete 12-byte JP2 signature box.
var signatureBox = []byte{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' ', 0x0D, 0x0A, 0x87, 0x0A}

// FileSize returns the size of the file at path in bytes.
func FileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// IsBoxFile reports whether the file at path looks like a boxed (JP2) file
// rather than a raw codestream. Only the first byte is examined: a raw
// codestream starts with the high byte of SOC. Use DetectFormat for a full
// signature check.
func IsBoxFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	var b [1]byte
	if _, err := io.ReadFull(f, b[:]); err != nil {
		if err == io.EOF {
			return false, fmt.Errorf("%s: %w", path, ErrEmptyFile)
		}
		return false, err
	}
	return b[0] != byte(codestream.SOC>>8), nil
}

// DetectFormat identifies a file by its signature: a complete JP2 signature
// box, or an SOC marker.
func DetectFormat(r io.ReaderAt) (Format, error) {
	head := make([]byte, len(signatureBox))
	n, err := r.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return 0, err
	}
	head = head[:n]

	if bytes.Equal(head, signatureBox) {
		return FormatJP2, nil
	}
	if len(head) >= 2 && head[0] == byte(SOC>>8) && head[1] == byte(SOC&0xFF) {
		return FormatJ2K, nil
	}
	return 0, ErrUnknownFormat
}

// TrailingBytesAfterCodestreamEnd returns how many bytes of the file at path
// follow its last EOC marker.
func TrailingBytesAfterCodestreamEnd(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return codestream.TrailingBytes(f, fi.Size())
}

// WalkCodestream walks the marker segments in the next size bytes of rs.
func WalkCodestream(rs io.ReadSeeker, size int64, onMarker MarkerFunc) error {
	r, err := streamOf(rs, size)
	if err != nil {
		return err
	}
	return codestream.Walk(r, size-r.Offset(), onMarker)
}

// WalkBoxFile walks the boxes in the next size bytes of rs, handing every
// codestream box to onMarker.
func WalkBoxFile(rs io.ReadSeeker, size int64, onBox BoxFunc, onMarker MarkerFunc, opts *Options) error {
	r, err := streamOf(rs, size)
	if err != nil {
		return err
	}
	return box.Walk(r, size-r.Offset(), onBox, onMarker, opts.maxDepth())
}

// streamOf wraps rs, which must hold size bytes from its start.
func streamOf(rs io.ReadSeeker, size int64) (*bio.Reader, error) {
	r, err := bio.NewReader(rs, size)
	if err != nil {
		return nil, err
	}
	if r.Offset() > size {
		return nil, fmt.Errorf("%w: stream positioned at %d past its size %d", ErrTruncated, r.Offset(), size)
	}
	return r, nil
}

// ParseCodestream walks a raw codestream file. The walk ends at the last EOC
// marker; anything after it is ignored.
func ParseCodestream(path string, onMarker MarkerFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	size := fi.Size()

	trailing, err := codestream.TrailingBytes(f, size)
	switch {
	case errors.Is(err, ErrNoEOC):
		// Walk everything and let the walker report the damage.
		trailing = 0
	case err != nil:
		return fmt.Errorf("%s: %w", path, err)
	}

	r, err := bio.NewReader(f, size)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := codestream.Walk(r, size-trailing, onMarker); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// ParseBoxFile walks a JP2 file with the default options.
func ParseBoxFile(path string, onBox BoxFunc, onMarker MarkerFunc) error {
	return parseBoxFile(path, onBox, onMarker, nil)
}

func parseBoxFile(path string, onBox BoxFunc, onMarker MarkerFunc, opts *Options) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	if err := WalkBoxFile(f, fi.Size(), onBox, onMarker, opts); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Parse identifies the file at path and walks it as a raw codestream or a JP2
// file. onBox is not called for raw codestreams.
func Parse(path string, onBox BoxFunc, onMarker MarkerFunc, opts *Options) error {
	isBox, err := isBoxFile(path, opts)
	if err != nil {
		return err
	}
	if isBox {
		return parseBoxFile(path, onBox, onMarker, opts)
	}
	return ParseCodestream(path, onMarker)
}

func isBoxFile(path string, opts *Options) (bool, error) {
	if opts == nil || !opts.StrictSignature {
		return IsBoxFile(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	format, err := DetectFormat(f)
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return format == FormatJP2, nil
}
