// Package bio provides byte-level, big-endian I/O over a seekable JPEG 2000 stream.
//
// A single Reader is the one cursor shared by the box walker and the codestream
// walker. It tracks its own offset so that region arithmetic never needs to
// query the underlying file.
package bio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTruncated is returned when the stream holds fewer bytes than requested.
var ErrTruncated = errors.New("jp2walk: truncated data")

// Reader reads big-endian integers from a seekable stream of known size.
type Reader struct {
	rs     io.ReadSeeker
	size   int64
	offset int64
	buf    [8]byte
}

// NewReader creates a reader positioned at the current offset of rs.
// size is the total number of bytes in rs.
func NewReader(rs io.ReadSeeker, size int64) (*Reader, error) {
	off, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("bio: locating stream position: %w", err)
	}
	return &Reader{rs: rs, size: size, offset: off}, nil
}

// Offset returns the current stream offset.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Size returns the total stream size.
func (r *Reader) Size() int64 {
	return r.size
}

// Remaining returns the number of unread bytes up to Size.
func (r *Reader) Remaining() int64 {
	if r.offset >= r.size {
		return 0
	}
	return r.size - r.offset
}

// ReadFull fills p. On a short read the offset still advances by the bytes
// actually consumed.
func (r *Reader) ReadFull(p []byte) error {
	n, err := io.ReadFull(r.rs, p)
	r.offset += int64(n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("%w: wanted %d bytes at offset %d, got %d: %v",
				ErrTruncated, len(p), r.offset-int64(n), n, err)
		}
		return err
	}
	return nil
}

// Bytes reads the next n bytes into a new slice.
func (r *Reader) Bytes(n int64) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("bio: negative read length %d", n)
	}
	if n > r.Remaining() {
		return nil, fmt.Errorf("%w: wanted %d bytes at offset %d, %d left",
			ErrTruncated, n, r.offset, r.Remaining())
	}
	data := make([]byte, n)
	if err := r.ReadFull(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	if err := r.ReadFull(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

// ReadU16 reads a big-endian uint16.
func (r *Reader) ReadU16() (uint16, error) {
	if err := r.ReadFull(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

// ReadU32 reads a big-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	if err := r.ReadFull(r.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(r.buf[:4]), nil
}

// ReadU64 reads a big-endian uint64.
func (r *Reader) ReadU64() (uint64, error) {
	if err := r.ReadFull(r.buf[:8]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(r.buf[:8]), nil
}

// SeekTo moves to the absolute offset off. Offsets past Size are rejected.
func (r *Reader) SeekTo(off int64) error {
	if off < 0 {
		return fmt.Errorf("bio: seek to negative offset %d", off)
	}
	if off > r.size {
		return fmt.Errorf("%w: seek to offset %d past end of stream (%d bytes)",
			ErrTruncated, off, r.size)
	}
	if off == r.offset {
		return nil
	}
	if _, err := r.rs.Seek(off, io.SeekStart); err != nil {
		return err
	}
	r.offset = off
	return nil
}

// Skip advances n bytes.
func (r *Reader) Skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("bio: negative skip %d", n)
	}
	return r.SeekTo(r.offset + n)
}

// Rewind moves back n bytes.
func (r *Reader) Rewind(n int64) error {
	return r.SeekTo(r.offset - n)
}
