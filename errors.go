package jp2walk

import (
	"errors"

	"github.com/mrjoshuak/go-jp2walk/internal/bio"
	"github.com/mrjoshuak/go-jp2walk/internal/box"
	"github.com/mrjoshuak/go-jp2walk/internal/codestream"
)

var (
	ErrTruncated      = bio.ErrTruncated
	ErrSegmentLength  = codestream.ErrSegmentLength
	ErrTilePartLength = codestream.ErrTilePartLength
	ErrOverrun        = codestream.ErrOverrun
	ErrNotMarker      = codestream.ErrNotMarker
	ErrBoxLength      = box.ErrBoxLength
	ErrTooDeep        = box.ErrTooDeep
	ErrNoEOC          = codestream.ErrNoEOC
	ErrUnknownFormat  = errors.New("jp2walk: unknown file format")
	ErrEmptyFile      = errors.New("jp2walk: empty file")
)
