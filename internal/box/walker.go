package box

import (
	"fmt"

	"github.com/mrjoshuak/go-jp2walk/internal/bio"
	"github.com/mrjoshuak/go-jp2walk/internal/codestream"
)

// DefaultMaxDepth bounds super-box recursion when no limit is given.
const DefaultMaxDepth = 16

// Func is called for every box. The reader is positioned at the first content
// byte. Returning codestream.AlreadyConsumed means the callback has moved the
// stream past the contents itself, typically by calling w.Descend.
//
// For the contiguous codestream box, codestream.SkipPayload hands the
// contents to the marker walker when one is configured.
type Func func(h Header, w *Walker) (codestream.Outcome, error)

// Walker walks a sequence of boxes.
type Walker struct {
	r        *bio.Reader
	onBox    Func
	onMarker codestream.MarkerFunc
	maxDepth int
	depth    int
}

// NewWalker creates a box walker over r. A nil onBox skips every box. A nil
// onMarker skips codestream boxes like any other box.
func NewWalker(r *bio.Reader, onBox Func, onMarker codestream.MarkerFunc, maxDepth int) *Walker {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Walker{r: r, onBox: onBox, onMarker: onMarker, maxDepth: maxDepth}
}

// Walk walks the boxes in the next budget bytes of r.
func Walk(r *bio.Reader, budget int64, onBox Func, onMarker codestream.MarkerFunc, maxDepth int) error {
	w := NewWalker(r, onBox, onMarker, maxDepth)
	end := r.Offset() + budget
	if budget < 0 || end > r.Size() {
		return fmt.Errorf("%w: box region of %d bytes at offset %d exceeds stream size %d",
			bio.ErrTruncated, budget, r.Offset(), r.Size())
	}
	return w.walk(end)
}

// Reader returns the stream shared by the walker and its callbacks.
func (w *Walker) Reader() *bio.Reader {
	return w.r
}

// Depth returns the super-box nesting level of the box being visited; top
// level boxes are at depth 0.
func (w *Walker) Depth() int {
	return w.depth
}

// Descend walks the contents of h as a sequence of child boxes using the same
// callbacks. The stream is left at the end of h.
func (w *Walker) Descend(h Header) error {
	if w.depth+1 > w.maxDepth {
		return fmt.Errorf("%w: %q at offset %d is at depth %d, limit %d",
			ErrTooDeep, h.Type, h.Offset, w.depth+1, w.maxDepth)
	}
	if err := w.r.SeekTo(h.PayloadOffset()); err != nil {
		return err
	}
	w.depth++
	err := w.walk(h.End())
	w.depth--
	if err != nil {
		return fmt.Errorf("in %q at offset %d: %w", h.Type, h.Offset, err)
	}
	return nil
}

func (w *Walker) walk(end int64) error {
	for w.r.Offset() < end {
		h, err := ReadHeader(w.r, end)
		if err != nil {
			return err
		}

		outcome := codestream.SkipPayload
		if w.onBox != nil {
			outcome, err = w.onBox(h, w)
			if err != nil {
				return fmt.Errorf("%q at offset %d: %w", h.Type, h.Offset, err)
			}
		}

		switch outcome {
		case codestream.SkipPayload:
			if h.Type == TypeContCodestream && w.onMarker != nil {
				if err := w.r.SeekTo(h.PayloadOffset()); err != nil {
					return err
				}
				if err := codestream.Walk(w.r, h.PayloadLength(), w.onMarker); err != nil {
					return fmt.Errorf("in %q at offset %d: %w", h.Type, h.Offset, err)
				}
			}
			if err := w.r.SeekTo(h.End()); err != nil {
				return err
			}
		case codestream.AlreadyConsumed:
			if off := w.r.Offset(); off < h.PayloadOffset() || off > end {
				return fmt.Errorf("%w: callback for %q left stream at offset %d, outside [%d, %d]",
					codestream.ErrOverrun, h.Type, off, h.PayloadOffset(), end)
			}
		default:
			return fmt.Errorf("box: unknown callback outcome %v", outcome)
		}
	}
	return nil
}
