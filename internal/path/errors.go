package path

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSegments indicates a trajectory was built without any motion.
	ErrNoSegments = errors.New("path: trajectory has no segments")

	// ErrInvalidSegment indicates a segment violates its invariants.
	ErrInvalidSegment = errors.New("path: invalid segment")

	// ErrNoPrevious indicates a modifier was applied before any segment.
	ErrNoPrevious = errors.New("path: no previous segment to modify")
)

// SegmentError ties an error to the segment index it came from.
type SegmentError struct {
	Index   int
	Wrapped error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Index, e.Wrapped)
}

func (e *SegmentError) Unwrap() error {
	return e.Wrapped
}
