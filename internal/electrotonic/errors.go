package electrotonic

import (
	"errors"
	"fmt"

	"github.com/chrissnell/electrotonic/internal/skeleton"
)

var (
	// ErrInvalidSegment is returned for segments with fewer than two nodes.
	ErrInvalidSegment = errors.New("invalid segment")

	// ErrMissingRadius is returned when a start node has no radius estimate.
	ErrMissingRadius = errors.New("missing radius estimate")

	// ErrInvalidGeometry is returned when a segment's length or radius is
	// not a finite number, or its distance is negative.
	ErrInvalidGeometry = errors.New("invalid segment geometry")

	// ErrDivisionByZero is returned when a segment has zero surface or
	// cross-sectional area.
	ErrDivisionByZero = errors.New("division by zero")
)

// SegmentError locates a failure within the input segment list.
type SegmentError struct {
	Index int
	Start skeleton.NodeID
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d (start node %d): %v", e.Index, e.Start, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}
