// Package interval provides time-range algebra for reservation conflict checks.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a range's start is not before its end.
var ErrInvalidRange = errors.New("invalid range: start must be before end")

// Range is a half-open time interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// New validates and constructs a Range.
func New(start, end time.Time) (Range, error) {
	if !start.Before(end) {
		return Range{}, fmt.Errorf("%w: start=%s end=%s", ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Range{Start: start, End: end}, nil
}

// MustNew constructs a Range and panics on invalid bounds. For tests and
// literals known to be valid.
func MustNew(start, end time.Time) Range {
	r, err := New(start, end)
	if err != nil {
		panic(err)
	}
	return r
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Contains reports whether t falls inside the half-open interval.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Overlaps reports whether two ranges intersect. Half-open semantics:
// ranges that merely touch at an endpoint do not overlap.
func Overlaps(a, b Range) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
