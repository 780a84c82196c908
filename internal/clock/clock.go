// Package clock supplies an injectable time source so that generation
// and validation stay deterministic under test.
package clock

import "time"

// Clock yields the current instant and the current calendar date.
type Clock interface {
	Now() time.Time
	// Today returns the current date truncated to midnight in loc.
	Today(loc *time.Location) time.Time
}

// System reads the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Today(loc *time.Location) time.Time {
	return Midnight(time.Now().In(loc))
}

// Fixed always reports the same instant. For tests.
type Fixed struct {
	Instant time.Time
}

func (f Fixed) Now() time.Time { return f.Instant }

func (f Fixed) Today(loc *time.Location) time.Time {
	return Midnight(f.Instant.In(loc))
}

// Midnight truncates t to the start of its day, keeping the location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
