// Package conflict detects overlaps between a candidate reservation
// window and existing bookings, productions and closures.
package conflict

import (
	"errors"
	"fmt"
	"strings"

	"bandroom/internal/db"
	"bandroom/internal/interval"
)

// ErrConflict marks a business-rule rejection: the candidate window
// overlaps an existing blocking record. Distinguished from other
// failures so batch generation can skip instead of abort.
var ErrConflict = errors.New("time range conflicts with existing booking")

// Conflict kinds.
const (
	KindReservation = "reservation"
	KindProduction  = "production"
	KindClosure     = "closure"
)

// Conflict classifies one overlapping entity. Produced, never persisted.
type Conflict struct {
	Kind  string         `json:"kind"`
	ID    int64          `json:"id"`
	Range interval.Range `json:"range"`
	Label string         `json:"label,omitempty"`
}

// Result groups detected conflicts by kind. An empty result is the
// first-class "no conflict" answer.
type Result struct {
	Reservations []Conflict `json:"reservations"`
	Productions  []Conflict `json:"productions"`
	Closures     []Conflict `json:"closures"`
}

// Empty reports whether no conflict was found.
func (r *Result) Empty() bool {
	return len(r.Reservations) == 0 && len(r.Productions) == 0 && len(r.Closures) == 0
}

// All returns every conflict in one slice.
func (r *Result) All() []Conflict {
	out := make([]Conflict, 0, len(r.Reservations)+len(r.Productions)+len(r.Closures))
	out = append(out, r.Reservations...)
	out = append(out, r.Productions...)
	out = append(out, r.Closures...)
	return out
}

// Error carries the detected conflicts across the adapter boundary.
// errors.Is(err, ErrConflict) holds for it.
type Error struct {
	Result *Result
}

func (e *Error) Error() string {
	all := e.Result.All()
	parts := make([]string, len(all))
	for i, c := range all {
		parts[i] = fmt.Sprintf("%s %d %s", c.Kind, c.ID, c.Range)
	}
	return "conflict with " + strings.Join(parts, ", ")
}

func (e *Error) Is(target error) bool { return target == ErrConflict }

// FromOverlaps converts a store overlap set into a grouped result.
func FromOverlaps(set *db.OverlapSet) *Result {
	res := &Result{}
	for _, r := range set.Reservations {
		res.Reservations = append(res.Reservations, Conflict{
			Kind:  KindReservation,
			ID:    r.ID,
			Range: interval.Range{Start: r.StartTime, End: r.EndTime},
		})
	}
	for _, p := range set.Productions {
		res.Productions = append(res.Productions, Conflict{
			Kind:  KindProduction,
			ID:    p.ID,
			Range: interval.Range{Start: p.StartTime, End: p.EndTime},
			Label: p.Title,
		})
	}
	for _, c := range set.Closures {
		res.Closures = append(res.Closures, Conflict{
			Kind:  KindClosure,
			ID:    c.ID,
			Range: interval.Range{Start: c.StartTime, End: c.EndTime},
			Label: c.Label,
		})
	}
	return res
}
