package series

import (
	"context"
	"time"

	"bandroom/internal/model"
)

// Recurrable is the capability set a bookable entity type provides to
// participate in recurrence. The generator stays decoupled from any
// concrete entity; an implementation is registered per recurable type.
type Recurrable interface {
	// CreateForDate materializes the instance for one occurrence date.
	// When the date's derived window overlaps existing bookings the
	// returned error satisfies errors.Is(err, conflict.ErrConflict),
	// which the generator treats as skip, not abort.
	CreateForDate(ctx context.Context, s *model.RecurringSeries, date time.Time) (int64, error)

	// CreatePlaceholderForDate records a skipped date. No conflict
	// check: the placeholder is the record of a non-booking.
	CreatePlaceholderForDate(ctx context.Context, s *model.RecurringSeries, date time.Time, reason string) error

	// ExistsForDate is the idempotence guard: true when an instance
	// row already exists for the (series, date) pair.
	ExistsForDate(ctx context.Context, s *model.RecurringSeries, date time.Time) (bool, error)

	// CancelFutureInstances cancels materialized instances that have
	// not yet occurred and returns the count cancelled.
	CancelFutureInstances(ctx context.Context, s *model.RecurringSeries, reason string) (int64, error)
}
