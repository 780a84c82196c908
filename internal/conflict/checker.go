package conflict

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bandroom/internal/db"
	"bandroom/internal/interval"
	"bandroom/internal/metrics"
)

// Store provides the overlap queries the checker runs. Read-only.
type Store interface {
	FindOverlaps(ctx context.Context, roomID int64, start, end time.Time, excludeReservationID int64) (*db.OverlapSet, error)
}

// Checker detects conflicts for candidate reservation windows.
type Checker struct {
	store  Store
	logger *zerolog.Logger
}

// NewChecker creates a conflict checker over the store.
func NewChecker(store Store, logger *zerolog.Logger) *Checker {
	return &Checker{store: store, logger: logger}
}

// Check returns all conflicts between the candidate range and existing
// blocking records for the room. excludeReservationID (0 for none)
// ignores one reservation, used when rescheduling a booking against
// itself; closures are never excluded. Read-only; an empty result is
// not an error.
func (c *Checker) Check(ctx context.Context, roomID int64, rng interval.Range, excludeReservationID int64) (*Result, error) {
	set, err := c.store.FindOverlaps(ctx, roomID, rng.Start, rng.End, excludeReservationID)
	if err != nil {
		return nil, fmt.Errorf("find overlaps: %w", err)
	}

	res := FromOverlaps(set)
	if !res.Empty() {
		for _, conflict := range res.All() {
			metrics.IncConflictDetected(conflict.Kind)
		}
		c.logger.Debug().
			Int64("room_id", roomID).
			Str("range", rng.String()).
			Int("reservations", len(res.Reservations)).
			Int("productions", len(res.Productions)).
			Int("closures", len(res.Closures)).
			Msg("conflicts detected")
	}
	return res, nil
}
