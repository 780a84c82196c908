// Package reservation implements rehearsal reservations: the ad-hoc
// booking service and the Recurrable adapter series generation uses.
package reservation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bandroom/internal/clock"
	"bandroom/internal/conflict"
	"bandroom/internal/db"
	"bandroom/internal/events"
	"bandroom/internal/metrics"
	"bandroom/internal/model"
	"bandroom/internal/series"
)

// AdapterStore is the persistence surface of the adapter.
type AdapterStore interface {
	CreateReservation(ctx context.Context, r *model.Reservation) error
	CreateReservationIfFree(ctx context.Context, r *model.Reservation) (*db.OverlapSet, error)
	InstanceExists(ctx context.Context, seriesID int64, date time.Time) (bool, error)
	CancelFutureInstances(ctx context.Context, seriesID int64, cutoff time.Time, reason string) (int64, error)
}

// Adapter makes rehearsal reservations recurrable. It satisfies
// series.Recurrable.
type Adapter struct {
	store  AdapterStore
	clk    clock.Clock
	loc    *time.Location
	bus    *events.Bus
	logger *zerolog.Logger
}

var _ series.Recurrable = (*Adapter)(nil)

// NewAdapter creates the rehearsal-reservation adapter.
func NewAdapter(store AdapterStore, clk clock.Clock, loc *time.Location, bus *events.Bus, logger *zerolog.Logger) *Adapter {
	if loc == nil {
		loc = time.UTC
	}
	return &Adapter{store: store, clk: clk, loc: loc, bus: bus, logger: logger}
}

// CreateForDate materializes one confirmed reservation for the
// occurrence date. The conflict check and the insert run in a single
// store transaction; an occupied window yields a *conflict.Error.
func (a *Adapter) CreateForDate(ctx context.Context, s *model.RecurringSeries, date time.Time) (int64, error) {
	rng, err := series.OccurrenceRange(s, date, a.loc)
	if err != nil {
		return 0, err
	}

	occurrence := clock.Midnight(date)
	r := &model.Reservation{
		RoomID:         s.RoomID,
		BandID:         s.BandID,
		StartTime:      rng.Start,
		EndTime:        rng.End,
		Status:         model.StatusConfirmed,
		SeriesID:       &s.ID,
		OccurrenceDate: &occurrence,
	}

	overlaps, err := a.store.CreateReservationIfFree(ctx, r)
	if err != nil {
		return 0, err
	}
	if !overlaps.Empty() {
		return 0, &conflict.Error{Result: conflict.FromOverlaps(overlaps)}
	}

	metrics.IncReservationCreated("series")
	_ = a.bus.PublishJSON(events.ReservationCreated, r)
	return r.ID, nil
}

// CreatePlaceholderForDate records a skipped occurrence. No conflict
// check is performed.
func (a *Adapter) CreatePlaceholderForDate(ctx context.Context, s *model.RecurringSeries, date time.Time, reason string) error {
	rng, err := series.OccurrenceRange(s, date, a.loc)
	if err != nil {
		return err
	}

	occurrence := clock.Midnight(date)
	r := &model.Reservation{
		RoomID:         s.RoomID,
		BandID:         s.BandID,
		StartTime:      rng.Start,
		EndTime:        rng.End,
		Status:         model.StatusSkipped,
		Comment:        reason,
		SeriesID:       &s.ID,
		OccurrenceDate: &occurrence,
	}
	if err := a.store.CreateReservation(ctx, r); err != nil {
		return err
	}
	_ = a.bus.PublishJSON(events.ReservationSkipped, r)
	return nil
}

// ExistsForDate reports whether any instance row, placeholder
// included, exists for the (series, date) pair.
func (a *Adapter) ExistsForDate(ctx context.Context, s *model.RecurringSeries, date time.Time) (bool, error) {
	return a.store.InstanceExists(ctx, s.ID, date)
}

// CancelFutureInstances cancels materialized instances starting now or
// later. Past instances are untouched.
func (a *Adapter) CancelFutureInstances(ctx context.Context, s *model.RecurringSeries, reason string) (int64, error) {
	return a.store.CancelFutureInstances(ctx, s.ID, a.clk.Now(), reason)
}
