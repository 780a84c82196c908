package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bandroom/internal/clock"
	"bandroom/internal/conflict"
	"bandroom/internal/events"
	"bandroom/internal/interval"
	"bandroom/internal/metrics"
	"bandroom/internal/model"
)

// Rules bound how far ahead and how late bookings may be placed.
type Rules struct {
	MinAdvance time.Duration
	MaxAdvance time.Duration
}

// Store is the persistence surface of the booking service.
type Store interface {
	AdapterStore
	GetReservation(ctx context.Context, id int64) (*model.Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, status string) error
}

// Service creates and cancels ad-hoc (non-series) reservations.
type Service struct {
	store  Store
	rules  Rules
	clk    clock.Clock
	bus    *events.Bus
	logger *zerolog.Logger
}

// NewService creates the ad-hoc reservation service.
func NewService(store Store, rules Rules, clk clock.Clock, bus *events.Bus, logger *zerolog.Logger) *Service {
	return &Service{store: store, rules: rules, clk: clk, bus: bus, logger: logger}
}

// ValidateWindow checks a requested window against booking rules.
func (s *Service) ValidateWindow(rng interval.Range) error {
	now := s.clk.Now()
	if s.rules.MinAdvance > 0 && rng.Start.Before(now.Add(s.rules.MinAdvance)) {
		return fmt.Errorf("reservations require %s advance notice", s.rules.MinAdvance)
	}
	if s.rules.MaxAdvance > 0 && rng.Start.After(now.Add(s.rules.MaxAdvance)) {
		return fmt.Errorf("reservations cannot be placed more than %s ahead", s.rules.MaxAdvance)
	}
	return nil
}

// Create books a single reservation. The conflict check and insert run
// in one store transaction; an occupied window surfaces ErrConflict to
// the caller with the blocking records attached.
func (s *Service) Create(ctx context.Context, r *model.Reservation) error {
	rng, err := interval.New(r.StartTime, r.EndTime)
	if err != nil {
		return err
	}
	if err := s.ValidateWindow(rng); err != nil {
		return err
	}
	if r.Status == "" {
		r.Status = model.StatusPending
	}
	if r.SeriesID != nil {
		return errors.New("ad-hoc reservations cannot reference a series")
	}

	overlaps, err := s.store.CreateReservationIfFree(ctx, r)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	if !overlaps.Empty() {
		res := conflict.FromOverlaps(overlaps)
		for _, c := range res.All() {
			metrics.IncConflictDetected(c.Kind)
		}
		return &conflict.Error{Result: res}
	}

	metrics.IncReservationCreated("adhoc")
	_ = s.bus.PublishJSON(events.ReservationCreated, r)
	s.logger.Info().
		Int64("reservation_id", r.ID).
		Int64("room_id", r.RoomID).
		Time("start", r.StartTime).
		Msg("reservation created")
	return nil
}

// Cancel frees the reservation's slot. Cancelling an already canceled
// reservation is a no-op; skipped placeholders are not cancellable.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return fmt.Errorf("load reservation %d: %w", id, err)
	}
	if r.Status == model.StatusCanceled {
		return nil
	}
	if !r.Blocking() {
		return fmt.Errorf("reservation %d in status %s cannot be canceled", id, r.Status)
	}
	if err := s.store.UpdateReservationStatus(ctx, id, model.StatusCanceled); err != nil {
		return fmt.Errorf("cancel reservation %d: %w", id, err)
	}

	r.Status = model.StatusCanceled
	_ = s.bus.PublishJSON(events.ReservationCanceled, r)
	s.logger.Info().Int64("reservation_id", id).Msg("reservation canceled")
	return nil
}
