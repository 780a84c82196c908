package series

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bandroom/internal/clock"
	"bandroom/internal/events"
	"bandroom/internal/metrics"
	"bandroom/internal/model"
)

// ErrInvalidTransition is returned for an illegal series status change.
var ErrInvalidTransition = errors.New("invalid series status transition")

// ErrNoAdapter is returned when a series references a recurable type
// nothing has been registered for.
var ErrNoAdapter = errors.New("no adapter registered for recurable type")

// transitions lists the allowed series status changes. Cancelled is
// terminal.
var transitions = map[string][]string{
	model.SeriesActive:    {model.SeriesPaused, model.SeriesCancelled},
	model.SeriesPaused:    {model.SeriesActive, model.SeriesCancelled},
	model.SeriesCancelled: {},
}

// CanTransition checks whether a status change is allowed.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Store is the persistence surface the lifecycle service needs.
type Store interface {
	CreateSeries(ctx context.Context, s *model.RecurringSeries) error
	GetSeries(ctx context.Context, id int64) (*model.RecurringSeries, error)
	UpdateSeriesStatus(ctx context.Context, id int64, status string) error
	UpdateSeriesEndDate(ctx context.Context, id int64, endDate time.Time) error
}

// Service owns series state transitions. Authorization of transitions
// is the caller's concern; the service exposes the primitives.
type Service struct {
	store    Store
	adapters map[string]Recurrable
	bus      *events.Bus
	clk      clock.Clock
	logger   *zerolog.Logger
}

// NewService creates a lifecycle service.
func NewService(store Store, bus *events.Bus, clk clock.Clock, logger *zerolog.Logger) *Service {
	return &Service{
		store:    store,
		adapters: make(map[string]Recurrable),
		bus:      bus,
		clk:      clk,
		logger:   logger,
	}
}

// RegisterAdapter binds a Recurrable implementation to a recurable type.
func (s *Service) RegisterAdapter(recurableType string, adapter Recurrable) {
	s.adapters[recurableType] = adapter
}

// Adapter resolves the Recurrable for a series.
func (s *Service) Adapter(recurableType string) (Recurrable, error) {
	adapter, ok := s.adapters[recurableType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, recurableType)
	}
	return adapter, nil
}

// seriesEvent is the payload published for lifecycle notices.
type seriesEvent struct {
	SeriesID     int64      `json:"series_id"`
	RoomID       int64      `json:"room_id"`
	BandID       int64      `json:"band_id"`
	Status       string     `json:"status"`
	PriorEndDate *time.Time `json:"prior_end_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	Cancelled    int64      `json:"cancelled_instances,omitempty"`
}

// Create validates and persists a new series in active status.
func (s *Service) Create(ctx context.Context, series *model.RecurringSeries) error {
	if err := ValidateRule(series.Rule); err != nil {
		return err
	}
	if _, _, err := parseClock(series.StartClock); err != nil {
		return err
	}
	if series.DurationMinutes <= 0 {
		return errors.New("duration must be positive")
	}
	if series.EndDate != nil && series.EndDate.Before(series.StartDate) {
		return errors.New("end date must not precede start date")
	}
	if series.RecurableType == "" {
		series.RecurableType = "rehearsal_reservation"
	}
	if _, err := s.Adapter(series.RecurableType); err != nil {
		return err
	}

	series.Status = model.SeriesActive
	if err := s.store.CreateSeries(ctx, series); err != nil {
		return fmt.Errorf("create series: %w", err)
	}

	metrics.IncSeriesTransition(model.SeriesActive)
	_ = s.bus.PublishJSON(events.SeriesCreated, seriesEvent{
		SeriesID: series.ID, RoomID: series.RoomID, BandID: series.BandID,
		Status: series.Status, EndDate: series.EndDate,
	})
	s.logger.Info().Int64("series_id", series.ID).Msg("series created")
	return nil
}

// Pause suspends generation for the series. Existing instances stay.
func (s *Service) Pause(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.SeriesPaused, events.SeriesPaused)
}

// Resume re-enables generation for a paused series.
func (s *Service) Resume(ctx context.Context, id int64) error {
	return s.transition(ctx, id, model.SeriesActive, events.SeriesResumed)
}

func (s *Service) transition(ctx context.Context, id int64, to, eventType string) error {
	series, err := s.store.GetSeries(ctx, id)
	if err != nil {
		return fmt.Errorf("load series %d: %w", id, err)
	}
	if !CanTransition(series.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, series.Status, to)
	}
	if err := s.store.UpdateSeriesStatus(ctx, id, to); err != nil {
		return fmt.Errorf("update series %d status: %w", id, err)
	}

	metrics.IncSeriesTransition(to)
	_ = s.bus.PublishJSON(eventType, seriesEvent{
		SeriesID: id, RoomID: series.RoomID, BandID: series.BandID, Status: to,
	})
	s.logger.Info().Int64("series_id", id).Str("status", to).Msg("series transitioned")
	return nil
}

// Cancel marks the series cancelled (terminal). Cancelling an already
// cancelled series is a no-op. With cascade set, future materialized
// instances are cancelled too; the count is returned. Past instances
// are never touched.
func (s *Service) Cancel(ctx context.Context, id int64, cascade bool, reason string) (int64, error) {
	series, err := s.store.GetSeries(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load series %d: %w", id, err)
	}
	if series.Status == model.SeriesCancelled {
		return 0, nil
	}
	if !CanTransition(series.Status, model.SeriesCancelled) {
		return 0, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, series.Status, model.SeriesCancelled)
	}
	if err := s.store.UpdateSeriesStatus(ctx, id, model.SeriesCancelled); err != nil {
		return 0, fmt.Errorf("update series %d status: %w", id, err)
	}

	var cancelled int64
	if cascade {
		adapter, err := s.Adapter(series.RecurableType)
		if err != nil {
			return 0, err
		}
		cancelled, err = adapter.CancelFutureInstances(ctx, series, reason)
		if err != nil {
			return 0, fmt.Errorf("cancel future instances of series %d: %w", id, err)
		}
	}

	metrics.IncSeriesTransition(model.SeriesCancelled)
	_ = s.bus.PublishJSON(events.SeriesCancelled, seriesEvent{
		SeriesID: id, RoomID: series.RoomID, BandID: series.BandID,
		Status: model.SeriesCancelled, Cancelled: cancelled,
	})
	s.logger.Info().Int64("series_id", id).Int64("cancelled", cancelled).Msg("series cancelled")
	return cancelled, nil
}

// Extend pushes the series end date forward and returns the prior end
// date for auditing. Valid while the series is not cancelled. Extending
// does not generate; callers chain Generate explicitly.
func (s *Service) Extend(ctx context.Context, id int64, newEnd time.Time) (*time.Time, error) {
	series, err := s.store.GetSeries(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load series %d: %w", id, err)
	}
	if series.Status == model.SeriesCancelled {
		return nil, fmt.Errorf("%w: extend on cancelled series", ErrInvalidTransition)
	}
	if newEnd.Before(series.StartDate) {
		return nil, errors.New("new end date precedes series start")
	}
	if series.EndDate != nil && !newEnd.After(*series.EndDate) {
		return nil, errors.New("new end date must push the series forward")
	}
	if err := s.store.UpdateSeriesEndDate(ctx, id, newEnd); err != nil {
		return nil, fmt.Errorf("update series %d end date: %w", id, err)
	}

	prior := series.EndDate
	_ = s.bus.PublishJSON(events.SeriesExtended, seriesEvent{
		SeriesID: id, RoomID: series.RoomID, BandID: series.BandID,
		Status: series.Status, PriorEndDate: prior, EndDate: &newEnd,
	})
	s.logger.Info().Int64("series_id", id).Time("end_date", newEnd).Msg("series extended")
	return prior, nil
}
