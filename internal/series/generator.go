package series

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"bandroom/internal/conflict"
	"bandroom/internal/events"
	"bandroom/internal/locks"
	"bandroom/internal/metrics"
	"bandroom/internal/model"
)

// GeneratorStore is the persistence surface a generation pass needs
// beyond the Recurrable adapter.
type GeneratorStore interface {
	GetSeries(ctx context.Context, id int64) (*model.RecurringSeries, error)
	AdvanceGeneratedThrough(ctx context.Context, id int64, from *time.Time, to time.Time) (bool, error)
}

// Result counts the outcome of one generation pass.
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Generator expands an active series' rule into concrete instances up
// to a horizon date. Passes are idempotent: dates already considered
// are never revisited, and an existing instance row for a date is a
// no-op.
type Generator struct {
	store    GeneratorStore
	registry *Service
	locker   locks.Locker
	loc      *time.Location
	bus      *events.Bus
	logger   *zerolog.Logger
}

// NewGenerator creates a generator. The lifecycle service doubles as
// the adapter registry; locker serializes passes per series.
func NewGenerator(store GeneratorStore, registry *Service, locker locks.Locker, loc *time.Location, bus *events.Bus, logger *zerolog.Logger) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{
		store:    store,
		registry: registry,
		locker:   locker,
		loc:      loc,
		bus:      bus,
		logger:   logger,
	}
}

// generatedEvent is the payload published after a pass.
type generatedEvent struct {
	SeriesID int64     `json:"series_id"`
	Horizon  time.Time `json:"horizon"`
	Created  int       `json:"created"`
	Skipped  int       `json:"skipped"`
}

// Generate materializes instances of the series through the horizon
// date (inclusive). A pass on a paused or cancelled series is a no-op
// returning zero counts. A conflicting date is recorded as a skipped
// placeholder and the pass continues; any other adapter failure aborts
// the batch with the generation marker advanced only through the last
// date that completed, so a retry resumes cleanly.
func (g *Generator) Generate(ctx context.Context, seriesID int64, horizon time.Time) (Result, error) {
	release, err := g.locker.Acquire(ctx, fmt.Sprintf("generate:series:%d", seriesID))
	if err != nil {
		return Result{}, fmt.Errorf("lock series %d: %w", seriesID, err)
	}
	defer func() {
		if err := release(); err != nil {
			g.logger.Warn().Err(err).Int64("series_id", seriesID).Msg("release generation lock")
		}
	}()

	s, err := g.store.GetSeries(ctx, seriesID)
	if err != nil {
		return Result{}, fmt.Errorf("load series %d: %w", seriesID, err)
	}
	if s.Status != model.SeriesActive {
		return Result{}, nil
	}

	adapter, err := g.registry.Adapter(s.RecurableType)
	if err != nil {
		return Result{}, err
	}

	windowStart := dateOnly(s.StartDate)
	observed := s.LastGeneratedThrough
	if observed != nil {
		next := dateOnly(*observed).AddDate(0, 0, 1)
		if next.After(windowStart) {
			windowStart = next
		}
	}
	windowEnd := dateOnly(horizon)
	if s.EndDate != nil && dateOnly(*s.EndDate).Before(windowEnd) {
		windowEnd = dateOnly(*s.EndDate)
	}
	if windowEnd.Before(windowStart) {
		return Result{}, nil
	}

	dates, err := OccurrenceDates(s, windowStart, windowEnd)
	if err != nil {
		return Result{}, err
	}

	var res Result
	var lastDone *time.Time
	for _, date := range dates {
		date := date
		exists, err := adapter.ExistsForDate(ctx, s, date)
		if err != nil {
			return res, g.abort(ctx, s, observed, lastDone, fmt.Errorf("existence check for %s: %w", date.Format("2006-01-02"), err))
		}
		if exists {
			lastDone = &date
			continue
		}

		_, err = adapter.CreateForDate(ctx, s, date)
		switch {
		case err == nil:
			res.Created++
			metrics.IncInstanceGenerated("created")
		case errors.Is(err, conflict.ErrConflict):
			if phErr := adapter.CreatePlaceholderForDate(ctx, s, date, err.Error()); phErr != nil {
				return res, g.abort(ctx, s, observed, lastDone, fmt.Errorf("record placeholder for %s: %w", date.Format("2006-01-02"), phErr))
			}
			res.Skipped++
			metrics.IncInstanceGenerated("skipped")
			g.logger.Info().
				Int64("series_id", s.ID).
				Str("date", date.Format("2006-01-02")).
				Msg("occurrence skipped due to conflict")
		default:
			return res, g.abort(ctx, s, observed, lastDone, fmt.Errorf("materialize %s: %w", date.Format("2006-01-02"), err))
		}
		lastDone = &date
	}

	if ok, err := g.store.AdvanceGeneratedThrough(ctx, s.ID, observed, windowEnd); err != nil {
		return res, fmt.Errorf("advance generation marker for series %d: %w", s.ID, err)
	} else if !ok {
		// Another pass moved the marker; instances are deduplicated by
		// the existence guard, so only log it.
		g.logger.Warn().Int64("series_id", s.ID).Msg("generation marker moved concurrently")
	}

	metrics.IncGenerationRun("ok")
	_ = g.bus.PublishJSON(events.SeriesGenerated, generatedEvent{
		SeriesID: s.ID, Horizon: windowEnd, Created: res.Created, Skipped: res.Skipped,
	})
	g.logger.Info().
		Int64("series_id", s.ID).
		Time("horizon", windowEnd).
		Int("created", res.Created).
		Int("skipped", res.Skipped).
		Msg("generation pass complete")
	return res, nil
}

// abort preserves partial progress before surfacing the batch error:
// the marker advances through the last completed date so the failed
// date and everything after it are retried next pass.
func (g *Generator) abort(ctx context.Context, s *model.RecurringSeries, observed, lastDone *time.Time, cause error) error {
	metrics.IncGenerationRun("aborted")
	if lastDone != nil {
		if _, err := g.store.AdvanceGeneratedThrough(ctx, s.ID, observed, *lastDone); err != nil {
			g.logger.Error().Err(err).Int64("series_id", s.ID).Msg("preserve partial generation progress")
		}
	}
	return fmt.Errorf("series %d: %w", s.ID, cause)
}
