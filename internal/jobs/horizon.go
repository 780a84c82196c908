// Package jobs runs the periodic horizon-extension pass: every active
// series is generated forward to today plus the configured window.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"bandroom/internal/clock"
	"bandroom/internal/model"
	"bandroom/internal/series"
)

// SeriesLister enumerates series eligible for generation.
type SeriesLister interface {
	ListSeriesByStatus(ctx context.Context, status string) ([]model.RecurringSeries, error)
}

// HorizonConfig controls the job.
type HorizonConfig struct {
	// Cron is the schedule, e.g. "0 3 * * *".
	Cron string
	// HorizonDays is how far ahead instances are materialized.
	HorizonDays int
	// SeriesPerSecond paces generation across many series so one pass
	// does not monopolize the store.
	SeriesPerSecond float64
}

// HorizonJob extends all active series on a cron schedule.
type HorizonJob struct {
	cfg       HorizonConfig
	store     SeriesLister
	generator *series.Generator
	limiter   *rate.Limiter
	clk       clock.Clock
	loc       *time.Location
	logger    *zerolog.Logger
	cron      *cron.Cron
}

// NewHorizonJob creates the job. It is not started until Start.
func NewHorizonJob(cfg HorizonConfig, store SeriesLister, generator *series.Generator, clk clock.Clock, loc *time.Location, logger *zerolog.Logger) *HorizonJob {
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 90
	}
	if cfg.SeriesPerSecond <= 0 {
		cfg.SeriesPerSecond = 5
	}
	if loc == nil {
		loc = time.UTC
	}
	return &HorizonJob{
		cfg:       cfg,
		store:     store,
		generator: generator,
		limiter:   rate.NewLimiter(rate.Limit(cfg.SeriesPerSecond), 1),
		clk:       clk,
		loc:       loc,
		logger:    logger,
	}
}

// Start registers the cron entry and begins scheduling. Stop with Stop.
func (j *HorizonJob) Start(ctx context.Context) error {
	j.cron = cron.New(cron.WithLocation(j.loc))
	_, err := j.cron.AddFunc(j.cfg.Cron, func() {
		if err := j.RunOnce(ctx); err != nil {
			j.logger.Error().Err(err).Msg("horizon pass failed")
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	j.logger.Info().Str("cron", j.cfg.Cron).Int("horizon_days", j.cfg.HorizonDays).Msg("horizon job started")
	return nil
}

// Stop halts scheduling and waits for a running pass to finish.
func (j *HorizonJob) Stop() {
	if j.cron != nil {
		<-j.cron.Stop().Done()
	}
}

// RunOnce generates every active series through the horizon. A failure
// on one series does not stop the pass for the others.
func (j *HorizonJob) RunOnce(ctx context.Context) error {
	active, err := j.store.ListSeriesByStatus(ctx, model.SeriesActive)
	if err != nil {
		return err
	}

	horizon := j.clk.Today(j.loc).AddDate(0, 0, j.cfg.HorizonDays)
	var created, skipped, failed int
	for _, s := range active {
		if err := j.limiter.Wait(ctx); err != nil {
			return err
		}
		res, err := j.generator.Generate(ctx, s.ID, horizon)
		if err != nil {
			failed++
			j.logger.Error().Err(err).Int64("series_id", s.ID).Msg("series generation failed")
			continue
		}
		created += res.Created
		skipped += res.Skipped
	}

	j.logger.Info().
		Int("series", len(active)).
		Int("created", created).
		Int("skipped", skipped).
		Int("failed", failed).
		Time("horizon", horizon).
		Msg("horizon pass complete")
	return nil
}
