// Package scheduler fires purge ticks on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// parser accepts the standard five fields with an optional leading seconds
// field, plus descriptors such as @hourly or @every 10m.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse validates a cron expression.
func Parse(expr string) (cron.Schedule, error) {
	s, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return s, nil
}

// TickFunc runs one tick at now.
type TickFunc func(ctx context.Context, now time.Time) error

// Config controls the loop.
type Config struct {
	// RunOnStart fires one tick immediately before waiting for the first instant.
	RunOnStart bool
	// Clock defaults to time.Now in UTC.
	Clock func() time.Time
}

// Scheduler waits for the next instant of a schedule and runs a tick.
type Scheduler struct {
	schedule cron.Schedule
	tick     TickFunc
	cfg      Config
	log      zerolog.Logger
}

// New constructs a Scheduler.
func New(schedule cron.Schedule, tick TickFunc, cfg Config, log zerolog.Logger) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{schedule: schedule, tick: tick, cfg: cfg, log: log}
}

// Run loops until ctx is canceled. Cancellation is only observed while
// waiting; a tick in progress runs to completion. Instants missed while a
// tick was running are skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Bool("run_on_start", s.cfg.RunOnStart).Msg("scheduler starting")

	if s.cfg.RunOnStart {
		s.runTick(ctx)
	}

	for {
		now := s.cfg.Clock()
		next := s.schedule.Next(now)
		if next.IsZero() {
			s.log.Warn().Msg("schedule has no future instants, scheduler stopping")
			return nil
		}
		s.log.Debug().Time("next", next).Msg("waiting for next tick")

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info().Msg("scheduler stopping")
			return ctx.Err()
		case <-timer.C:
		}
		s.runTick(ctx)
	}
}

func (s *Scheduler) runTick(ctx context.Context) {
	now := s.cfg.Clock()
	start := time.Now()
	if err := s.tick(context.WithoutCancel(ctx), now); err != nil {
		s.log.Error().Err(err).Msg("tick failed")
		return
	}
	s.log.Info().Dur("elapsed", time.Since(start)).Msg("tick complete")
}
