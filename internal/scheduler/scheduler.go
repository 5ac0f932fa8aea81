package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// TickFunc is invoked on every interval.
type TickFunc func(ctx context.Context, tickAt time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	// RunImmediately fires one tick right away before settling into the
	// interval, so a fresh process evaluates alerts without waiting out
	// the first period.
	RunImmediately bool
	StartupDelay   time.Duration
}

// Scheduler drives periodic execution of polling jobs.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking the tick function at each interval until ctx is
// cancelled. Ticks never overlap: the next wait starts only after the
// previous tick returns, and a tick error is logged, not fatal.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.opts.RunImmediately {
		now := time.Now().UTC()
		if err := tick(ctx, now); err != nil {
			s.logger.Error().Err(err).Time("tick_at", now).Msg("tick execution failed")
		}
	}

	next := s.nextTick(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextTick(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_tick", next).Msg("waiting for next tick")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		tickAt := s.tickStart(next)
		s.logger.Debug().Time("tick_at", tickAt).Msg("executing scheduled tick")

		if err := tick(ctx, tickAt); err != nil {
			s.logger.Error().Err(err).Time("tick_at", tickAt).Msg("tick execution failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	tick := now.Truncate(s.opts.Interval)
	if !tick.After(now) {
		tick = tick.Add(s.opts.Interval)
	}
	return tick
}

func (s *Scheduler) tickStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
