package scheduler

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is how often the in-process runner invokes Tick when
// no external trigger is configured.
const DefaultTickInterval = time.Minute

// Runner drives the scheduler from an in-process timer for deployments
// without an external cron. The scheduler itself stays trigger-agnostic:
// Tick tolerates being invoked more or less often than the interval, and
// concurrently with HTTP-triggered invocations.
type Runner struct {
	scheduler *Scheduler
	clock     clockwork.Clock
	interval  time.Duration
}

// NewRunner creates a runner that ticks at the given interval.
func NewRunner(scheduler *Scheduler, clock clockwork.Clock, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Runner{
		scheduler: scheduler,
		clock:     clock,
		interval:  interval,
	}
}

// Run loops until the context is cancelled. Tick failures are logged and
// retried on the next interval, never propagated.
func (r *Runner) Run(ctx context.Context) error {
	log.Info().
		Dur("interval", r.interval).
		Str("instance", r.scheduler.instanceID).
		Msg("scheduler runner started")

	timer := r.clock.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", r.scheduler.instanceID).Msg("scheduler runner shutting down")
			return nil
		case <-timer.Chan():
		}

		result, err := r.scheduler.Tick(ctx)
		switch {
		case err != nil:
			log.Error().Err(err).Msg("scheduled tick failed; retrying next interval")
		case !result.NoOp:
			log.Info().Str("message", result.Message).Msg("scheduled tick applied changes")
		}

		timer.Reset(r.interval)
	}
}
