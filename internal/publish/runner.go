package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/ecosur-lab/datasync/internal/control"
	"github.com/ecosur-lab/datasync/internal/core/timeutil"
)

// Runner schedules one channel's publish cycle: once immediately at startup,
// then once per hour at a fixed minute offset past the hour. Channels use
// different offsets so they never contend on the same data file at the same
// instant. The control document gates every run: PAUSED suspends scheduling
// without resetting anything, STOPPED ends the runner after any in-flight
// cycle finishes.
type Runner struct {
	service       string
	cycle         *Cycle
	ctrl          *control.Store
	offsetMinute  int
	checkInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewRunner creates a runner gated on the named control subsystem.
func NewRunner(
	service string,
	cycle *Cycle,
	ctrl *control.Store,
	offsetMinute int,
	checkInterval time.Duration,
	logger *slog.Logger,
) *Runner {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Second
	}
	return &Runner{
		service:       service,
		cycle:         cycle,
		ctrl:          ctrl,
		offsetMinute:  offsetMinute,
		checkInterval: checkInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// Run drives the schedule until the control state reads STOPPED or the
// context ends. Errors from a cycle are logged; the next slot retries from
// the checkpoint, so nothing is lost.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("[Publisher] Runner starting",
		"service", r.service, "offset_minute", r.offsetMinute, "check_interval", r.checkInterval)

	first := true
	var lastRun time.Time

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("[Publisher] Runner stopping (context cancelled)", "service", r.service)
			return nil
		default:
		}

		switch r.ctrl.ReadState(r.service) {
		case control.StateStopped:
			r.logger.Info("[Publisher] Runner stopping (control document)", "service", r.service)
			return nil
		case control.StateRunning:
			now := r.now()
			if first || r.due(now, lastRun) {
				if err := r.cycle.Execute(ctx); err != nil {
					r.logger.Error("[Publisher] Cycle failed, will retry next slot",
						"service", r.service, "error", err)
				}
				first = false
				lastRun = now
			}
		case control.StatePaused:
			// Scheduling suspended; checkpoints and state stay put.
		}

		if !sleepCtx(ctx, r.checkInterval) {
			return nil
		}
	}
}

// due reports whether the hourly slot has arrived: at or past the offset
// minute, at most once per hour.
func (r *Runner) due(now, lastRun time.Time) bool {
	if now.Minute() < r.offsetMinute {
		return false
	}
	return lastRun.IsZero() || !timeutil.HourStart(lastRun).Equal(timeutil.HourStart(now))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
