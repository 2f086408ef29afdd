package retry

import (
	"context"
	"log/slog"
	"time"
)

// Constant retries a task a fixed number of times with a fixed interval.
// Disk appends use this policy: 3 attempts, 2s apart.
type Constant struct {
	// Attempts is the total number of attempts. 0 defaults to 1.
	Attempts uint64

	// Interval is the fixed wait between attempts.
	Interval time.Duration

	// Logger receives attempt-level logging. Nil discards.
	Logger *slog.Logger
}

// Start runs the task until it succeeds, declines retry, or exhausts attempts.
func (c *Constant) Start(ctx context.Context, name string, task Task) error {
	attempts := c.Attempts
	if attempts == 0 {
		attempts = 1
	}

	log := c.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var err error
	for attempt := uint64(1); attempt <= attempts; attempt++ {
		var retryable bool
		retryable, err = task(ctx)
		if err == nil {
			return nil
		}
		if !retryable || attempt == attempts || ctx.Err() != nil {
			break
		}

		log.Debug("[Retry] Attempt failed, waiting",
			"task", name,
			"attempt", attempt,
			"interval", c.Interval,
			"error", err,
		)

		select {
		case <-time.After(c.Interval):
		case <-ctx.Done():
			return err
		}
	}

	log.Warn("[Retry] Giving up", "task", name, "error", err)
	return err
}
