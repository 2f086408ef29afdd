package retry

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff retries a task with exponentially growing intervals and
// a small jitter. Transient network sends use this policy.
type ExponentialBackoff struct {
	// MaxAttempts caps the number of attempts. 0 means unlimited; 1 disables
	// retries.
	MaxAttempts uint64

	// MinInterval is the interval before the first retry. Defaults to 1s.
	MinInterval time.Duration

	// MaxInterval bounds the interval between retries (before jitter).
	// Defaults to 30s.
	MaxInterval time.Duration

	// Timeout bounds the total time spent across all attempts.
	Timeout time.Duration

	// NoJitter disables the default ±5% jitter.
	NoJitter bool

	// Logger receives attempt-level logging. Nil discards.
	Logger *slog.Logger
}

// Start runs the task until it succeeds, declines retry, exhausts attempts,
// or the context ends.
func (e *ExponentialBackoff) Start(ctx context.Context, name string, task Task) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	log := e.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	for attempt := uint64(1); ; attempt++ {
		retryable, err := task(ctx)
		if err == nil {
			return nil
		}

		interval := e.nextInterval(ctx, attempt, retryable)
		if interval == 0 {
			log.Warn("[Retry] Giving up", "task", name, "attempt", attempt, "error", err)
			return err
		}

		log.Debug("[Retry] Attempt failed, backing off",
			"task", name,
			"attempt", attempt,
			"interval", interval,
			"error", err,
		)

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return err
		}
	}
}

// nextInterval returns the wait before the next attempt, or 0 to stop.
func (e *ExponentialBackoff) nextInterval(ctx context.Context, attempt uint64, retryable bool) time.Duration {
	switch {
	case !retryable,
		attempt == e.MaxAttempts,
		ctx.Err() != nil:
		return 0
	}

	minInterval := e.MinInterval
	if minInterval == 0 {
		minInterval = time.Second
	}
	maxInterval := e.MaxInterval
	if maxInterval == 0 {
		maxInterval = 30 * time.Second
	}
	if maxInterval < minInterval {
		maxInterval = minInterval
	}

	// Exponent clamped so the interval never exceeds maxInterval.
	factor := math.Pow(2, math.Min(
		float64(attempt-1),
		math.Log2(float64(maxInterval)/float64(minInterval)),
	))
	if !e.NoJitter {
		factor *= 0.95 + 0.1*rand.Float64() // #nosec G404
	}

	return time.Duration(factor * float64(minInterval))
}
