package retry

import "context"

type (
	// Task is a function to retry. It reports whether a retry should occur
	// on the returned error; permanent failures return (false, err).
	Task = func(ctx context.Context) (shouldRetry bool, err error)

	// Policy executes a task under a retry strategy.
	Policy interface {
		Start(ctx context.Context, name string, task Task) error
	}
)
