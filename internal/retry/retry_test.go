package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecosur-lab/datasync/internal/retry"
)

var errTransient = errors.New("transient failure")

func TestExponentialBackoff_SuccessFirstTry(t *testing.T) {
	calls := 0
	p := retry.ExponentialBackoff{MaxAttempts: 3, MinInterval: time.Millisecond}
	err := p.Start(context.Background(), "first-try", func(context.Context) (bool, error) {
		calls++
		return false, nil
	})

	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestExponentialBackoff_MaxAttempts(t *testing.T) {
	calls := 0
	p := retry.ExponentialBackoff{MaxAttempts: 3, MinInterval: time.Millisecond, NoJitter: true}
	err := p.Start(context.Background(), "always-fails", func(context.Context) (bool, error) {
		calls++
		return true, errTransient
	})

	require.ErrorIs(t, err, errTransient)
	require.Equal(t, 3, calls)
}

func TestExponentialBackoff_RetryUntilSuccess(t *testing.T) {
	calls := 0
	p := retry.ExponentialBackoff{MinInterval: time.Millisecond, NoJitter: true}
	err := p.Start(context.Background(), "third-time", func(context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return true, errTransient
		}
		return false, nil
	})

	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestExponentialBackoff_PermanentErrorStops(t *testing.T) {
	errPermanent := errors.New("bad request")
	calls := 0
	p := retry.ExponentialBackoff{MaxAttempts: 5, MinInterval: time.Millisecond}
	err := p.Start(context.Background(), "permanent", func(context.Context) (bool, error) {
		calls++
		return false, errPermanent
	})

	require.ErrorIs(t, err, errPermanent)
	require.Equal(t, 1, calls)
}

func TestExponentialBackoff_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := retry.ExponentialBackoff{MinInterval: 50 * time.Millisecond}
	err := p.Start(ctx, "cancelled", func(context.Context) (bool, error) {
		calls++
		cancel()
		return true, errTransient
	})

	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestConstant_FixedAttempts(t *testing.T) {
	calls := 0
	p := retry.Constant{Attempts: 3, Interval: time.Millisecond}
	err := p.Start(context.Background(), "disk-busy", func(context.Context) (bool, error) {
		calls++
		return true, errTransient
	})

	require.ErrorIs(t, err, errTransient)
	require.Equal(t, 3, calls)
}

func TestConstant_RecoversMidway(t *testing.T) {
	calls := 0
	p := retry.Constant{Attempts: 3, Interval: time.Millisecond}
	err := p.Start(context.Background(), "recovers", func(context.Context) (bool, error) {
		calls++
		if calls == 1 {
			return true, errTransient
		}
		return false, nil
	})

	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
