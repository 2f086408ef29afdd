package sensors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSimulated_EmitsConfiguredKeys(t *testing.T) {
	s := NewSimulated("davis", []string{"Temperature", "Humidity"})
	require.Equal(t, "davis", s.Name())

	reading, err := s.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, reading, 2)
	require.Contains(t, reading, "Temperature")
	require.Contains(t, reading, "Humidity")
}

func TestSimulated_WalksFromBaseline(t *testing.T) {
	s := NewSimulated("davis", []string{"Temperature"})
	for i := 0; i < 50; i++ {
		reading, err := s.Poll(context.Background())
		require.NoError(t, err)
		// A ±0.2 step per poll stays well within a few degrees of the 22.0
		// baseline over 50 steps.
		require.InDelta(t, 22.0, reading["Temperature"], 15.0)
	}
}

func TestSimulated_NeverNegative(t *testing.T) {
	s := NewSimulated("davis", []string{"RainRate"})
	for i := 0; i < 100; i++ {
		reading, err := s.Poll(context.Background())
		require.NoError(t, err)
		require.GreaterOrEqual(t, reading["RainRate"], 0.0)
	}
}
