package publish

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ecosur-lab/datasync/internal/control"
	"github.com/ecosur-lab/datasync/internal/store"
)

func newRunnerFixture(t *testing.T, state control.State) (*Runner, *fakeSender, *control.Store) {
	t.Helper()
	ctrl := control.NewStore(filepath.Join(t.TempDir(), "control.json"), testLogger())
	require.NoError(t, ctrl.Init())
	require.NoError(t, ctrl.SetState(control.ServicePublisher, state))

	src := &fakeSource{byHour: map[time.Time][]store.Sample{
		hourAt(10): {sampleAt(10, 0, map[string]float64{"Temperature": 20.0})},
	}}
	snd := &fakeSender{}
	cycle := NewCycle("publisher", src, ctrl, snd, WeatherFields, nil, testLogger())
	cycle.now = func() time.Time { return time.Date(2023, 6, 14, 11, 30, 0, 0, time.Local) }

	r := NewRunner(control.ServicePublisher, cycle, ctrl, 3, time.Millisecond, testLogger())
	r.now = cycle.now
	return r, snd, ctrl
}

func TestRunner_FirstCycleRunsImmediately(t *testing.T) {
	r, snd, ctrl := newRunnerFixture(t, control.StateRunning)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, r.Run(ctx))
	}()

	require.Eventually(t, func() bool { return len(snd.sent) == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	got, ok := ctrl.Checkpoint("publisher")
	require.True(t, ok)
	require.True(t, got.Equal(hourAt(10)))
}

func TestRunner_StoppedStateEndsLoop(t *testing.T) {
	r, snd, _ := newRunnerFixture(t, control.StateStopped)

	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, r.Run(context.Background()))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop on STOPPED control state")
	}
	require.Empty(t, snd.sent)
}

func TestRunner_PausedSuspendsWithoutResettingCheckpoint(t *testing.T) {
	r, snd, ctrl := newRunnerFixture(t, control.StatePaused)
	require.NoError(t, ctrl.WriteCheckpoint("publisher", hourAt(9)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, r.Run(ctx))
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	<-done

	require.Empty(t, snd.sent)
	got, ok := ctrl.Checkpoint("publisher")
	require.True(t, ok)
	require.True(t, got.Equal(hourAt(9)))
}

func TestRunner_Due(t *testing.T) {
	r := NewRunner(control.ServicePublisher, nil, nil, 3, time.Second, testLogger())

	at := func(h, m int) time.Time {
		return time.Date(2023, 6, 14, h, m, 0, 0, time.Local)
	}

	// Before the offset minute: not due.
	require.False(t, r.due(at(11, 2), at(10, 30)))
	// At the offset minute in a fresh hour: due.
	require.True(t, r.due(at(11, 3), at(10, 30)))
	// Already ran this hour: not due again.
	require.False(t, r.due(at(11, 45), at(11, 3)))
	// Never ran: due once past the offset.
	require.True(t, r.due(at(11, 10), time.Time{}))
}
