package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecosur-lab/datasync/internal/aggregate"
	"github.com/ecosur-lab/datasync/internal/core/timeutil"
	"github.com/ecosur-lab/datasync/internal/sensors"
	"github.com/ecosur-lab/datasync/internal/store"
)

// State is the collector lifecycle: RUNNING → STOPPING → STOPPED.
// STOPPED is terminal.
type State int32

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	default:
		return "STOPPED"
	}
}

// minPollSleep keeps a slow poll from starving the schedule entirely.
const minPollSleep = 100 * time.Millisecond

// Collector owns one aggregation buffer and one daily writer, runs one
// polling loop per sensor and one draining loop that closes elapsed minute
// buckets and hands them to the writer in batches.
type Collector struct {
	buffer *aggregate.Buffer
	writer *store.DailyWriter
	logger *slog.Logger

	state  atomic.Int32
	paused atomic.Bool

	mu      sync.Mutex
	pending []aggregate.Record
	latest  []aggregate.Record

	now func() time.Time
}

// New creates a collector in the RUNNING state.
func New(buffer *aggregate.Buffer, writer *store.DailyWriter, logger *slog.Logger) *Collector {
	c := &Collector{
		buffer: buffer,
		writer: writer,
		logger: logger,
		now:    time.Now,
	}
	c.state.Store(int32(StateRunning))
	return c
}

// State returns the current lifecycle state.
func (c *Collector) State() State {
	return State(c.state.Load())
}

// Stop requests shutdown. The drain loop performs the final flush and moves
// the collector to STOPPED; polling loops exit on their next check.
func (c *Collector) Stop() {
	c.state.CompareAndSwap(int32(StateRunning), int32(StateStopping))
}

// SetPaused suspends or resumes polling and draining without losing any
// buffered state.
func (c *Collector) SetPaused(paused bool) {
	if c.paused.Swap(paused) != paused {
		c.logger.Info("[Collector] Pause state changed", "paused", paused)
	}
}

// Latest returns the most recently flushed batch of records.
func (c *Collector) Latest() []aggregate.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]aggregate.Record, len(c.latest))
	copy(out, c.latest)
	return out
}

// PollLoop polls one sensor at the given interval for as long as the
// collector is RUNNING. A failed poll is logged and never stops the loop;
// sleep time shrinks by the poll's own duration so a slow sensor does not
// drift the schedule.
func (c *Collector) PollLoop(ctx context.Context, sensor sensors.Sensor, interval time.Duration) {
	c.logger.Info("[Collector] Starting poll loop", "sensor", sensor.Name(), "interval", interval)
	defer c.logger.Info("[Collector] Poll loop stopped", "sensor", sensor.Name())

	for c.State() == StateRunning && ctx.Err() == nil {
		if c.paused.Load() {
			if !sleepCtx(ctx, minSleep(interval, time.Second)) {
				return
			}
			continue
		}

		start := c.now()
		reading, err := sensor.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("[Collector] Poll failed", "sensor", sensor.Name(), "error", err)
		} else {
			c.buffer.Add(timeutil.MinuteStart(start), reading)
		}

		elapsed := c.now().Sub(start)
		sleep := interval - elapsed
		if sleep < minPollSleep {
			sleep = minPollSleep
		}
		if !sleepCtx(ctx, sleep) {
			return
		}
	}
}

// DrainLoop closes elapsed buckets on a timer and flushes them through the
// writer. The pending batch flushes when it reaches batchSize or when a
// finalized bucket crosses a top-of-hour boundary, so a hard hourly cut is
// guaranteed even under low sample volume. On shutdown everything left in
// the buffer and the pending list is persisted before the loop exits.
func (c *Collector) DrainLoop(ctx context.Context, outputInterval time.Duration, batchSize int) {
	c.logger.Info("[Collector] Starting drain loop", "interval", outputInterval, "batch_size", batchSize)

	for c.State() == StateRunning && ctx.Err() == nil {
		if !sleepCtx(ctx, outputInterval) {
			break
		}
		if c.State() != StateRunning {
			break
		}
		if c.paused.Load() {
			continue
		}

		// Buckets strictly before the current minute have fully elapsed; a
		// bucket for minute M is closed once wall-clock reaches M+1.
		closed := c.buffer.CloseBefore(timeutil.MinuteStart(c.now()))
		c.enqueue(closed)

		if c.pendingCount() >= batchSize || crossesHour(closed) {
			c.flush(ctx)
		}
	}

	c.shutdownFlush()
}

// shutdownFlush drains every remaining bucket and persists the pending list.
// This is the one place data loss on restart is explicitly prevented, so it
// runs on a fresh context with a bounded grace period.
func (c *Collector) shutdownFlush() {
	c.state.Store(int32(StateStopping))

	c.enqueue(c.buffer.CloseAll())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c.flush(ctx)

	c.state.Store(int32(StateStopped))
	c.logger.Info("[Collector] Drain loop stopped, collector is STOPPED")
}

func (c *Collector) enqueue(records []aggregate.Record) {
	if len(records) == 0 {
		return
	}
	c.mu.Lock()
	c.pending = append(c.pending, records...)
	c.mu.Unlock()
}

func (c *Collector) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// flush writes the pending batch. On failure the records stay queued for the
// next attempt; the batch is never dropped.
func (c *Collector) flush(ctx context.Context) {
	c.mu.Lock()
	batch := c.pending
	c.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := c.writer.Append(ctx, batch); err != nil {
		c.logger.Error("[Collector] Flush failed, keeping batch queued", "records", len(batch), "error", err)
		return
	}

	c.mu.Lock()
	c.pending = c.pending[len(batch):]
	c.latest = batch
	c.mu.Unlock()
}

// crossesHour reports whether any finalized bucket is the last minute of an
// hour, which forces a flush regardless of batch size.
func crossesHour(records []aggregate.Record) bool {
	for _, r := range records {
		if r.Timestamp.Minute() == 59 {
			return true
		}
	}
	return false
}

func minSleep(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

// sleepCtx sleeps for d, returning false if the context ended first.
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
