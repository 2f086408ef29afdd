package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ecosur-lab/datasync/internal/core/round"
	"github.com/ecosur-lab/datasync/internal/core/timeutil"
	"github.com/ecosur-lab/datasync/internal/store"
)

// WindowSource provides the aggregated samples for one hour window.
// Implementations: the collector's day store and the WinAQMS .wad reader.
type WindowSource interface {
	ReadWindow(start, end time.Time) ([]store.Sample, error)
}

// Checkpoints is the durable record of the last hour fully published per
// channel.
type Checkpoints interface {
	Checkpoint(channel string) (time.Time, bool)
	WriteCheckpoint(channel string, ts time.Time) error
}

// Cycle replays unpublished hours for one channel, strictly in order:
// read the hour's samples, average them, send, advance the checkpoint.
// The first send failure stops the cycle so the checkpoint always names a
// contiguous prefix of delivered hours.
type Cycle struct {
	channel     string
	source      WindowSource
	checkpoints Checkpoints
	sender      Sender
	fields      FieldMap
	precision   map[string]int
	logger      *slog.Logger
	now         func() time.Time
}

// NewCycle assembles a publish cycle for one channel. precisionOverrides may
// be nil for the default rounding rule.
func NewCycle(
	channel string,
	source WindowSource,
	checkpoints Checkpoints,
	sender Sender,
	fields FieldMap,
	precisionOverrides map[string]int,
	logger *slog.Logger,
) *Cycle {
	return &Cycle{
		channel:     channel,
		source:      source,
		checkpoints: checkpoints,
		sender:      sender,
		fields:      fields,
		precision:   precisionOverrides,
		logger:      logger,
		now:         time.Now,
	}
}

// Execute runs one publish cycle. The replay range starts one hour after the
// checkpoint (start of today when no checkpoint exists, which caps first-run
// backlog at one day) and ends before the still-open current hour: an hour
// is only published once it has fully elapsed.
//
// Hours with no source data move the cursor but never the checkpoint; the
// checkpoint only advances when a send succeeds.
func (c *Cycle) Execute(ctx context.Context) error {
	cycleID := uuid.NewString()[:8]
	now := c.now()

	last, ok := c.checkpoints.Checkpoint(c.channel)
	if !ok {
		last = timeutil.DayStart(now)
		c.logger.Info("[PublishCycle] No checkpoint, starting from today",
			"channel", c.channel, "cycle", cycleID, "from", last)
	}

	currentHour := timeutil.HourStart(now)
	sent, skipped := 0, 0

	for cursor := last.Add(time.Hour); cursor.Before(currentHour); cursor = cursor.Add(time.Hour) {
		if err := ctx.Err(); err != nil {
			return err
		}

		samples, err := c.source.ReadWindow(cursor, cursor.Add(time.Hour))
		if err != nil {
			if !errors.Is(err, store.ErrNoData) {
				// File-read failures are logged and treated as "no data";
				// they are not retried within the same cycle.
				c.logger.Warn("[PublishCycle] Read failed, treating hour as empty",
					"channel", c.channel, "cycle", cycleID, "hour", cursor, "error", err)
			}
			skipped++
			continue
		}

		row := c.hourlyRow(cursor, samples)
		if err := c.sender.Send(ctx, row); err != nil {
			c.logger.Warn("[PublishCycle] Send failed, stopping cycle",
				"channel", c.channel, "cycle", cycleID, "hour", cursor, "sent", sent, "error", err)
			return fmt.Errorf("send hour %s: %w", cursor.Format(rowTimestampLayout), err)
		}

		if err := c.checkpoints.WriteCheckpoint(c.channel, cursor); err != nil {
			// Without a durable checkpoint the hour would be resent next
			// cycle; stop here so delivery stays a contiguous prefix.
			return fmt.Errorf("advance checkpoint to %s: %w", cursor.Format(rowTimestampLayout), err)
		}
		sent++
	}

	c.logger.Info("[PublishCycle] Cycle complete",
		"channel", c.channel, "cycle", cycleID, "sent", sent, "skipped", skipped)
	return nil
}

// hourlyRow computes the hour's per-field means, rounds them, and renames
// fields for the API. Every mapped field appears in the row; fields no
// sample carried become nil.
func (c *Cycle) hourlyRow(hour time.Time, samples []store.Sample) Row {
	values := make(map[string]*float64, len(c.fields))
	for _, m := range c.fields {
		sum := 0.0
		n := 0
		for _, s := range samples {
			if v, ok := s.Fields[m.Internal]; ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			values[m.External] = nil
			continue
		}
		avg := round.Field(m.Internal, sum/float64(n), c.precision)
		values[m.External] = &avg
	}
	return Row{Timestamp: hour, Values: values}
}
