package collector

import (
	"context"
	"time"

	"github.com/ecosur-lab/datasync/internal/control"
)

// WatchControl polls the shared control document and drives the collector's
// state machine: PAUSED suspends polling and draining without touching
// buffered state, STOPPED triggers shutdown and ends the watch. Changes take
// effect on the next check, not immediately.
func (c *Collector) WatchControl(ctx context.Context, ctrl *control.Store, interval time.Duration) {
	for ctx.Err() == nil && c.State() == StateRunning {
		switch ctrl.ReadState(control.ServiceCollector) {
		case control.StateStopped:
			c.logger.Info("[Collector] Control document requests stop")
			c.Stop()
			return
		case control.StatePaused:
			c.SetPaused(true)
		case control.StateRunning:
			c.SetPaused(false)
		}

		if !sleepCtx(ctx, interval) {
			return
		}
	}
}
