package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ecosur-lab/datasync/internal/aggregate"
	"github.com/ecosur-lab/datasync/internal/core/timeutil"
	"github.com/ecosur-lab/datasync/internal/retry"
)

const (
	writerAttempts = 3
	writerBackoff  = 2 * time.Second
)

// DailyWriter appends finalized records to the date-partitioned day store:
// one CSV file per calendar day under root/YYYY/MM/DD.csv. It is the only
// component that writes there. Appends are atomic per call: the whole batch
// for a day lands via temp-file-and-rename, or none of it does.
type DailyWriter struct {
	root    string
	columns []string // "timestamp" first, then field names in config order
	policy  retry.Policy
	logger  *slog.Logger
}

// NewDailyWriter creates a writer for the given root directory and fixed
// column set. The column set is decided at collector start and never changes
// for the lifetime of the writer.
func NewDailyWriter(root string, columns []string, logger *slog.Logger) *DailyWriter {
	cols := make([]string, 0, len(columns)+1)
	cols = append(cols, "timestamp")
	for _, c := range columns {
		if c != "timestamp" {
			cols = append(cols, c)
		}
	}
	return &DailyWriter{
		root:    root,
		columns: cols,
		policy:  &retry.Constant{Attempts: writerAttempts, Interval: writerBackoff, Logger: logger},
		logger:  logger,
	}
}

// Columns returns the fixed column order, "timestamp" first.
func (w *DailyWriter) Columns() []string {
	out := make([]string, len(w.columns))
	copy(out, w.columns)
	return out
}

// Append groups records by calendar day and appends each group to its day
// file. Transient I/O failures retry up to 3 attempts with a fixed 2s
// backoff; a batch that still fails is returned as an error and stays the
// caller's responsibility.
func (w *DailyWriter) Append(ctx context.Context, records []aggregate.Record) error {
	if len(records) == 0 {
		return nil
	}

	byDay := make(map[time.Time][]aggregate.Record)
	var days []time.Time
	for _, r := range records {
		day := timeutil.DayStart(r.Timestamp)
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], r)
	}

	for _, day := range days {
		group := byDay[day]
		path := w.dayPath(day)
		err := w.policy.Start(ctx, "append "+path, func(context.Context) (bool, error) {
			if err := w.appendDay(path, group); err != nil {
				return true, err
			}
			return false, nil
		})
		if err != nil {
			return fmt.Errorf("append day %s: %w", day.Format("2006-01-02"), err)
		}
		w.logger.Info("[DailyWriter] Batch written", "file", path, "records", len(group))
	}
	return nil
}

// DayPath returns the store path of the day file containing t.
func (w *DailyWriter) DayPath(t time.Time) string {
	return w.dayPath(timeutil.DayStart(t))
}

func (w *DailyWriter) dayPath(day time.Time) string {
	return filepath.Join(w.root, day.Format("2006"), day.Format("01"), day.Format("02")+".csv")
}

// appendDay rewrites the day file with the existing content plus the new
// rows, then renames it into place. The header is written only when the file
// is new.
func (w *DailyWriter) appendDay(path string, records []aggregate.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create day directory: %w", err)
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read existing day file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".day-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if len(existing) > 0 {
		if _, err := tmp.Write(existing); err != nil {
			tmp.Close()
			return fmt.Errorf("copy existing rows: %w", err)
		}
	}

	cw := csv.NewWriter(tmp)
	if len(existing) == 0 {
		if err := cw.Write(w.columns); err != nil {
			tmp.Close()
			return fmt.Errorf("write header: %w", err)
		}
	}
	for _, r := range records {
		if err := cw.Write(w.row(r)); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("swap day file: %w", err)
	}
	return nil
}

// row renders a record in the fixed column order. Fields the record does not
// carry become empty cells, never omitted, so columns stay aligned across
// appends.
func (w *DailyWriter) row(r aggregate.Record) []string {
	out := make([]string, len(w.columns))
	out[0] = r.Timestamp.Format(TimestampLayout)
	for i, col := range w.columns[1:] {
		if v, ok := r.Fields[col]; ok {
			out[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out
}
