package store

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ecosur-lab/datasync/internal/core/timeutil"
)

// WADTimestampLayout is the Date_Time format the WinAQMS logger writes.
const WADTimestampLayout = "2006/01/02 15:04:05"

// wadTimeColumn is the timestamp column name in .wad files.
const wadTimeColumn = "Date_Time"

// WADReader reads the WinAQMS logger's daily .wad files:
// <dir>/<YYYY>/<MM>/eco<YYYYMMDD>.wad, a CSV with a Date_Time column followed
// by the C1..C6 analyzer columns. The format is consumed read-only.
type WADReader struct {
	dir    string
	logger *slog.Logger
}

// NewWADReader creates a reader over the WinAQMS data directory.
func NewWADReader(dir string, logger *slog.Logger) *WADReader {
	return &WADReader{dir: dir, logger: logger}
}

// ReadWindow returns the samples with start <= Date_Time < end.
// ErrNoData when the day files are absent or the window is empty.
func (r *WADReader) ReadWindow(start, end time.Time) ([]Sample, error) {
	var samples []Sample
	missing := 0
	days := 0

	for day := timeutil.DayStart(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		days++
		path := r.dayPath(day)
		daySamples, err := r.readFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				missing++
				continue
			}
			return nil, fmt.Errorf("read wad file %s: %w", path, err)
		}
		for _, s := range daySamples {
			if !s.Timestamp.Before(start) && s.Timestamp.Before(end) {
				samples = append(samples, s)
			}
		}
	}

	if missing == days || len(samples) == 0 {
		return nil, ErrNoData
	}
	return samples, nil
}

func (r *WADReader) dayPath(day time.Time) string {
	name := "eco" + day.Format("20060102") + ".wad"
	return filepath.Join(r.dir, day.Format("2006"), day.Format("01"), name)
}

func (r *WADReader) readFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	timeIdx := -1
	for i, col := range header {
		if col == wadTimeColumn {
			timeIdx = i
			break
		}
	}
	if timeIdx < 0 {
		return nil, fmt.Errorf("column %q not found in %s", wadTimeColumn, path)
	}

	var samples []Sample
	for _, row := range rows[1:] {
		if timeIdx >= len(row) {
			continue
		}
		ts, err := time.ParseInLocation(WADTimestampLayout, row[timeIdx], time.Local)
		if err != nil {
			r.logger.Warn("[WADReader] Skipping row with bad Date_Time", "file", path, "value", row[timeIdx])
			continue
		}
		fields := make(map[string]float64)
		for i, col := range header {
			if i == timeIdx || i >= len(row) || row[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				continue
			}
			fields[col] = v
		}
		samples = append(samples, Sample{Timestamp: ts, Fields: fields})
	}
	return samples, nil
}
