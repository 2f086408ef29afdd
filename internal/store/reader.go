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

// DayReader reads samples back from the collector's day store. It only ever
// reads; the DailyWriter is the sole writer, which is what makes the
// writer/reader pairing race-free by construction.
type DayReader struct {
	root   string
	logger *slog.Logger
}

// NewDayReader creates a reader over the same root the DailyWriter writes.
func NewDayReader(root string, logger *slog.Logger) *DayReader {
	return &DayReader{root: root, logger: logger}
}

// ReadWindow returns the samples with start <= timestamp < end, reading every
// day file the window touches. ErrNoData when no file exists or nothing falls
// inside the window.
func (r *DayReader) ReadWindow(start, end time.Time) ([]Sample, error) {
	var samples []Sample
	missing := 0
	days := 0

	for day := timeutil.DayStart(start); day.Before(end); day = day.AddDate(0, 0, 1) {
		days++
		path := filepath.Join(r.root, day.Format("2006"), day.Format("01"), day.Format("02")+".csv")
		daySamples, err := r.readFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				missing++
				continue
			}
			return nil, fmt.Errorf("read day file %s: %w", path, err)
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

// readFile parses one day file. Rows with an unparseable timestamp are
// skipped and logged; blank or non-numeric cells are skipped silently.
func (r *DayReader) readFile(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, nil
	}

	header := rows[0]
	var samples []Sample
	for _, row := range rows[1:] {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		ts, err := time.ParseInLocation(TimestampLayout, row[0], time.Local)
		if err != nil {
			r.logger.Warn("[DayReader] Skipping row with bad timestamp", "file", path, "value", row[0])
			continue
		}
		fields := make(map[string]float64)
		for i := 1; i < len(row) && i < len(header); i++ {
			if row[i] == "" {
				continue
			}
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				continue
			}
			fields[header[i]] = v
		}
		samples = append(samples, Sample{Timestamp: ts, Fields: fields})
	}
	return samples, nil
}
