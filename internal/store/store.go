package store

import (
	"errors"
	"time"
)

// ErrNoData is returned by window reads when no day file exists for the
// requested window or the window holds no samples. Callers treat it as
// "nothing to publish", never as a failure.
var ErrNoData = errors.New("no data for window")

// Sample is one time-stamped row read back from a day file. Fields holds only
// the columns that carried a parseable numeric value.
type Sample struct {
	Timestamp time.Time
	Fields    map[string]float64
}

// TimestampLayout is the row timestamp format in collector day files.
const TimestampLayout = "2006-01-02 15:04"
