package aggregate

import "time"

// Record is a finalized aggregation bucket: the per-field arithmetic mean of
// every reading that landed in the bucket's window, rounded to the field's
// precision. Fields that no reading carried are simply absent from the map;
// downstream writers emit them as empty cells to keep columns aligned.
type Record struct {
	Timestamp time.Time
	Fields    map[string]float64
}
