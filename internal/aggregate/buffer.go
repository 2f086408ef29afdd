package aggregate

import (
	"sort"
	"sync"
	"time"

	"github.com/ecosur-lab/datasync/internal/core/round"
)

// bucket accumulates running sums for one window. count increments once per
// reading, not once per field, so a reading that carries a subset of fields
// still weighs as a single sample.
type bucket struct {
	sums  map[string]float64
	count int
}

// Buffer accumulates repeated readings keyed by a truncated time bucket and
// yields finalized average Records once a bucket's window has elapsed.
// All mutation is serialized by a single mutex; sensor pollers on different
// goroutines never race on the same bucket.
type Buffer struct {
	mu        sync.Mutex
	buckets   map[time.Time]*bucket
	overrides map[string]int // per-field precision exceptions; nil for the domain default
}

// NewBuffer creates an empty buffer. precisionOverrides may be nil.
func NewBuffer(precisionOverrides map[string]int) *Buffer {
	return &Buffer{
		buckets:   make(map[time.Time]*bucket),
		overrides: precisionOverrides,
	}
}

// Add merges one reading into the bucket identified by key, creating the
// bucket on first use.
func (b *Buffer) Add(key time.Time, fields map[string]float64) {
	if len(fields) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.buckets[key]
	if !ok {
		entry = &bucket{sums: make(map[string]float64, len(fields))}
		b.buckets[key] = entry
	}
	for field, value := range fields {
		entry.sums[field] += value
	}
	entry.count++
}

// CloseBefore removes and returns every bucket whose key is strictly earlier
// than cutoff, each finalized into a rounded Record. Records come back sorted
// by timestamp. A bucket is only ever returned once.
func (b *Buffer) CloseBefore(cutoff time.Time) []Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	var records []Record
	for key, entry := range b.buckets {
		if !key.Before(cutoff) {
			continue
		}
		records = append(records, b.finalize(key, entry))
		delete(b.buckets, key)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records
}

// CloseAll drains every bucket regardless of age. Shutdown path only: the
// collector must persist partial windows rather than lose them.
func (b *Buffer) CloseAll() []Record {
	b.mu.Lock()
	var maxKey time.Time
	for key := range b.buckets {
		if key.After(maxKey) {
			maxKey = key
		}
	}
	b.mu.Unlock()

	return b.CloseBefore(maxKey.Add(time.Nanosecond))
}

// Len returns the number of open buckets.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

func (b *Buffer) finalize(key time.Time, entry *bucket) Record {
	fields := make(map[string]float64, len(entry.sums))
	for field, sum := range entry.sums {
		fields[field] = round.Field(field, sum/float64(entry.count), b.overrides)
	}
	return Record{Timestamp: key, Fields: fields}
}
