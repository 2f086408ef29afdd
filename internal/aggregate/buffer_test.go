package aggregate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func minuteKey(h, m int) time.Time {
	return time.Date(2023, 1, 1, h, m, 0, 0, time.UTC)
}

func TestBuffer_AverageCorrectness(t *testing.T) {
	b := NewBuffer(nil)
	key := minuteKey(10, 0)

	for _, v := range []float64{20.1, 20.3, 20.5, 20.7} {
		b.Add(key, map[string]float64{"Temperature": v})
	}

	records := b.CloseBefore(minuteKey(10, 1))
	require.Len(t, records, 1)
	require.True(t, records[0].Timestamp.Equal(key))
	require.InDelta(t, 20.4, records[0].Fields["Temperature"], 1e-9)
}

func TestBuffer_RainFieldsKeepTwoDecimals(t *testing.T) {
	b := NewBuffer(nil)
	key := minuteKey(10, 0)

	for _, v := range []float64{0.25, 0.30, 0.40, 0.50} {
		b.Add(key, map[string]float64{"RainRate": v, "WindSpeed": v * 10})
	}

	records := b.CloseBefore(minuteKey(11, 0))
	require.Len(t, records, 1)
	require.InDelta(t, 0.36, records[0].Fields["RainRate"], 1e-9)
	require.InDelta(t, 3.6, records[0].Fields["WindSpeed"], 1e-9)
}

func TestBuffer_CountPerReadingNotPerField(t *testing.T) {
	b := NewBuffer(nil)
	key := minuteKey(9, 30)

	// Second reading misses Humidity; its average divides by the number of
	// readings that contributed, which for Humidity is still every Add call.
	b.Add(key, map[string]float64{"Temperature": 10, "Humidity": 40})
	b.Add(key, map[string]float64{"Temperature": 20})

	records := b.CloseBefore(minuteKey(9, 31))
	require.Len(t, records, 1)
	require.InDelta(t, 15.0, records[0].Fields["Temperature"], 1e-9)
	require.InDelta(t, 20.0, records[0].Fields["Humidity"], 1e-9)
}

func TestBuffer_BucketIsolation(t *testing.T) {
	b := NewBuffer(nil)

	b.Add(minuteKey(10, 0), map[string]float64{"Temperature": 10})
	b.Add(minuteKey(10, 1), map[string]float64{"Temperature": 30})

	records := b.CloseBefore(minuteKey(10, 2))
	require.Len(t, records, 2)
	require.InDelta(t, 10.0, records[0].Fields["Temperature"], 1e-9)
	require.InDelta(t, 30.0, records[1].Fields["Temperature"], 1e-9)
}

func TestBuffer_CloseBeforeIsStrict(t *testing.T) {
	b := NewBuffer(nil)
	b.Add(minuteKey(10, 0), map[string]float64{"Temperature": 10})
	b.Add(minuteKey(10, 1), map[string]float64{"Temperature": 20})

	records := b.CloseBefore(minuteKey(10, 1))
	require.Len(t, records, 1)
	require.True(t, records[0].Timestamp.Equal(minuteKey(10, 0)))
	require.Equal(t, 1, b.Len())
}

func TestBuffer_FlushedAtMostOnce(t *testing.T) {
	b := NewBuffer(nil)
	b.Add(minuteKey(10, 0), map[string]float64{"Temperature": 10})

	first := b.CloseBefore(minuteKey(11, 0))
	second := b.CloseBefore(minuteKey(11, 0))
	require.Len(t, first, 1)
	require.Empty(t, second)
	require.Zero(t, b.Len())
}

func TestBuffer_MidnightRollover(t *testing.T) {
	b := NewBuffer(nil)
	lastMinute := time.Date(2023, 1, 31, 23, 59, 0, 0, time.UTC)
	b.Add(lastMinute, map[string]float64{"Temperature": 5})

	// Cutoff is the first minute of the next day (and next month); the bucket
	// for 23:59 of day N closes into day N.
	records := b.CloseBefore(time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, records, 1)
	require.True(t, records[0].Timestamp.Equal(lastMinute))
}

func TestBuffer_RecordsSortedByTimestamp(t *testing.T) {
	b := NewBuffer(nil)
	for _, m := range []int{7, 3, 5, 1} {
		b.Add(minuteKey(12, m), map[string]float64{"Temperature": float64(m)})
	}

	records := b.CloseBefore(minuteKey(13, 0))
	require.Len(t, records, 4)
	for i := 1; i < len(records); i++ {
		require.True(t, records[i-1].Timestamp.Before(records[i].Timestamp))
	}
}

func TestBuffer_CloseAll(t *testing.T) {
	b := NewBuffer(nil)
	b.Add(minuteKey(10, 0), map[string]float64{"Temperature": 1})
	b.Add(minuteKey(10, 5), map[string]float64{"Temperature": 2})

	records := b.CloseAll()
	require.Len(t, records, 2)
	require.Zero(t, b.Len())
}

func TestBuffer_PrecisionOverrides(t *testing.T) {
	b := NewBuffer(map[string]int{"C1": 3, "C6": 0})
	key := minuteKey(8, 0)
	b.Add(key, map[string]float64{"C1": 0.0611, "C6": 41.2})
	b.Add(key, map[string]float64{"C1": 0.0622, "C6": 42.6})

	records := b.CloseBefore(minuteKey(8, 1))
	require.Len(t, records, 1)
	require.InDelta(t, 0.062, records[0].Fields["C1"], 1e-9)
	require.InDelta(t, 42.0, records[0].Fields["C6"], 1e-9)
}

func TestBuffer_ConcurrentAdds(t *testing.T) {
	b := NewBuffer(nil)
	key := minuteKey(10, 0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Add(key, map[string]float64{"Temperature": 10})
			}
		}()
	}
	wg.Wait()

	records := b.CloseBefore(minuteKey(10, 1))
	require.Len(t, records, 1)
	require.InDelta(t, 10.0, records[0].Fields["Temperature"], 1e-9)
}
