package timeutil

import "time"

// BucketFor truncates a timestamp to the start of its aggregation window.
// Two readings with the same bucket belong to the same average.
// Example: BucketFor(10:35:42, time.Minute) → 10:35:00
func BucketFor(t time.Time, granularity time.Duration) time.Time {
	return t.Truncate(granularity)
}

// MinuteStart returns the start of the minute containing t, in t's location.
// Built from calendar components rather than duration arithmetic so the
// result is correct across day and month boundaries.
func MinuteStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, t.Location())
}

// HourStart returns the start of the hour containing t, in t's location.
func HourStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

// DayStart returns midnight of the day containing t, in t's location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// PreviousMinute returns the start of the minute before the one containing t.
// Crossing midnight lands on hour 23 of the previous calendar day; the
// calendar package handles month and year rollover.
func PreviousMinute(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute()-1, 0, 0, t.Location())
}

// PreviousHour returns the start of the hour before the one containing t.
func PreviousHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour()-1, 0, 0, 0, t.Location())
}
