package time

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayouts are the timestamp formats accepted in workout logs, tried in order.
// Fractional seconds are accepted by every layout that has a seconds field.
var TimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseTimestamp parses s with the first matching layout in TimestampLayouts.
// Timestamps without a zone offset are interpreted in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range TimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// MinTimeNonZero returns the smallest time.Time from the input timestamps, excluding zero times.
func MinTimeNonZero(ts ...time.Time) time.Time {
	var minTime time.Time
	for _, t := range ts {
		if !t.IsZero() && (minTime.IsZero() || t.Before(minTime)) {
			minTime = t
		}
	}
	return minTime
}

// MaxTime returns the largest time.Time from the input timestamps.
func MaxTime(ts ...time.Time) time.Time {
	var maxTime time.Time
	for _, t := range ts {
		if maxTime.IsZero() || t.After(maxTime) {
			maxTime = t
		}
	}
	return maxTime
}

// FormatTimeRange outputs a time range as a formatted string.
func FormatTimeRange(start, end time.Time, layout string) string {
	return fmt.Sprintf("%v - %v", start.Format(layout), end.Format(layout))
}
