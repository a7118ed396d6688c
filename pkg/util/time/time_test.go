package time

import (
	"testing"
	"time"
)

var (
	ts1        = mktime("2025-01-01T06:15:00Z")
	ts2        = mktime("2025-01-01T07:05:00Z")
	tsNegative = mktime("1969-10-24T17:58:10Z")
)

func TestMinTimeNonZero(t *testing.T) {
	tests := []struct {
		name string
		ts   []time.Time
		want time.Time
	}{
		{name: "no inputs"},
		{name: "zero timestamp", ts: []time.Time{{}}},
		{name: "non-zero timestamp", ts: []time.Time{ts1}, want: ts1},
		{name: "multiple timestamps", ts: []time.Time{ts1, ts2}, want: ts1},
		{name: "only negative timestamp", ts: []time.Time{tsNegative}, want: tsNegative},
		{name: "negative timestamp in list", ts: []time.Time{ts1, tsNegative}, want: tsNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinTimeNonZero(tt.ts...); !got.Equal(tt.want) {
				t.Errorf("MinTimeNonZero not equal, want %v got %v", tt.want, got)
			}
		})
	}
}

func TestMaxTime(t *testing.T) {
	tests := []struct {
		name string
		ts   []time.Time
		want time.Time
	}{
		{name: "no inputs"},
		{name: "zero timestamp", ts: []time.Time{{}}},
		{name: "non-zero timestamp", ts: []time.Time{ts1}, want: ts1},
		{name: "multiple timestamps", ts: []time.Time{ts1, ts2}, want: ts2},
		{name: "only negative timestamp", ts: []time.Time{tsNegative}, want: tsNegative},
		{name: "negative timestamp in list", ts: []time.Time{ts1, tsNegative}, want: ts1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaxTime(tt.ts...); !got.Equal(tt.want) {
				t.Errorf("MaxTime not equal, want %v got %v", tt.want, got)
			}
		})
	}
}

func TestFormatTimeRange(t *testing.T) {
	tests := []struct {
		name   string
		start  time.Time
		end    time.Time
		layout string
		want   string
	}{
		{name: "basic test", start: ts1, end: ts2, layout: time.RFC3339, want: "2025-01-01T06:15:00Z - 2025-01-01T07:05:00Z"},
		{name: "date time format", start: ts1, end: ts2, layout: time.DateTime, want: "2025-01-01 06:15:00 - 2025-01-01 07:05:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimeRange(tt.start, tt.end, tt.layout); got != tt.want {
				t.Errorf("FormatTimeRange() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*60*60)
	tests := []struct {
		name    string
		input   string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{name: "rfc3339", input: "2025-01-01T07:30:00Z", want: time.Date(2025, 1, 1, 7, 30, 0, 0, time.UTC)},
		{name: "space separated with offset", input: "2025-01-01 07:30:00-05:00", want: time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC)},
		{name: "space separated offset", input: "2021-12-24 08:02:43 +0800", want: time.Date(2021, 12, 24, 0, 2, 43, 0, time.UTC)},
		{name: "naive uses location", input: "2025-01-01 07:30:00", loc: sgt, want: time.Date(2025, 1, 1, 7, 30, 0, 0, sgt)},
		{name: "naive defaults to utc", input: "2025-01-01T07:30:00", want: time.Date(2025, 1, 1, 7, 30, 0, 0, time.UTC)},
		{name: "fractional seconds", input: "2025-01-01 07:30:00.250", want: time.Date(2025, 1, 1, 7, 30, 0, 250000000, time.UTC)},
		{name: "without seconds", input: "2025-01-01 07:30", want: time.Date(2025, 1, 1, 7, 30, 0, 0, time.UTC)},
		{name: "date only", input: "2025-01-01", want: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "us date", input: "06/10/2025 18:00", want: time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC)},
		{name: "surrounding whitespace", input: "  2025-01-01  ", want: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "yesterday", wantErr: true},
		{name: "invalid month", input: "2025-13-01", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input, tt.loc)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseTimestamp() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp() = %v, want %v", got, tt.want)
			}
		})
	}
}

func mktime(ts string) time.Time {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return t
}
