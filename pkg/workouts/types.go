package workouts

import (
	"sort"
	"time"
)

// Column names a column of the workout log.
type Column string

const (
	ColumnStart                 Column = "start"
	ColumnEnd                   Column = "end"
	ColumnType                  Column = "type"
	ColumnDurationMin           Column = "duration_min"
	ColumnAvgHR                 Column = "avg_hr"
	ColumnMaxHR                 Column = "max_hr"
	ColumnCalories              Column = "calories"
	ColumnTotalOutputKJ         Column = "total_output_kj"
	ColumnLeaderboardPercentile Column = "leaderboard_percentile"
	ColumnAfibEvents            Column = "afib_events"
	ColumnFirstAfib             Column = "first_afib"
	ColumnLastAfib              Column = "last_afib"
)

// NumericColumns lists every optional numeric column, in schema order.
var NumericColumns = []Column{
	ColumnDurationMin,
	ColumnAvgHR,
	ColumnMaxHR,
	ColumnCalories,
	ColumnTotalOutputKJ,
	ColumnLeaderboardPercentile,
	ColumnAfibEvents,
}

// WorkoutRecord is one logged exercise session.
//
// Optional metrics are nil when the source had no value for them. Date is always
// the calendar date of Start and is recomputed whenever a record is loaded.
type WorkoutRecord struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
	Date  Date       `json:"date"`
	Type  string     `json:"type"`

	DurationMin           *float64 `json:"duration_min,omitempty"`
	AvgHR                 *float64 `json:"avg_hr,omitempty"`
	MaxHR                 *float64 `json:"max_hr,omitempty"`
	Calories              *float64 `json:"calories,omitempty"`
	TotalOutputKJ         *float64 `json:"total_output_kj,omitempty"`
	LeaderboardPercentile *float64 `json:"leaderboard_percentile,omitempty"`

	// AFib episodes overlapping the session, and the window they were seen in.
	AfibEvents *int       `json:"afib_events,omitempty"`
	FirstAfib  *time.Time `json:"first_afib,omitempty"`
	LastAfib   *time.Time `json:"last_afib,omitempty"`
}

// Value returns the numeric value of column, and whether it is present.
func (r *WorkoutRecord) Value(column Column) (float64, bool) {
	var v *float64
	switch column {
	case ColumnDurationMin:
		v = r.DurationMin
	case ColumnAvgHR:
		v = r.AvgHR
	case ColumnMaxHR:
		v = r.MaxHR
	case ColumnCalories:
		v = r.Calories
	case ColumnTotalOutputKJ:
		v = r.TotalOutputKJ
	case ColumnLeaderboardPercentile:
		v = r.LeaderboardPercentile
	case ColumnAfibEvents:
		if r.AfibEvents == nil {
			return 0, false
		}
		return float64(*r.AfibEvents), true
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}

// Schema is the set of columns present in a source.
type Schema map[Column]bool

func (s Schema) Has(column Column) bool {
	return s[column]
}

// Columns returns the present columns in sorted order.
func (s Schema) Columns() []Column {
	columns := make([]Column, 0, len(s))
	for column, ok := range s {
		if ok {
			columns = append(columns, column)
		}
	}
	sort.Slice(columns, func(i, j int) bool {
		return columns[i] < columns[j]
	})
	return columns
}

// Dataset is a loaded and normalized workout log.
type Dataset struct {
	Source  string          `json:"source"`
	Records []WorkoutRecord `json:"records"`
	Schema  Schema          `json:"schema"`

	// Dropped counts rows that were skipped because they had no usable start or type.
	Dropped int `json:"dropped"`
}

// Float returns a pointer to v, for populating optional fields.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v, for populating optional fields.
func Int(v int) *int {
	return &v
}
