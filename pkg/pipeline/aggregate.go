package pipeline

import (
	"math"
	"sort"

	"github.com/pkg/errors"

	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
)

// DailySummary is the aggregate of all records sharing a date.
type DailySummary struct {
	Date          workouts.Date `json:"date"`
	WorkoutCount  int           `json:"workout_count"`
	AvgHR         float64       `json:"avg_hr"`
	MaxHR         float64       `json:"max_hr"`
	TotalDuration float64       `json:"total_duration"`
	TotalCalories float64       `json:"total_calories"`
	AvgOutput     float64       `json:"avg_output"`
	AvgPercentile float64       `json:"avg_percentile"`
	AfibEvents    int           `json:"afib_events"`
}

// TypeDailySummary is the aggregate of all records sharing a date and type.
type TypeDailySummary struct {
	Type string `json:"type"`
	DailySummary
}

// Cell is a single reduced value of a grouped table.
type Cell struct {
	GroupKey
	Value float64 `json:"value"`
}

// Aggregate filters records and summarizes the result by date.
func Aggregate(records []workouts.WorkoutRecord, spec FilterSpec) ([]workouts.WorkoutRecord, []DailySummary) {
	filtered := Filter(records, spec)
	return filtered, dailySummaries(GroupBy(filtered, ByDate, DailyPolicies))
}

// AggregateByType filters records and summarizes the result by date and type.
func AggregateByType(records []workouts.WorkoutRecord, spec FilterSpec) []TypeDailySummary {
	return typeDailySummaries(GroupBy(Filter(records, spec), ByDateAndType, DailyPolicies))
}

// AggregateBy reduces a single output column of DailyPolicies over records
// grouped by keys.
func AggregateBy(records []workouts.WorkoutRecord, keys KeySet, column string) ([]Cell, error) {
	policy, ok := LookupPolicy(column)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownColumn, "%v", column)
	}
	rows := GroupBy(records, keys, []ColumnPolicy{policy})
	cells := make([]Cell, 0, len(rows))
	for _, row := range rows {
		cells = append(cells, Cell{GroupKey: row.Key, Value: row.Values[column]})
	}
	return cells, nil
}

func dailySummaries(rows []Row) []DailySummary {
	summaries := make([]DailySummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, newDailySummary(row))
	}
	return summaries
}

func typeDailySummaries(rows []Row) []TypeDailySummary {
	summaries := make([]TypeDailySummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, TypeDailySummary{
			Type:         row.Key.Type,
			DailySummary: newDailySummary(row),
		})
	}
	return summaries
}

func newDailySummary(row Row) DailySummary {
	return DailySummary{
		Date:          row.Key.Date,
		WorkoutCount:  int(row.Values[OutputWorkoutCount]),
		AvgHR:         row.Values[OutputAvgHR],
		MaxHR:         row.Values[OutputMaxHR],
		TotalDuration: row.Values[OutputTotalDuration],
		TotalCalories: row.Values[OutputTotalCalories],
		AvgOutput:     row.Values[OutputAvgOutput],
		AvgPercentile: row.Values[OutputAvgPercentile],
		AfibEvents:    int(math.Round(row.Values[OutputAfibEvents])),
	}
}

// TypeCount is the number of records of a workout type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// TypeDistribution counts records per type, most frequent first. Ties are
// ordered by type.
func TypeDistribution(records []workouts.WorkoutRecord) []TypeCount {
	counts := make(map[string]int)
	for _, record := range records {
		counts[record.Type]++
	}
	distribution := make([]TypeCount, 0, len(counts))
	for t, count := range counts {
		distribution = append(distribution, TypeCount{Type: t, Count: count})
	}
	sort.Slice(distribution, func(i, j int) bool {
		if distribution[i].Count != distribution[j].Count {
			return distribution[i].Count > distribution[j].Count
		}
		return distribution[i].Type < distribution[j].Type
	})
	return distribution
}

// Totals are the headline figures over a set of daily summaries.
type Totals struct {
	Days          int     `json:"days"`
	Workouts      int     `json:"workouts"`
	AfibEvents    int     `json:"afib_events"`
	TotalDuration float64 `json:"total_duration"`
	TotalCalories float64 `json:"total_calories"`
}

// Summarize adds up daily summaries.
func Summarize(daily []DailySummary) Totals {
	totals := Totals{Days: len(daily)}
	for _, day := range daily {
		totals.Workouts += day.WorkoutCount
		totals.AfibEvents += day.AfibEvents
		totals.TotalDuration += day.TotalDuration
		totals.TotalCalories += day.TotalCalories
	}
	return totals
}

// Report bundles every view over one filter selection.
type Report struct {
	Records      []workouts.WorkoutRecord `json:"records"`
	Daily        []DailySummary           `json:"daily"`
	ByType       []TypeDailySummary       `json:"by_type"`
	Distribution []TypeCount              `json:"distribution"`
	Totals       Totals                   `json:"totals"`
}

// BuildReport filters records once and computes every view from the result.
func BuildReport(records []workouts.WorkoutRecord, spec FilterSpec) *Report {
	filtered := Filter(records, spec)
	daily := dailySummaries(GroupBy(filtered, ByDate, DailyPolicies))
	return &Report{
		Records:      filtered,
		Daily:        daily,
		ByType:       typeDailySummaries(GroupBy(filtered, ByDateAndType, DailyPolicies)),
		Distribution: TypeDistribution(filtered),
		Totals:       Summarize(daily),
	}
}
