package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

// Reducer reduces the values of one source column over a group of records.
type Reducer int

const (
	// ReduceCount counts the records in the group.
	ReduceCount Reducer = iota
	// ReduceMean averages the values that are present. A group without any
	// present value reduces to 0.
	ReduceMean
	// ReduceSum sums the values, treating absent values as 0.
	ReduceSum
)

// ColumnPolicy defines how an output column is computed from a source column.
type ColumnPolicy struct {
	Output  string
	Source  workouts.Column
	Reducer Reducer
}

const (
	OutputWorkoutCount  = "workout_count"
	OutputAvgHR         = "avg_hr"
	OutputMaxHR         = "max_hr"
	OutputTotalDuration = "total_duration"
	OutputTotalCalories = "total_calories"
	OutputAvgOutput     = "avg_output"
	OutputAvgPercentile = "avg_percentile"
	OutputAfibEvents    = "afib_events"
)

// DailyPolicies is the column-policy table for summary rows.
var DailyPolicies = []ColumnPolicy{
	{Output: OutputWorkoutCount, Reducer: ReduceCount},
	{Output: OutputAvgHR, Source: workouts.ColumnAvgHR, Reducer: ReduceMean},
	{Output: OutputMaxHR, Source: workouts.ColumnMaxHR, Reducer: ReduceMean},
	{Output: OutputTotalDuration, Source: workouts.ColumnDurationMin, Reducer: ReduceSum},
	{Output: OutputTotalCalories, Source: workouts.ColumnCalories, Reducer: ReduceSum},
	{Output: OutputAvgOutput, Source: workouts.ColumnTotalOutputKJ, Reducer: ReduceMean},
	{Output: OutputAvgPercentile, Source: workouts.ColumnLeaderboardPercentile, Reducer: ReduceMean},
	{Output: OutputAfibEvents, Source: workouts.ColumnAfibEvents, Reducer: ReduceSum},
}

// LookupPolicy returns the policy in DailyPolicies producing output.
func LookupPolicy(output string) (ColumnPolicy, bool) {
	for _, policy := range DailyPolicies {
		if policy.Output == output {
			return policy, true
		}
	}
	return ColumnPolicy{}, false
}

type accumulator struct {
	sum   float64
	count int
}

func (p ColumnPolicy) accumulate(acc *accumulator, record *workouts.WorkoutRecord) {
	if p.Reducer == ReduceCount {
		acc.count++
		return
	}
	if v, ok := record.Value(p.Source); ok {
		acc.sum += v
		acc.count++
	}
}

func (p ColumnPolicy) result(acc *accumulator) float64 {
	switch p.Reducer {
	case ReduceCount:
		return float64(acc.count)
	case ReduceMean:
		if acc.count == 0 {
			return 0
		}
		return acc.sum / float64(acc.count)
	default:
		return acc.sum
	}
}

// KeySet selects the grouping keys.
type KeySet int

const (
	ByDate KeySet = iota
	ByDateAndType
)

// ParseKeySet parses a comma-separated list of grouping keys, i.e. "date" or "date,type".
func ParseKeySet(s string) (KeySet, error) {
	keys := make(map[string]bool)
	for _, key := range strings.Split(s, ",") {
		keys[strings.TrimSpace(key)] = true
	}
	switch {
	case len(keys) == 1 && keys["date"]:
		return ByDate, nil
	case len(keys) == 2 && keys["date"] && keys["type"]:
		return ByDateAndType, nil
	}
	return ByDate, fmt.Errorf("unsupported grouping keys %q", s)
}

func (k KeySet) String() string {
	if k == ByDateAndType {
		return "date,type"
	}
	return "date"
}

func (k KeySet) keyOf(record *workouts.WorkoutRecord) GroupKey {
	key := GroupKey{Date: record.Date}
	if k == ByDateAndType {
		key.Type = record.Type
	}
	return key
}

// GroupKey identifies a group. Type is empty when grouping by date only.
type GroupKey struct {
	Date workouts.Date `json:"date"`
	Type string        `json:"type,omitempty"`
}

func (k GroupKey) less(other GroupKey) bool {
	if c := k.Date.Compare(other.Date); c != 0 {
		return c < 0
	}
	return k.Type < other.Type
}

// Row is one reduced group, with a value for each policy's output column.
type Row struct {
	Key    GroupKey
	Values map[string]float64
}

// GroupBy groups records by keys and reduces each group with policies. Rows are
// sorted by date, then type. Only keys with at least one record produce a row.
func GroupBy(records []workouts.WorkoutRecord, keys KeySet, policies []ColumnPolicy) []Row {
	type group struct {
		key  GroupKey
		accs []accumulator
	}

	index := make(map[GroupKey]*group)
	groups := make([]*group, 0)
	for i := range records {
		record := &records[i]
		key := keys.keyOf(record)
		g, ok := index[key]
		if !ok {
			g = &group{key: key, accs: make([]accumulator, len(policies))}
			index[key] = g
			groups = append(groups, g)
		}
		for j, policy := range policies {
			policy.accumulate(&g.accs[j], record)
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].key.less(groups[j].key)
	})

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		values := make(map[string]float64, len(policies))
		for j, policy := range policies {
			values[policy.Output] = policy.result(&g.accs[j])
		}
		rows = append(rows, Row{Key: g.key, Values: values})
	}
	return rows
}
