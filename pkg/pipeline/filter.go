package pipeline

import (
	"sort"

	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

// TypeSet is a set of workout type labels.
type TypeSet map[string]struct{}

// NewTypeSet returns a TypeSet containing types.
func NewTypeSet(types ...string) TypeSet {
	set := make(TypeSet, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

func (s TypeSet) Has(t string) bool {
	_, ok := s[t]
	return ok
}

// FilterSpec restricts which records enter aggregation.
//
// The date range only applies when both bounds are set. A lone bound is
// ignored, and inverted bounds match nothing. An empty AllowedTypes matches
// nothing; use AllTypes to allow every type.
type FilterSpec struct {
	StartDate    *workouts.Date
	EndDate      *workouts.Date
	AllowedTypes TypeSet
}

// HasDateRange returns true if both date bounds are set.
func (f FilterSpec) HasDateRange() bool {
	return f.StartDate != nil && f.EndDate != nil
}

// Matches returns true if the record passes the date range (inclusive, on the
// record's date) and the type allow-list.
func (f FilterSpec) Matches(record *workouts.WorkoutRecord) bool {
	if f.HasDateRange() && (record.Date.Before(*f.StartDate) || record.Date.After(*f.EndDate)) {
		return false
	}
	return f.AllowedTypes.Has(record.Type)
}

// Filter returns the records matching spec, in input order.
func Filter(records []workouts.WorkoutRecord, spec FilterSpec) []workouts.WorkoutRecord {
	filtered := make([]workouts.WorkoutRecord, 0, len(records))
	for i := range records {
		if spec.Matches(&records[i]) {
			filtered = append(filtered, records[i])
		}
	}
	return filtered
}

// AllTypes returns every distinct workout type in records, sorted.
func AllTypes(records []workouts.WorkoutRecord) []string {
	seen := make(TypeSet)
	types := make([]string, 0)
	for _, record := range records {
		if !seen.Has(record.Type) {
			seen[record.Type] = struct{}{}
			types = append(types, record.Type)
		}
	}
	sort.Strings(types)
	return types
}

// DateBounds returns the earliest and latest record dates, which is the default
// date range offered to users. ok is false if there are no records.
func DateBounds(records []workouts.WorkoutRecord) (first, last workouts.Date, ok bool) {
	if len(records) == 0 {
		return first, last, false
	}
	first, last = records[0].Date, records[0].Date
	for _, record := range records[1:] {
		if record.Date.Before(first) {
			first = record.Date
		}
		if record.Date.After(last) {
			last = record.Date
		}
	}
	return first, last, true
}
