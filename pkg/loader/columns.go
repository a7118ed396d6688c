package loader

import (
	"strings"

	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

// columnAliases maps lower-cased header names to the column they populate.
// The first header that resolves to a column wins.
var columnAliases = map[string]workouts.Column{
	"start":                  workouts.ColumnStart,
	"workout_start":          workouts.ColumnStart,
	"end":                    workouts.ColumnEnd,
	"workout_end":            workouts.ColumnEnd,
	"type":                   workouts.ColumnType,
	"workout_type":           workouts.ColumnType,
	"name":                   workouts.ColumnType,
	"duration_min":           workouts.ColumnDurationMin,
	"duration":               workouts.ColumnDurationMin,
	"avg_hr":                 workouts.ColumnAvgHR,
	"max_hr":                 workouts.ColumnMaxHR,
	"calories":               workouts.ColumnCalories,
	"total_output_kj":        workouts.ColumnTotalOutputKJ,
	"output_kj":              workouts.ColumnTotalOutputKJ,
	"leaderboard_percentile": workouts.ColumnLeaderboardPercentile,
	"afib_events":            workouts.ColumnAfibEvents,
	"first_afib":             workouts.ColumnFirstAfib,
	"last_afib":              workouts.ColumnLastAfib,
}

// rawRow holds the text of a single CSV row, bound by column name.
type rawRow struct {
	Start                 string `csv:"start"`
	End                   string `csv:"end"`
	Type                  string `csv:"type"`
	DurationMin           string `csv:"duration_min"`
	AvgHR                 string `csv:"avg_hr"`
	MaxHR                 string `csv:"max_hr"`
	Calories              string `csv:"calories"`
	TotalOutputKJ         string `csv:"total_output_kj"`
	LeaderboardPercentile string `csv:"leaderboard_percentile"`
	AfibEvents            string `csv:"afib_events"`
	FirstAfib             string `csv:"first_afib"`
	LastAfib              string `csv:"last_afib"`
}

// resolveHeader returns the column for each header index (empty if the header
// is unknown or a duplicate), together with the schema of the source.
func resolveHeader(header []string) ([]workouts.Column, workouts.Schema) {
	columns := make([]workouts.Column, len(header))
	schema := make(workouts.Schema)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		column, ok := columnAliases[name]
		if !ok || schema.Has(column) {
			continue
		}
		columns[i] = column
		schema[column] = true
	}

	// Duration can always be derived when the end of a session is known.
	if schema.Has(workouts.ColumnEnd) {
		schema[workouts.ColumnDurationMin] = true
	}

	return columns, schema
}
