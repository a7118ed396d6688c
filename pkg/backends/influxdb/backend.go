package influxdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/irvinlim/apple-health-dashboard/pkg/backends"
	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

const (
	MeasurementDailySummary     = "daily_summary"
	MeasurementDailyTypeSummary = "daily_type_summary"
	MeasurementWorkout          = "workout"
)

// Backend InfluxDB is used to export reports into InfluxDB. Summaries are
// stored as one point per day (and per day and type) at midnight UTC, and
// workouts as one point per session at its start time.
type Backend struct {
	ctx        context.Context
	client     Client
	staticTags map[string]string
}

var _ backends.Backend = &Backend{}

func NewBackend(client Client) (backends.Backend, error) {
	backend := &Backend{
		ctx:        context.TODO(),
		client:     client,
		staticTags: make(map[string]string),
	}

	// Prepare static tags.
	for _, tag := range staticTags {
		tokens := strings.SplitN(tag, "=", 2)
		if len(tokens) != 2 {
			return nil, fmt.Errorf("invalid static tag %v", tag)
		}
		backend.staticTags[tokens[0]] = tokens[1]
	}

	return backend, nil
}

func (b *Backend) Name() string {
	return "InfluxDB"
}

func (b *Backend) Write(report *pipeline.Report, targetName string) error {
	// Properly handle nil reports.
	if report == nil {
		log.WithFields(log.Fields{
			"backend": b.Name(),
			"target":  targetName,
		}).Warn("empty report received, skipping")
		return nil
	}

	if err := b.writeSummaries(report, targetName); err != nil {
		return errors.Wrapf(err, "write summaries error")
	}

	if err := b.writeWorkouts(report.Records, targetName); err != nil {
		return errors.Wrapf(err, "write workouts error")
	}

	return nil
}

func (b *Backend) writeSummaries(report *pipeline.Report, targetName string) error {
	logger := log.WithFields(log.Fields{
		"backend":  b.Name(),
		"target":   targetName,
		"num_days": len(report.Daily),
	})

	startTime := time.Now()
	points := make([]*write.Point, 0, len(report.Daily)+len(report.ByType))

	tags := b.MakeTags(map[string]string{
		"target_name": targetName,
	})
	for _, summary := range report.Daily {
		points = append(points, b.createSummaryPoint(MeasurementDailySummary, tags, summary))
	}

	for _, summary := range report.ByType {
		tags := b.MakeTags(map[string]string{
			"target_name":  targetName,
			"workout_type": summary.Type,
		})
		points = append(points, b.createSummaryPoint(MeasurementDailyTypeSummary, tags, summary.DailySummary))
	}

	if len(points) == 0 {
		logger.Debug("no summary points to write")
		return nil
	}

	if err := b.client.WritePoints(b.ctx, BucketSummaries, points); err != nil {
		return errors.Wrapf(err, "write error for summaries")
	}

	logger.WithFields(log.Fields{
		"points":  len(points),
		"elapsed": time.Since(startTime),
	}).Info("write all summaries success")

	return nil
}

func (b *Backend) createSummaryPoint(
	measurement string, tags map[string]string, summary pipeline.DailySummary,
) *write.Point {
	fields := map[string]interface{}{
		pipeline.OutputWorkoutCount:  float64(summary.WorkoutCount),
		pipeline.OutputAvgHR:         summary.AvgHR,
		pipeline.OutputMaxHR:         summary.MaxHR,
		pipeline.OutputTotalDuration: summary.TotalDuration,
		pipeline.OutputTotalCalories: summary.TotalCalories,
		pipeline.OutputAvgOutput:     summary.AvgOutput,
		pipeline.OutputAvgPercentile: summary.AvgPercentile,
		pipeline.OutputAfibEvents:    float64(summary.AfibEvents),
	}
	return write.NewPoint(measurement, tags, fields, summary.Date.Time())
}

func (b *Backend) writeWorkouts(records []workouts.WorkoutRecord, targetName string) error {
	logger := log.WithFields(log.Fields{
		"backend":      b.Name(),
		"target":       targetName,
		"num_workouts": len(records),
	})

	startTime := time.Now()
	points := make([]*write.Point, 0, len(records))
	for i := range records {
		point := b.createWorkoutPoint(&records[i], targetName)
		if point != nil {
			points = append(points, point)
		}
	}

	if len(points) == 0 {
		logger.Debug("no workout points to write")
		return nil
	}

	if err := b.client.WritePoints(b.ctx, BucketWorkouts, points); err != nil {
		return errors.Wrapf(err, "write error for workouts")
	}

	logger.WithFields(log.Fields{
		"points":  len(points),
		"elapsed": time.Since(startTime),
	}).Info("write all workouts success")

	return nil
}

func (b *Backend) createWorkoutPoint(record *workouts.WorkoutRecord, targetName string) *write.Point {
	fields := make(map[string]interface{})
	for _, column := range workouts.NumericColumns {
		if v, ok := record.Value(column); ok {
			fields[string(column)] = v
		}
	}

	// Skip if there are no fields to write
	if len(fields) == 0 {
		return nil
	}

	tags := b.MakeTags(map[string]string{
		"target_name":  targetName,
		"workout_type": record.Type,
	})
	return write.NewPoint(MeasurementWorkout, tags, fields, record.Start)
}

// MakeTags returns a map of tags that can be safely modified.
// Tags with empty values are left out.
func (b *Backend) MakeTags(additional map[string]string) map[string]string {
	tags := make(map[string]string, len(b.staticTags))
	for k, v := range b.staticTags {
		if v != "" {
			tags[k] = v
		}
	}
	for k, v := range additional {
		if v != "" {
			tags[k] = v
		}
	}
	return tags
}
