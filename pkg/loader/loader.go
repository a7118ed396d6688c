package loader

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	apierrors "github.com/irvinlim/apple-health-dashboard/pkg/errors"
	timeutil "github.com/irvinlim/apple-health-dashboard/pkg/util/time"
	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

// Options controls how a workout log is normalized.
type Options struct {
	// RestrictToYear keeps only sessions starting in the given year. Zero disables it.
	RestrictToYear int

	// Location is used for timestamps without a zone offset. Defaults to UTC.
	Location *time.Location
}

// LoadFile loads the workout log at path.
func LoadFile(path string, opts Options) (*workouts.Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apierrors.WrapfLoad(err, "cannot open %v", path)
	}
	defer func() {
		_ = file.Close()
	}()

	return Load(file, path, opts)
}

// Load reads a delimited workout log from r. The source name is only used for
// logging and error messages.
//
// A missing header, a missing start or type column, or a structurally malformed
// row fails the whole load. Rows without a parseable start or a type are dropped
// and counted in Dataset.Dropped. Unparseable optional values are treated as absent.
func Load(r io.Reader, source string, opts Options) (*workouts.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apierrors.NewLoadError("%v has no header row", source)
	}
	if err != nil {
		return nil, apierrors.WrapfLoad(err, "cannot read header of %v", source)
	}

	columns, schema := resolveHeader(header)
	for _, required := range []workouts.Column{workouts.ColumnStart, workouts.ColumnType} {
		if !schema.Has(required) {
			return nil, apierrors.NewLoadError("%v is missing required column %v", source, required)
		}
	}

	logger := log.WithField("source", source)
	dataset := &workouts.Dataset{
		Source:  source,
		Records: make([]workouts.WorkoutRecord, 0),
		Schema:  schema,
	}

	parser, err := newRowParser(columns, opts.Location)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot create row decoder")
	}

	var skipped int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apierrors.WrapfLoad(err, "malformed row in %v", source)
		}
		line, _ := reader.FieldPos(0)

		record, err := parser.parse(row)
		if err != nil {
			dataset.Dropped++
			logger.WithField("line", line).WithError(err).Warn("dropping workout row")
			continue
		}

		if opts.RestrictToYear != 0 && record.Date.Year != opts.RestrictToYear {
			skipped++
			continue
		}

		dataset.Records = append(dataset.Records, *record)
	}

	fields := log.Fields{
		"records": len(dataset.Records),
		"dropped": dataset.Dropped,
		"skipped": skipped,
		"columns": schema.Columns(),
	}
	if len(dataset.Records) > 0 {
		first, last := dataset.Records[0].Start, dataset.Records[0].Start
		for _, record := range dataset.Records {
			first = timeutil.MinTimeNonZero(first, record.Start)
			last = timeutil.MaxTime(last, record.Start)
		}
		fields["range"] = timeutil.FormatTimeRange(first, last, time.DateTime)
	}
	logger.WithFields(fields).Info("loaded workout log")

	return dataset, nil
}

// rowParser binds the rows of one source onto rawRow, reusing a single decoder.
type rowParser struct {
	columns []workouts.Column
	loc     *time.Location
	raw     rawRow
	dec     *mapstructure.Decoder
}

func newRowParser(columns []workouts.Column, loc *time.Location) (*rowParser, error) {
	p := &rowParser{columns: columns, loc: loc}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "csv",
		Result:  &p.raw,
	})
	if err != nil {
		return nil, err
	}
	p.dec = dec
	return p, nil
}

func (p *rowParser) parse(row []string) (*workouts.WorkoutRecord, error) {
	values := make(map[string]string, len(p.columns))
	for i, value := range row {
		if i < len(p.columns) && p.columns[i] != "" {
			values[string(p.columns[i])] = value
		}
	}

	// Short rows leave fields unset, so clear the previous row first.
	p.raw = rawRow{}
	if err := p.dec.Decode(values); err != nil {
		return nil, errors.Wrapf(err, "cannot bind row")
	}
	raw, loc := p.raw, p.loc

	start, err := timeutil.ParseTimestamp(raw.Start, loc)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid start")
	}
	workoutType := strings.TrimSpace(raw.Type)
	if workoutType == "" {
		return nil, errors.New("empty type")
	}

	record := &workouts.WorkoutRecord{
		Start:                 start,
		End:                   parseOptionalTime(raw.End, loc),
		Date:                  workouts.DateOf(start),
		Type:                  workoutType,
		DurationMin:           parseOptionalFloat(raw.DurationMin),
		AvgHR:                 parseOptionalFloat(raw.AvgHR),
		MaxHR:                 parseOptionalFloat(raw.MaxHR),
		Calories:              parseOptionalFloat(raw.Calories),
		TotalOutputKJ:         parseOptionalFloat(raw.TotalOutputKJ),
		LeaderboardPercentile: parseOptionalFloat(raw.LeaderboardPercentile),
		AfibEvents:            parseOptionalCount(raw.AfibEvents),
		FirstAfib:             parseOptionalTime(raw.FirstAfib, loc),
		LastAfib:              parseOptionalTime(raw.LastAfib, loc),
	}

	// Compute duration of the workout if it was not logged.
	if record.DurationMin == nil && record.End != nil && record.End.After(start) {
		record.DurationMin = workouts.Float(record.End.Sub(start).Minutes())
	}

	return record, nil
}

func parseOptionalTime(s string, loc *time.Location) *time.Time {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := timeutil.ParseTimestamp(s, loc)
	if err != nil {
		return nil
	}
	return &t
}

func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseOptionalCount accepts integral floats such as "2.0", which is how counts
// with missing values are usually written out. Negative or implausibly large
// counts are absent.
func parseOptionalCount(s string) *int {
	v := parseOptionalFloat(s)
	if v == nil || *v != math.Trunc(*v) || *v < 0 || *v > math.MaxInt32 {
		return nil
	}
	return workouts.Int(int(*v))
}
