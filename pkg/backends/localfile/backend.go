package localfile

import (
	"os"
	"path"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/irvinlim/apple-health-dashboard/pkg/backends"
	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
	"github.com/irvinlim/apple-health-dashboard/pkg/workouts"
)

var (
	outputPath string
)

// Backend LocalFile is used to store daily summaries in the local filesystem as
// JSON files, one file per target. Days already present in a file are replaced
// by newer exports of the same day, and all other days are kept.
type Backend struct {
	outputPath string
	summaries  map[string]*SummaryFile
	mtx        sync.RWMutex
}

var _ backends.Backend = &Backend{}

// NewBackend returns a Backend writing to the path set by --localfile.outputPath.
func NewBackend() (*Backend, error) {
	if outputPath == "" {
		return nil, errors.New("--localfile.outputPath is not set")
	}
	return NewBackendWithPath(outputPath)
}

// NewBackendWithPath returns a Backend writing to dir, loading any summaries
// already there.
func NewBackendWithPath(dir string) (*Backend, error) {
	backend := &Backend{outputPath: dir}
	summaries, err := backend.loadSummaries()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load summaries from %v", dir)
	}
	backend.summaries = summaries
	return backend, nil
}

func (b *Backend) Name() string {
	return "LocalFile"
}

// Write merges the report's daily summaries with existing data for the target,
// before writing it back to the filesystem.
func (b *Backend) Write(report *pipeline.Report, target string) error {
	if report == nil {
		return nil
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	var summaryFile SummaryFile
	summaryFile.FromReport(report, target)
	fileName := summaryFile.GetFileName()
	updatedDays := summaryFile.Days

	// Merge with existing data if present
	existing, ok := b.summaries[fileName]
	if ok {
		daysByDate := make(map[workouts.Date]pipeline.DailySummary, len(existing.Days))
		for _, day := range existing.Days {
			daysByDate[day.Date] = day
		}
		for _, day := range summaryFile.Days {
			daysByDate[day.Date] = day
		}

		// Convert back to slice and sort
		newDays := make([]pipeline.DailySummary, 0, len(daysByDate))
		for _, day := range daysByDate {
			newDays = append(newDays, day)
		}
		sort.Slice(newDays, func(i, j int) bool {
			return newDays[i].Date.Before(newDays[j].Date)
		})

		updatedDays = newDays
	}

	summaryFile.Days = updatedDays

	// Write back
	summaryFilePath := path.Join(b.outputPath, fileName)
	if err := b.writeSummaryFile(summaryFilePath, &summaryFile); err != nil {
		return errors.Wrapf(err, "cannot write summaries to %v", summaryFilePath)
	}
	b.summaries[fileName] = &summaryFile

	return nil
}

// Read returns the stored daily summaries for target.
func (b *Backend) Read(target string) []pipeline.DailySummary {
	b.mtx.RLock()
	defer b.mtx.RUnlock()
	summaryFile, ok := b.summaries[SummaryFile{Target: target}.GetFileName()]
	if !ok {
		return nil
	}
	return summaryFile.Days
}

func (b *Backend) loadSummaries() (map[string]*SummaryFile, error) {
	output := make(map[string]*SummaryFile)
	files, err := os.ReadDir(b.outputPath)
	if err != nil {
		// Directory doesn't exist, simply return empty map.
		if os.IsNotExist(err) {
			return output, nil
		}

		return nil, errors.Wrapf(err, "cannot read dir")
	}

	for _, file := range files {
		summaryFilePath := path.Join(b.outputPath, file.Name())
		summaryFile, err := b.loadSummaryFile(summaryFilePath)
		if err != nil {
			log.WithError(err).Warnf("could not read %v as summary file", summaryFilePath)
			continue
		}
		output[summaryFile.GetFileName()] = summaryFile
	}

	return output, nil
}

func (b *Backend) loadSummaryFile(name string) (*SummaryFile, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %v", name)
	}
	defer func() {
		_ = file.Close()
	}()

	var summaryFile SummaryFile
	dec := jsoniter.NewDecoder(file)
	if err := dec.Decode(&summaryFile); err != nil {
		return nil, err
	}

	return &summaryFile, nil
}

func (b *Backend) writeSummaryFile(name string, summaryFile *SummaryFile) error {
	// Ensure directories exist
	dirname := path.Dir(name)
	if err := os.MkdirAll(dirname, 0755); err != nil {
		return errors.Wrapf(err, "cannot makedirs for %v", dirname)
	}

	// Write file
	file, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "cannot open %v", name)
	}
	defer func() {
		_ = file.Close()
	}()

	// Encode as JSON
	enc := jsoniter.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(summaryFile)
}

func init() {
	pflag.StringVar(&outputPath, "localfile.outputPath", "",
		"Output path to write daily summaries, with one file per target. "+
			"Days already present in a file are replaced by newer exports of the same day.")
}
