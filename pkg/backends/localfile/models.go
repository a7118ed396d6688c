package localfile

import (
	"strings"

	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
)

// SummaryFile is the on-disk form of a target's daily summaries.
type SummaryFile struct {
	Target string                  `json:"target,omitempty"`
	Days   []pipeline.DailySummary `json:"days"`
}

func (f SummaryFile) GetFileName() string {
	filename := "daily_summary"
	if f.Target != "" {
		filename = strings.ReplaceAll(f.Target, "/", "_") + "_" + filename
	}
	return filename + ".json"
}

func (f *SummaryFile) FromReport(report *pipeline.Report, target string) {
	f.Target = target
	f.Days = report.Daily
}
