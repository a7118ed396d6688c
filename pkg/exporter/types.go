package exporter

import (
	"github.com/irvinlim/apple-health-dashboard/pkg/pipeline"
)

// ReportWithTarget augments a target name to the report, which helps to identify
// the person the exported data belongs to. This is useful when exporting data
// from multiple users' workout logs into the same backend.
type ReportWithTarget struct {
	*pipeline.Report
	TargetName string
}
