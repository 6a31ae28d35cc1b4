package harness

import (
	"github.com/lightci/standalone-runner/metrics"
	"github.com/lightci/standalone-runner/runner"
)

// MetricsReporter is responsible for reporting metrics from run results.
type MetricsReporter interface {
	ReportResults(runID string, result *runner.Result)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults reports the run results to metrics systems.
func (r *DefaultMetricsReporter) ReportResults(runID string, result *runner.Result) {
	stats := result.Stats()
	outcome := "pass"
	if stats.Failed > 0 {
		outcome = "fail"
	}
	metrics.RecordRun(
		runID,
		outcome,
		stats.Ran,
		stats.Skipped,
		stats.Failed,
		result.Duration(),
	)
}
