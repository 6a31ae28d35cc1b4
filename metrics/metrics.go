package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

const (
	MetricsNamespace = "standalone_runner"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	runResults = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_results",
		Help:      "Result of standalone test runs",
	}, []string{
		"run_id",
		"result",
	})

	testsRanTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_ran_total",
		Help:      "Number of tests dispatched as child processes",
	}, []string{
		"run_id",
	})

	testsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_skipped_total",
		Help:      "Number of tests excluded by the blocklist",
	}, []string{
		"run_id",
	})

	testsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "tests_failed_total",
		Help:      "Number of ran tests that exited non-zero",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of standalone test runs",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug().
			Str("m", "errors_total").
			Str("error", error).
			Msg("metric inc")
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordRun emits the aggregate metrics for one completed run.
func RecordRun(
	runID string,
	result string,
	ran int,
	skipped int,
	failed int,
	duration time.Duration,
) {
	if Debug {
		log.Debug().
			Str("m", "run_results").
			Str("run_id", runID).
			Str("result", result).
			Int("ran", ran).
			Int("skipped", skipped).
			Int("failed", failed).
			Msg("metric record")
	}
	runResults.WithLabelValues(runID, result).Set(1)
	testsRanTotal.WithLabelValues(runID).Add(float64(ran))
	testsSkippedTotal.WithLabelValues(runID).Add(float64(skipped))
	testsFailedTotal.WithLabelValues(runID).Add(float64(failed))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}
