package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-orchestrator/types"
)

const (
	MetricsNamespace = "orchestrator"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	testExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "test_executions_total",
		Help:      "Count of containerized test executions",
	}, []string{
		"run_id",
		"name",
		"result",
	})

	reportTestsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "report_tests_total",
		Help:      "Total test cases in the combined report",
	}, []string{
		"run_id",
	})

	reportFailures = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "report_failures",
		Help:      "Failed test cases in the combined report",
	}, []string{
		"run_id",
	})

	reportErrors = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "report_errors",
		Help:      "Errored test cases in the combined report",
	}, []string{
		"run_id",
	})

	reportSkipped = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "report_skipped",
		Help:      "Skipped test cases in the combined report",
	}, []string{
		"run_id",
	})

	runDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of the orchestrator run",
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
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
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

func RecordTestRun(runID string, name string, result types.TestStatus) {
	if !isValidResult(result) {
		log.Error("RecordTestRun - invalid result", "result", result)
		return
	}
	if Debug {
		log.Debug("metric inc",
			"m", "test_executions_total",
			"run_id", runID,
			"name", name,
			"result", result)
	}
	testExecutionsTotal.WithLabelValues(runID, name, string(result)).Inc()
}

// RecordSummary publishes the combined report's counters for one run.
func RecordSummary(runID string, tests, failures, errors, skipped int, duration time.Duration) {
	reportTestsTotal.WithLabelValues(runID).Set(float64(tests))
	reportFailures.WithLabelValues(runID).Set(float64(failures))
	reportErrors.WithLabelValues(runID).Set(float64(errors))
	reportSkipped.WithLabelValues(runID).Set(float64(skipped))
	runDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
