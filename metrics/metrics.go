package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/loomrun/loomrun/types"
)

const (
	MetricsNamespace = "loomrun"
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

	decodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "decode_errors_total",
		Help:      "Count of malformed structured-output lines skipped during discovery",
	}, []string{
		"suite",
	})

	failingCasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "failing_cases_total",
		Help:      "Count of failing cases recorded in the ledger",
	}, []string{
		"run_id",
		"suite",
	})

	checkpointsReusedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "checkpoints_reused_total",
		Help:      "Count of checkpoint files reused instead of regenerated",
	}, []string{
		"run_id",
		"suite",
	})

	rerunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "reruns_total",
		Help:      "Count of diagnostic re-run tasks by outcome",
	}, []string{
		"run_id",
		"suite",
		"outcome",
	})

	suiteTestsTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_tests",
		Help:      "Per-suite test counts from the terminal suite event",
	}, []string{
		"run_id",
		"suite",
		"result",
	})

	suiteDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "suite_duration_seconds",
		Help:      "Wall-clock duration of a suite's discovery pass",
	}, []string{
		"run_id",
		"suite",
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

func RecordDecodeError(suite string) {
	decodeErrorsTotal.WithLabelValues(suite).Inc()
}

func RecordFailingCase(runID, suite, test string) {
	if Debug {
		log.Debug("metric inc",
			"m", "failing_cases_total",
			"run_id", runID,
			"suite", suite,
			"test", test)
	}
	failingCasesTotal.WithLabelValues(runID, suite).Inc()
}

func RecordCheckpointReused(runID, suite string) {
	checkpointsReusedTotal.WithLabelValues(runID, suite).Inc()
}

func RecordRerun(runID, suite, outcome string) {
	if Debug {
		log.Debug("metric inc",
			"m", "reruns_total",
			"run_id", runID,
			"suite", suite,
			"outcome", outcome)
	}
	rerunsTotal.WithLabelValues(runID, suite, outcome).Inc()
}

func RecordSuiteFinished(runID, suite string, counts types.SuiteCounts, elapsed time.Duration) {
	suiteTestsTotal.WithLabelValues(runID, suite, "passed").Set(float64(counts.Passed))
	suiteTestsTotal.WithLabelValues(runID, suite, "failed").Set(float64(counts.Failed))
	suiteTestsTotal.WithLabelValues(runID, suite, "ignored").Set(float64(counts.Ignored))
	suiteTestsTotal.WithLabelValues(runID, suite, "measured").Set(float64(counts.Measured))
	suiteTestsTotal.WithLabelValues(runID, suite, "filtered_out").Set(float64(counts.FilteredOut))
	suiteDuration.WithLabelValues(runID, suite).Set(elapsed.Seconds())
}
