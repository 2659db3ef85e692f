// Package metrics declares the Prometheus collectors of the trainer and the
// prediction service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	Namespace        = "housing"
	TrainerSubsystem = "trainer"
	PredictSubsystem = "predict"

	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// Variables declared for metrics.
var (
	TrainerRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: TrainerSubsystem,
		Name:      "runs_total",
		Help:      "Counter of the number of training runs by final status.",
	}, []string{"status"})

	TrainerStageFailureCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: TrainerSubsystem,
		Name:      "stage_failures_total",
		Help:      "Counter of the number of training runs aborted in each stage.",
	}, []string{"stage"})

	TrainerRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: TrainerSubsystem,
		Name:      "run_duration_seconds",
		Help:      "Histogram of the duration of training runs.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	TrainerLastMetric = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: TrainerSubsystem,
		Name:      "last_metric",
		Help:      "Evaluation metrics of the last successful training run.",
	}, []string{"metric"})

	PredictRequestCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: PredictSubsystem,
		Name:      "requests_total",
		Help:      "Counter of the number of prediction requests by status.",
	}, []string{"status"})

	PredictDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: PredictSubsystem,
		Name:      "duration_seconds",
		Help:      "Histogram of the time spent in the regressor per request.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
