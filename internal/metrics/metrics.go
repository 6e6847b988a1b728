package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels completed operations.
	OutcomeSuccess = "success"
	// OutcomeError labels failed operations (pipeline or dependency issues).
	OutcomeError = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bedcast",
			Name:      "predictions_total",
			Help:      "Total prediction requests handled, partitioned by contract and outcome.",
		},
		[]string{"contract", "outcome"},
	)

	predictionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bedcast",
			Name:      "prediction_seconds",
			Help:      "Prediction latency in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"contract"},
	)

	snapshotRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bedcast",
			Name:      "aggregate_snapshot_refresh_total",
			Help:      "Rolling-window snapshot rebuilds, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bedcast",
			Name:      "aggregate_fallback_total",
			Help:      "Aggregate lookups answered per fallback tier.",
		},
		[]string{"tier"},
	)

	discrepanciesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bedcast",
			Name:      "reconstruction_discrepancies_total",
			Help:      "Unmatched or implausible event-log entries absorbed during reconstruction.",
		},
		[]string{"class"},
	)
)

// Register attaches bedcast collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		snapshotRefreshTotal,
		fallbackTotal,
		discrepanciesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records a prediction duration and outcome for a contract.
func ObservePrediction(contract string, duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	predictionsTotal.WithLabelValues(contract, label).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.WithLabelValues(contract).Observe(duration.Seconds())
}

// ObserveSnapshotRefresh counts a rolling-window snapshot rebuild attempt.
func ObserveSnapshotRefresh(outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	snapshotRefreshTotal.WithLabelValues(label).Inc()
}

// ObserveFallback counts a lookup answered by the given fallback tier.
func ObserveFallback(tier string) {
	fallbackTotal.WithLabelValues(tier).Inc()
}

// AddDiscrepancies accumulates reconstruction discrepancies for an event class.
func AddDiscrepancies(class string, n int) {
	if n <= 0 {
		return
	}
	discrepanciesTotal.WithLabelValues(class).Add(float64(n))
}
