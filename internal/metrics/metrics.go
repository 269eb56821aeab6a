package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartprice_call_attempts_total",
			Help: "Attempts made by the retry wrapper, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	callsExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartprice_calls_exhausted_total",
			Help: "Calls that failed every attempt in their retry budget",
		},
		[]string{"operation"},
	)

	datesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartprice_dates_processed_total",
			Help: "Dates handled by the orchestrator, by property and outcome",
		},
		[]string{"property", "outcome"},
	)

	submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartprice_rate_submissions_total",
			Help: "Per-listing rate submissions, by property and status",
		},
		[]string{"property", "status"},
	)

	basePrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smartprice_base_price",
			Help: "Most recent base price quoted, by property and lead-time regime",
		},
		[]string{"property", "regime"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartprice_run_duration_seconds",
			Help:    "Wall time of a full pricing run per property",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"property"},
	)
)

func ObserveAttempt(operation, outcome string) {
	callAttempts.WithLabelValues(operation, outcome).Inc()
}

func ObserveExhausted(operation string) {
	callsExhausted.WithLabelValues(operation).Inc()
}

func ObserveDate(property, outcome string) {
	datesProcessed.WithLabelValues(property, outcome).Inc()
}

func ObserveSubmission(property, status string) {
	submissions.WithLabelValues(property, status).Inc()
}

func SetBasePrice(property, regime string, price float64) {
	basePrice.WithLabelValues(property, regime).Set(price)
}

func ObserveRun(property string, seconds float64) {
	runDuration.WithLabelValues(property).Observe(seconds)
}
