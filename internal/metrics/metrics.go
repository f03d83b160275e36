// Package metrics defines the Prometheus collectors for the daemon.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Scrape and accrual Prometheus metrics.
var (
	ScrapeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaswatch",
			Name:      "scrape_requests_total",
			Help:      "Total number of provider scrape attempts",
		},
		[]string{"source", "status"},
	)

	ScrapeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gaswatch",
			Name:      "scrape_duration_seconds",
			Help:      "Provider scrape duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"source"},
	)

	ScrapeSkippedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaswatch",
			Name:      "scrape_skipped_records_total",
			Help:      "Records skipped because they could not be parsed",
		},
		[]string{"source"},
	)

	ReadingValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gaswatch",
			Name:      "reading",
			Help:      "Current value of an exported reading",
		},
		[]string{"name"},
	)

	AccrualTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaswatch",
			Name:      "accrual_ticks_total",
			Help:      "Accrual engine ticks by outcome",
		},
		[]string{"outcome"}, // "rollover" / "steady" / "no_data"
	)

	AccrualRolloversTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gaswatch",
			Name:      "accrual_rollovers_total",
			Help:      "Day-boundary rollovers performed",
		},
	)

	StateStoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gaswatch",
			Name:      "state_store_errors_total",
			Help:      "State store operation failures",
		},
		[]string{"op"}, // "save" / "restore"
	)
)

var registered bool

// Register registers the Prometheus collectors. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(ScrapeRequestsTotal)
	prometheus.MustRegister(ScrapeDuration)
	prometheus.MustRegister(ScrapeSkippedRecordsTotal)
	prometheus.MustRegister(ReadingValue)
	prometheus.MustRegister(AccrualTicksTotal)
	prometheus.MustRegister(AccrualRolloversTotal)
	prometheus.MustRegister(StateStoreErrorsTotal)
	registered = true
}
