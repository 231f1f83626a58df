package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibroker_requests_total",
			Help: "Total number of broker requests by task kind and outcome",
		},
		[]string{"task_kind", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aibroker_request_duration_seconds",
			Help:    "End-to-end pipeline request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task_kind"},
	)

	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibroker_cache_hits_total",
			Help: "Fingerprint cache hits by match kind (exact, fuzzy, miss)",
		},
		[]string{"match"},
	)

	selectionScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aibroker_selection_score",
			Help:    "Router selection confidence per chosen model",
			Buckets: prometheus.LinearBuckets(0, 0.1, 10),
		},
		[]string{"model"},
	)

	costDollars = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibroker_cost_dollars_total",
			Help: "Accumulated provider spend by model",
		},
		[]string{"model"},
	)

	budgetAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibroker_budget_alerts_total",
			Help: "Budget alerts raised by severity",
		},
		[]string{"severity"},
	)

	initOnce sync.Once
)

// InitMetrics registers every broker metric with the default Prometheus
// registry. Safe to call more than once; only the first call registers.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			requestsTotal,
			requestDuration,
			cacheHitsTotal,
			selectionScore,
			costDollars,
			budgetAlertsTotal,
		)
	})
}

// MetricsHandler exposes the registered metrics in Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func RecordRequest(taskKind, outcome string, duration time.Duration) {
	requestsTotal.WithLabelValues(taskKind, outcome).Inc()
	requestDuration.WithLabelValues(taskKind).Observe(duration.Seconds())
}

func RecordCacheResult(match string) {
	cacheHitsTotal.WithLabelValues(match).Inc()
}

func RecordSelection(model string, confidence float64) {
	selectionScore.WithLabelValues(model).Observe(confidence)
}

func RecordCost(model string, dollars float64) {
	costDollars.WithLabelValues(model).Add(dollars)
}

func RecordBudgetAlert(severity string) {
	budgetAlertsTotal.WithLabelValues(severity).Inc()
}
