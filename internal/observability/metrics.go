package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	sessionsCreatedTotal   prometheus.Counter
	sessionsCompletedTotal prometheus.Counter
	openSessions           prometheus.Gauge

	eventsAppendedTotal *prometheus.CounterVec

	storeErrorsTotal *prometheus.CounterVec

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			sessionsCreatedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "ledger_sessions_created_total",
					Help: "Total sessions inserted (idempotent duplicates excluded).",
				},
			),
			sessionsCompletedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "ledger_sessions_completed_total",
					Help: "Total session completions applied, including re-completions.",
				},
			),
			openSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "ledger_open_sessions",
					Help: "Sessions not yet completed, as of the last sweep.",
				},
			),
			eventsAppendedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ledger_events_appended_total",
					Help: "Total events appended by type.",
				},
				[]string{"type"},
			),
			storeErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "ledger_store_errors_total",
					Help: "Total storage-layer failures by operation.",
				},
				[]string{"op"},
			),
			requestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request duration in seconds by route.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"route"},
			),
			requestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total HTTP requests by route and status class.",
				},
				[]string{"route", "status"},
			),
		}

		prometheus.MustRegister(
			m.sessionsCreatedTotal,
			m.sessionsCompletedTotal,
			m.openSessions,
			m.eventsAppendedTotal,
			m.storeErrorsTotal,
			m.requestDuration,
			m.requestsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordSessionCreated() {
	getMetrics().sessionsCreatedTotal.Inc()
}

func RecordSessionCompleted() {
	getMetrics().sessionsCompletedTotal.Inc()
}

func SetOpenSessions(count int) {
	getMetrics().openSessions.Set(float64(count))
}

func RecordEventAppended(eventType string) {
	getMetrics().eventsAppendedTotal.WithLabelValues(eventType).Inc()
}

func RecordStoreError(op string) {
	getMetrics().storeErrorsTotal.WithLabelValues(op).Inc()
}

func ObserveRequest(route, status string, duration time.Duration) {
	m := getMetrics()
	m.requestsTotal.WithLabelValues(route, status).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
