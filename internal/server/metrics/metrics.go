// Package metrics exposes the server's Prometheus counters on a private
// registry. All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokenkeeper"

type Metrics struct {
	registry           *prometheus.Registry
	tokenVerifications *prometheus.CounterVec
	sessionOperations  *prometheus.CounterVec
	ledgerSwept        prometheus.Counter
	httpRequests       *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verifications_total",
			Help:      "Token verifications by token kind and result.",
		}, []string{"kind", "result"}),
		sessionOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ledgerSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_swept_total",
			Help:      "Expired refresh-token ledger entries removed by the sweeper.",
		}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.tokenVerifications,
		m.sessionOperations,
		m.ledgerSwept,
		m.httpRequests,
	)

	return m
}

// ObserveVerification counts one token verification. result is "ok" or the
// failure class.
func (m *Metrics) ObserveVerification(kind, result string) {
	if m == nil {
		return
	}
	m.tokenVerifications.WithLabelValues(kind, result).Inc()
}

// ObserveOperation counts one session operation by outcome.
func (m *Metrics) ObserveOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.sessionOperations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) AddSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ledgerSwept.Add(float64(n))
}

func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
