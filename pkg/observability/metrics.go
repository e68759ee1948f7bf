// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for grantqa's store queries, HTTP handlers and review workflow.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query status label values.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Metrics holds all Prometheus metrics for grantqa.
type Metrics struct {
	// Store metrics
	QueriesTotal    *prometheus.CounterVec
	QuerySeconds    *prometheus.HistogramVec
	ListFailures    *prometheus.CounterVec
	SearchResults   *prometheus.HistogramVec
	ReviewsTotal    *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPRequestSeconds *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantqa_store_queries_total",
				Help: "Total store queries by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		QuerySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grantqa_store_query_seconds",
				Help:    "Store query latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		ListFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantqa_list_failures_total",
				Help: "List requests answered with an empty page because the store failed",
			},
			[]string{"entity", "kind"},
		),
		SearchResults: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grantqa_search_results",
				Help:    "Number of results returned per federated search",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"scope"},
		),
		ReviewsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantqa_duplicate_reviews_total",
				Help: "Duplicate review decisions by outcome",
			},
			[]string{"state"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantqa_events_published_total",
				Help: "Events published to Redis",
			},
			[]string{"channel", "status"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "grantqa_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
		HTTPRequestSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "grantqa_http_request_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// NewNopMetrics returns metrics registered with a private registry.
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// RecordQuery records a completed store query.
func (m *Metrics) RecordQuery(operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(operation, status).Inc()
	m.QuerySeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordListFailure records a list request that degraded to an empty page.
func (m *Metrics) RecordListFailure(entity, kind string) {
	if m == nil {
		return
	}
	m.ListFailures.WithLabelValues(entity, kind).Inc()
}

// RecordSearch records the size of a federated search result.
func (m *Metrics) RecordSearch(scope string, results int) {
	if m == nil {
		return
	}
	m.SearchResults.WithLabelValues(scope).Observe(float64(results))
}

// RecordReview records a duplicate review decision.
func (m *Metrics) RecordReview(state string) {
	if m == nil {
		return
	}
	m.ReviewsTotal.WithLabelValues(state).Inc()
}

// RecordEvent records an event publish attempt.
func (m *Metrics) RecordEvent(channel, status string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(channel, status).Inc()
}

// RecordHTTPRequest records a served HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestSeconds.WithLabelValues(method, route).Observe(seconds)
}
