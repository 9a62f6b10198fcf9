// Package metrics provides Prometheus metrics for the gateway.
package metrics

import (
	"cmp"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Default histogram buckets for API latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Error kinds for GatewayErrors.
const (
	KindMissingCredential = "missing_credential"
	KindTransport         = "transport"
	KindDecode            = "decode"
	KindRequestBody       = "request_body"
	KindCanceled          = "canceled"
)

// Metrics holds all Prometheus metric collectors for the gateway.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	ResponseBytes    *prometheus.CounterVec

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec

	// GatewayErrors counts responses the gateway produced itself rather than relayed.
	GatewayErrors *prometheus.CounterVec

	prefixes []string
}

// New creates a Metrics instance with a custom registry and all collectors registered.
// prefixes bounds the path_prefix label; any other path is reported as "other".
func New(prefixes ...string) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "letterbox_gateway_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "letterbox_gateway_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "letterbox_gateway_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed.",
		}),

		ResponseBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "letterbox_gateway_response_bytes_total",
			Help: "Response body bytes written to clients.",
		}, []string{"path_prefix"}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "letterbox_gateway_upstream_request_duration_seconds",
			Help:    "Time to upstream response headers in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "letterbox_gateway_upstream_responses_total",
			Help: "Total upstream responses by method and status code.",
		}, []string{"method", "status_code"}),

		GatewayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "letterbox_gateway_errors_total",
			Help: "Responses generated by the gateway itself, by route and kind.",
		}, []string{"route", "kind"}),

		prefixes: longestFirst(prefixes),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.ResponseBytes,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.GatewayErrors,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// NormalizePath returns a bounded path label: the longest registered prefix
// that matches path, or "other".
func (m *Metrics) NormalizePath(path string) string {
	for _, prefix := range m.prefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return prefix
		}
	}
	return "other"
}

// longestFirst copies prefixes sorted by descending length so nested routes
// such as /api/movies/search win over /api/movies.
func longestFirst(prefixes []string) []string {
	out := slices.Clone(prefixes)
	slices.SortStableFunc(out, func(a, b string) int {
		return cmp.Compare(len(b), len(a))
	})
	return out
}
