// Package metrics holds the gateway's Prometheus collectors.
//
// All methods are safe to call on a nil *Metrics, so components can be built
// without metrics in tests.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "session_gateway"

type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	upstreamStatus  *prometheus.CounterVec
	proxyFailures   prometheus.Counter
	authFailures    prometheus.Counter
	cookiesDropped  prometheus.Counter
	gateDecisions   *prometheus.CounterVec
	debouncedTotal  prometheus.Counter
	sessionsIssued  prometheus.Counter
	sessionsRevoked prometheus.Counter
	probeOutcomes   *prometheus.CounterVec
}

func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route, method and status",
		}, []string{"route", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		upstreamStatus: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_responses_total",
			Help:      "Upstream responses seen by the proxy, by status code",
		}, []string{"status"}),

		proxyFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_transport_failures_total",
			Help:      "Proxied calls that got no upstream response",
		}),

		authFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_auth_failures_total",
			Help:      "Upstream 401s normalized by the proxy",
		}),

		cookiesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cookies_dropped_total",
			Help:      "Incoming cookies dropped because they were not valid header values",
		}),

		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_decisions_total",
			Help:      "Edge access gate decisions",
		}, []string{"decision"}),

		debouncedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_debounced_total",
			Help:      "Duplicate mutating calls suppressed by the debounce lock",
		}),

		sessionsIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Sessions written by the session endpoint",
		}),

		sessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_revoked_total",
			Help:      "Revocations and clear-all calls handled",
		}),

		probeOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_probes_total",
			Help:      "Session probe outcomes",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) UpstreamResponse(status int) {
	if m == nil {
		return
	}
	m.upstreamStatus.WithLabelValues(strconv.Itoa(status)).Inc()
	if status == 401 {
		m.authFailures.Inc()
	}
}

func (m *Metrics) ProxyFailure() {
	if m == nil {
		return
	}
	m.proxyFailures.Inc()
}

func (m *Metrics) CookiesDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.cookiesDropped.Add(float64(n))
}

func (m *Metrics) GateDecision(decision string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) Debounced() {
	if m == nil {
		return
	}
	m.debouncedTotal.Inc()
}

func (m *Metrics) SessionIssued() {
	if m == nil {
		return
	}
	m.sessionsIssued.Inc()
}

func (m *Metrics) SessionRevoked() {
	if m == nil {
		return
	}
	m.sessionsRevoked.Inc()
}

func (m *Metrics) Probe(outcome string) {
	if m == nil {
		return
	}
	m.probeOutcomes.WithLabelValues(outcome).Inc()
}
