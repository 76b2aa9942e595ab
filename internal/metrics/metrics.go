package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "p2pex"

// Outcome labels
const (
	OutcomeMatched     = "matched"
	OutcomeNoLiquidity = "no_liquidity"
	OutcomeInvalid     = "invalid"
	OutcomeLimited     = "rate_limited"
	OutcomeApplied     = "applied"
	OutcomeRejected    = "rejected"
	OutcomeStale       = "stale"
	OutcomeError       = "error"
)

// Metrics holds the service's Prometheus collectors.
// A nil *Metrics is valid and records nothing.
// ⭐ SSOT: 메트릭 정의는 여기서만
type Metrics struct {
	registry *prometheus.Registry

	matchRequests   *prometheus.CounterVec
	matchDuration   prometheus.Histogram
	estimates       *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	snapshotOrders  prometheus.Gauge
	snapshotUpdated prometheus.Gauge
	refreshErrors   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	wsClients       prometheus.Gauge
}

// New creates collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		matchRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "matching",
				Name:      "requests_total",
				Help:      "Match requests by side and outcome",
			},
			[]string{"side", "outcome"},
		),
		matchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "matching",
				Name:      "duration_seconds",
				Help:      "Time spent selecting a counter-order",
				Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
			},
		),
		estimates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "matching",
				Name:      "estimates_total",
				Help:      "Quick trade estimates by side and outcome",
			},
			[]string{"side", "outcome"},
		),
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "transitions_total",
				Help:      "Order lifecycle transitions by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		snapshotOrders: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "orderbook",
				Name:      "snapshot_orders",
				Help:      "Orders in the current snapshot",
			},
		),
		snapshotUpdated: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "orderbook",
				Name:      "snapshot_updated_timestamp_seconds",
				Help:      "Unix time the current snapshot was fetched",
			},
		),
		refreshErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "orderbook",
				Name:      "refresh_errors_total",
				Help:      "Failed snapshot refreshes by source",
			},
			[]string{"source"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		wsClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "websocket_clients",
				Help:      "Connected live estimate clients",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveMatch records one match request
func (m *Metrics) ObserveMatch(side, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.matchRequests.WithLabelValues(side, outcome).Inc()
	if outcome == OutcomeMatched || outcome == OutcomeNoLiquidity {
		m.matchDuration.Observe(elapsed.Seconds())
	}
}

// ObserveEstimate records one estimate
func (m *Metrics) ObserveEstimate(side, outcome string) {
	if m == nil {
		return
	}
	m.estimates.WithLabelValues(side, outcome).Inc()
}

// ObserveTransition records one lifecycle transition attempt
func (m *Metrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, outcome).Inc()
}

// SetSnapshot records the size and fetch time of the live snapshot
func (m *Metrics) SetSnapshot(orders int, fetchedAt time.Time) {
	if m == nil {
		return
	}
	m.snapshotOrders.Set(float64(orders))
	m.snapshotUpdated.Set(float64(fetchedAt.Unix()))
}

// IncRefreshError records a failed snapshot refresh
func (m *Metrics) IncRefreshError(source string) {
	if m == nil {
		return
	}
	m.refreshErrors.WithLabelValues(source).Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
}

// AddWSClients adjusts the live websocket client gauge
func (m *Metrics) AddWSClients(delta int) {
	if m == nil {
		return
	}
	m.wsClients.Add(float64(delta))
}
