// Package metrics defines the Prometheus collectors of the auth client. It is
// the single source of truth for metric names, labels and help strings.
//
// Build one Metrics per registry with New and hand it to the components
// through their WithMetrics options. A nil *Metrics records nothing, so
// components never need to check for it.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authclient"

// Refresh outcomes.
const (
	ResultSuccess    = "success"
	ResultFailure    = "failure"
	ResultSuperseded = "superseded"
)

type Metrics struct {
	// RefreshTotal counts settled refresh flights.
	// Label:
	//   - result: "success", "failure" or "superseded"
	RefreshTotal *prometheus.CounterVec

	// RefreshSharedTotal counts callers served by a refresh flight that more
	// than one caller waited on.
	RefreshSharedTotal prometheus.Counter

	// AuthOperationsTotal counts user facing auth operations.
	// Labels:
	//   - operation: "login", "register", "logout", "password_reset", …
	//   - result: "success" or "failure"
	AuthOperationsTotal *prometheus.CounterVec

	// BroadcastsSentTotal counts cross-tab events published by this tab.
	// Label:
	//   - type: "AUTH_LOGIN", "AUTH_LOGOUT" or "AUTH_REFRESH"
	BroadcastsSentTotal *prometheus.CounterVec

	// BroadcastsReceivedTotal counts cross-tab events received from other tabs.
	// Label:
	//   - type: "AUTH_LOGIN", "AUTH_LOGOUT" or "AUTH_REFRESH"
	BroadcastsReceivedTotal *prometheus.CounterVec

	// HTTPRequestsTotal counts gateway attempts, retries included.
	// Labels:
	//   - method: HTTP method
	//   - status: response status code, "0" when no response arrived
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRetriesTotal counts retried attempts of idempotent requests.
	// Label:
	//   - method: HTTP method
	HTTPRetriesTotal *prometheus.CounterVec

	// HTTPRequestDuration measures a single gateway attempt.
	// Label:
	//   - method: HTTP method
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Total number of token refresh flights, by result.",
			},
			[]string{"result"},
		),
		RefreshSharedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_shared_total",
				Help:      "Total number of refresh callers served by a flight already in progress.",
			},
		),
		AuthOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_operations_total",
				Help:      "Total number of auth operations, by operation and result.",
			},
			[]string{"operation", "result"},
		),
		BroadcastsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcasts_sent_total",
				Help:      "Total number of cross-tab events sent, by type.",
			},
			[]string{"type"},
		),
		BroadcastsReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcasts_received_total",
				Help:      "Total number of cross-tab events received, by type.",
			},
			[]string{"type"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP attempts made by the gateway, by method and status.",
			},
			[]string{"method", "status"},
		),
		HTTPRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_retries_total",
				Help:      "Total number of retried HTTP attempts, by method.",
			},
			[]string{"method"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of a single gateway HTTP attempt.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRefresh(result string) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRefreshShared() {
	if m == nil {
		return
	}
	m.RefreshSharedTotal.Inc()
}

func (m *Metrics) ObserveAuthOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.AuthOperationsTotal.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) ObserveBroadcastSent(eventType string) {
	if m == nil {
		return
	}
	m.BroadcastsSentTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveBroadcastReceived(eventType string) {
	if m == nil {
		return
	}
	m.BroadcastsReceivedTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveHTTPRequest(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveHTTPRetry(method string) {
	if m == nil {
		return
	}
	m.HTTPRetriesTotal.WithLabelValues(method).Inc()
}
