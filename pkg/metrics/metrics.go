// Package metrics defines the intake service's Prometheus metrics. All collectors are
// registered against the registry passed to New so tests can use private registries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "intake"

// Outcome label values.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeUnavailable = "unavailable"
	OutcomeAccept      = "accept"
	OutcomeClarify     = "clarify"
	OutcomeReject      = "reject"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	turns          *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	extractorCalls *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	activeSessions prometheus.Gauge
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Chat turns handled, by the phase the turn started in",
		}, []string{"phase"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answer_resolutions_total",
			Help:      "Answer resolution verdicts by field kind and outcome",
		}, []string{"kind", "outcome"}), // outcome=accept|clarify|reject
		extractorCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractor_calls_total",
			Help:      "Semantic extractor calls by operation and outcome",
		}, []string{"operation", "outcome"}), // outcome=success|unavailable
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Intake submissions by outcome and ticket mode",
		}, []string{"outcome", "mode"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held by the session store",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code",
		}, []string{"route", "method", "code"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveTurn counts one chat turn.
func (m *Metrics) ObserveTurn(phase string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(phase).Inc()
}

// ObserveResolution counts one resolution verdict. kind is "service" or the question type.
func (m *Metrics) ObserveResolution(kind, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(kind, outcome).Inc()
}

// ObserveExtractor counts one extractor call.
func (m *Metrics) ObserveExtractor(operation, outcome string) {
	if m == nil {
		return
	}
	m.extractorCalls.WithLabelValues(operation, outcome).Inc()
}

// ObserveSubmission counts one submission attempt.
func (m *Metrics) ObserveSubmission(outcome string, mock bool) {
	if m == nil {
		return
	}
	mode := "live"
	if mock {
		mode = "mock"
	}
	m.submissions.WithLabelValues(outcome, mode).Inc()
}

// SetActiveSessions reports the session store size.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, statusLabel(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func statusLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
