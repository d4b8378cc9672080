// Package metrics provides Prometheus metrics for the traversal engine,
// recorded through its lifecycle hooks.
package metrics

import (
	"context"
	"errors"
	"strconv"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "menuflow"

// Metrics holds the engine collectors.
type Metrics struct {
	// StepsTotal counts traversal steps by outcome.
	StepsTotal *prometheus.CounterVec
	// StepDuration tracks step latency, lock wait included.
	StepDuration prometheus.Histogram
	// StepTransitions tracks how many successors one step followed.
	StepTransitions prometheus.Histogram
	// NodeVisits counts node entries by type.
	NodeVisits *prometheus.CounterVec
	// HTTPRequests counts HTTPRequest node calls by status code or error kind.
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration tracks HTTPRequest node latency.
	HTTPDuration prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StepsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "steps_total",
				Help:      "Total number of traversal steps by outcome",
			},
			[]string{"outcome"}, // "ok", "configuration", "network", "persistence", "error"
		),
		StepDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "step_duration_seconds",
				Help:      "Traversal step duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		StepTransitions: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "step_transitions",
				Help:      "Number of transitions followed in one step",
				Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 100},
			},
		),
		NodeVisits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "node_visits_total",
				Help:      "Total number of node visits by node type",
			},
			[]string{"type"},
		),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http_node",
				Name:      "requests_total",
				Help:      "Total number of outbound requests by status code",
			},
			[]string{"code"},
		),
		HTTPDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http_node",
				Name:      "request_duration_seconds",
				Help:      "Outbound request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// Hooks returns lifecycle hooks recording into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			m.NodeVisits.WithLabelValues(string(e.NodeType)).Inc()
		},
		OnHTTPResponse: func(_ context.Context, e *domain.HTTPEvent) {
			m.HTTPDuration.Observe(e.Duration.Seconds())
			m.HTTPRequests.WithLabelValues(code(e)).Inc()
		},
		OnStepComplete: func(_ context.Context, e *domain.StepEvent) {
			m.StepsTotal.WithLabelValues(Outcome(e.Err)).Inc()
			m.StepDuration.Observe(e.Duration.Seconds())
			m.StepTransitions.Observe(float64(e.Transitions))
		},
	}
}

func code(e *domain.HTTPEvent) string {
	if e.Err != nil {
		if (&domain.NetworkError{Err: e.Err}).Timeout() {
			return "timeout"
		}
		return "error"
	}
	return strconv.Itoa(e.StatusCode)
}

// Outcome classifies a step error for the steps_total label.
func Outcome(err error) string {
	var (
		cfgErr *domain.ConfigurationError
		netErr *domain.NetworkError
		perErr *domain.PersistenceError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &cfgErr):
		return "configuration"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &perErr):
		return "persistence"
	}
	return "error"
}
