package metrics_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/menuflow/internal/metrics"
	"github.com/aretw0/menuflow/internal/runtime"
	"github.com/aretw0/menuflow/pkg/adapters/memory"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
	"github.com/aretw0/menuflow/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHooks_RecordSteps(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	menu, err := domain.NewMenu("m", "", []domain.Node{
		&domain.Message{Base: domain.Base{ID: "a", Type: domain.NodeTypeMessage, OConnection: "b"}, Text: "A"},
		&domain.Message{Base: domain.Base{ID: "b", Type: domain.NodeTypeMessage}, Text: "B"},
	})
	require.NoError(t, err)
	engine, err := runtime.NewEngine(menu, session.NewManager(memory.NewStore()), runtime.WithLifecycleHooks(m.Hooks()))
	require.NoError(t, err)

	out := ports.MessengerFunc(func(context.Context, string, string) error { return nil })
	_, err = engine.Process(context.Background(), domain.Inbound{UserID: "u", Body: "hi"}, out)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepsTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeVisits.WithLabelValues("message")))

	expected := `
# HELP menuflow_engine_step_transitions Number of transitions followed in one step
# TYPE menuflow_engine_step_transitions histogram
menuflow_engine_step_transitions_bucket{le="0"} 0
menuflow_engine_step_transitions_bucket{le="1"} 1
menuflow_engine_step_transitions_bucket{le="2"} 1
menuflow_engine_step_transitions_bucket{le="4"} 1
menuflow_engine_step_transitions_bucket{le="8"} 1
menuflow_engine_step_transitions_bucket{le="16"} 1
menuflow_engine_step_transitions_bucket{le="32"} 1
menuflow_engine_step_transitions_bucket{le="64"} 1
menuflow_engine_step_transitions_bucket{le="100"} 1
menuflow_engine_step_transitions_bucket{le="+Inf"} 1
menuflow_engine_step_transitions_sum 1
menuflow_engine_step_transitions_count 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "menuflow_engine_step_transitions"))
}

func TestHooks_HTTPCodes(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	h := m.Hooks()
	ctx := context.Background()

	h.OnHTTPResponse(ctx, &domain.HTTPEvent{StatusCode: 200, Duration: time.Millisecond})
	h.OnHTTPResponse(ctx, &domain.HTTPEvent{StatusCode: 404})
	h.OnHTTPResponse(ctx, &domain.HTTPEvent{Err: context.DeadlineExceeded})
	h.OnHTTPResponse(ctx, &domain.HTTPEvent{Err: errors.New("connection refused")})

	for _, code := range []string{"200", "404", "timeout", "error"} {
		assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues(code)), code)
	}
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPDuration), "one unlabeled histogram")
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", metrics.Outcome(nil))
	assert.Equal(t, "configuration", metrics.Outcome(&domain.ConfigurationError{}))
	assert.Equal(t, "network", metrics.Outcome(&domain.NetworkError{Err: errors.New("x")}))
	assert.Equal(t, "persistence", metrics.Outcome(&domain.PersistenceError{Err: errors.New("x")}))
	assert.Equal(t, "error", metrics.Outcome(errors.New("x")))
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	assert.Panics(t, func() { metrics.New(reg) })
}
