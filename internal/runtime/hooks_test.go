package runtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aretw0/menuflow/internal/runtime"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_LifecycleHooks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var mu sync.Mutex
	var entered, left []string
	var requests, responses []*domain.HTTPEvent
	var steps []*domain.StepEvent

	hooks := domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			entered = append(entered, e.NodeID)
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			mu.Lock()
			defer mu.Unlock()
			left = append(left, e.NodeID)
		},
		OnHTTPRequest: func(ctx context.Context, e *domain.HTTPEvent) {
			requests = append(requests, e)
		},
		OnHTTPResponse: func(ctx context.Context, e *domain.HTTPEvent) {
			responses = append(responses, e)
		},
		OnStepComplete: func(ctx context.Context, e *domain.StepEvent) {
			steps = append(steps, e)
		},
	}

	req := httpNode("call", srv.URL, nil)
	req.OConnection = "ask"
	engine := newEngine(t, nil, []domain.Node{
		message("start", "Hi", "call"),
		req,
		input("ask", "name?", "name", "end"),
		message("end", "bye", ""),
	}, runtime.WithLifecycleHooks(hooks))
	out := &recorder{}

	send(t, engine, out, "u", "")
	assert.Equal(t, []string{"start", "call", "ask"}, entered)
	assert.Equal(t, []string{"start", "call"}, left, "input node is left when its answer arrives")

	require.Len(t, requests, 1)
	require.Len(t, responses, 1)
	assert.Equal(t, http.MethodGet, requests[0].Method)
	assert.Equal(t, http.StatusNoContent, responses[0].StatusCode)
	assert.Equal(t, domain.EventHTTPResponse, responses[0].Type)
	assert.Equal(t, "u", responses[0].UserID)

	send(t, engine, out, "u", "Ana")
	assert.Equal(t, []string{"start", "call", "ask", "end"}, entered)
	assert.Equal(t, []string{"start", "call", "ask", "end"}, left)

	require.Len(t, steps, 2)
	assert.Equal(t, "ask", steps[0].NodeID)
	assert.Equal(t, domain.StatusAwaitingInput, steps[0].Status)
	assert.Equal(t, "end", steps[1].NodeID)
	assert.NotEqual(t, steps[0].StepID, steps[1].StepID)
	assert.Equal(t, requests[0].StepID, steps[0].StepID)
	assert.NoError(t, steps[1].Err)
}

func TestEngine_StepCompleteReportsErrors(t *testing.T) {
	var got *domain.StepEvent
	engine := newEngine(t, nil, []domain.Node{
		switchNode("sw", "{{ x }}", domain.Case{ID: "1"}),
	}, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnStepComplete: func(ctx context.Context, e *domain.StepEvent) { got = e },
	}))

	_, err := engine.Process(context.Background(), domain.Inbound{UserID: "u"}, nil)
	require.Error(t, err)
	require.NotNil(t, got)
	assert.ErrorIs(t, got.Err, domain.ErrMissingDefaultCase)
}
