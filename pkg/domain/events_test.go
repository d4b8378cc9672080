package domain_test

import (
	"context"
	"testing"

	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestComposeHooks(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) { calls = append(calls, "a:"+e.NodeID) },
	}
	b := domain.LifecycleHooks{
		OnNodeEnter:    func(ctx context.Context, e *domain.NodeEvent) { calls = append(calls, "b:"+e.NodeID) },
		OnStepComplete: func(ctx context.Context, e *domain.StepEvent) { calls = append(calls, "step") },
	}

	h := domain.ComposeHooks(a, domain.LifecycleHooks{}, b)
	h.OnNodeEnter(context.Background(), &domain.NodeEvent{NodeID: "n"})
	h.OnStepComplete(context.Background(), &domain.StepEvent{})

	assert.Equal(t, []string{"a:n", "b:n", "step"}, calls)
	assert.Nil(t, h.OnHTTPRequest)
}
