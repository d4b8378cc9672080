package runtime

import (
	"context"
	"time"

	"github.com/aretw0/menuflow/pkg/domain"
)

func (e *Engine) base(t domain.EventType, s *step) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      t,
		UserID:    s.session.UserID,
		StepID:    s.id,
	}
}

func (e *Engine) emitNodeEnter(ctx context.Context, s *step, node domain.Node) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: e.base(domain.EventNodeEnter, s),
		NodeID:    node.NodeID(),
		NodeType:  node.Kind(),
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, s *step, node domain.Node) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: e.base(domain.EventNodeLeave, s),
		NodeID:    node.NodeID(),
		NodeType:  node.Kind(),
	})
}

func (e *Engine) emitHTTP(ctx context.Context, s *step, hook func(context.Context, *domain.HTTPEvent), t domain.EventType, ev *domain.HTTPEvent) {
	if hook == nil {
		return
	}
	ev.EventBase = e.base(t, s)
	hook(ctx, ev)
}

func (e *Engine) emitStepComplete(ctx context.Context, stepID string, res *domain.Result, d time.Duration, err error) {
	if e.hooks.OnStepComplete == nil {
		return
	}
	e.hooks.OnStepComplete(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now(),
			Type:      domain.EventStepComplete,
			UserID:    res.UserID,
			StepID:    stepID,
		},
		NodeID:      res.NodeID,
		Status:      res.Status,
		Transitions: res.Transitions,
		Duration:    d,
		Err:         err,
	})
}
