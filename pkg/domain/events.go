package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventHTTPRequest  EventType = "http_request"
	EventHTTPResponse EventType = "http_response"
	EventStepComplete EventType = "step_complete"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id"`
	StepID    string    `json:"step_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	NodeID   string   `json:"node_id"`
	NodeType NodeType `json:"node_type"`
}

// HTTPEvent represents an outbound request issued by an HTTPRequest node.
type HTTPEvent struct {
	EventBase
	NodeID     string        `json:"node_id"`
	Method     string        `json:"method"`
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
	Err        error         `json:"-"`
}

// StepEvent summarizes one traversal step.
type StepEvent struct {
	EventBase
	NodeID      string        `json:"node_id"`
	Status      Status        `json:"status"`
	Transitions int           `json:"transitions"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnHTTPRequest  func(context.Context, *HTTPEvent)
	OnHTTPResponse func(context.Context, *HTTPEvent)
	OnStepComplete func(context.Context, *StepEvent)
}

// ComposeHooks returns hooks that call each of hooks in order.
func ComposeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range hooks {
		out.OnNodeEnter = chain(out.OnNodeEnter, h.OnNodeEnter)
		out.OnNodeLeave = chain(out.OnNodeLeave, h.OnNodeLeave)
		out.OnHTTPRequest = chain(out.OnHTTPRequest, h.OnHTTPRequest)
		out.OnHTTPResponse = chain(out.OnHTTPResponse, h.OnHTTPResponse)
		out.OnStepComplete = chain(out.OnStepComplete, h.OnStepComplete)
	}
	return out
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
