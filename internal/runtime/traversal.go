package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/menuflow/internal/variables"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// step is the working state of one Process call. It mutates a copy of the
// session and a variable transaction; nothing is durable until commit.
type step struct {
	engine  *Engine
	menu    *domain.Menu
	id      string
	session *domain.Session
	tx      *variables.Tx
	out     ports.Messenger

	sent        []string
	transitions int
}

// run executes the state machine from the session's position until it
// suspends on an Input node or reaches a terminal node.
func (s *step) run(ctx context.Context, body string) error {
	e := s.engine

	if _, ok := s.menu.Node(s.session.CurrentNodeID); !ok {
		// The flow was reloaded and no longer has the user's node.
		entry := e.entry(s.menu)
		e.logger.WarnContext(ctx, "Session positioned at unknown node, restarting at entry",
			"user_id", s.session.UserID,
			"node_id", s.session.CurrentNodeID,
			"entry", entry,
		)
		s.session.CurrentNodeID = entry
		s.session.Status = domain.StatusRunning
	}

	if s.session.WaitingForInput() {
		node, err := s.current()
		if err != nil {
			return err
		}
		s.session.Status = domain.StatusRunning

		if in, ok := node.(*domain.Input); ok {
			s.tx.Set(in.Variable, body)
			next, err := s.afterInput(ctx, in)
			if err != nil {
				return err
			}
			e.emitNodeLeave(ctx, s, in)
			if next == "" {
				return nil
			}
			if err := s.moveTo(in, next); err != nil {
				return err
			}
		}
	}

	for {
		node, err := s.current()
		if err != nil {
			return err
		}
		e.emitNodeEnter(ctx, s, node)

		next, suspend, err := s.execute(ctx, node)
		if err != nil {
			return err
		}
		if suspend {
			s.session.Status = domain.StatusAwaitingInput
			return nil
		}
		e.emitNodeLeave(ctx, s, node)
		if next == "" {
			return nil
		}
		if err := s.moveTo(node, next); err != nil {
			return err
		}
	}
}

// current returns the node the session is positioned at.
func (s *step) current() (domain.Node, error) {
	node, ok := s.menu.Node(s.session.CurrentNodeID)
	if !ok || node == nil {
		return nil, &domain.ConfigurationError{
			NodeID: s.session.CurrentNodeID,
			Reason: "node does not exist",
			Err:    domain.ErrUnknownNode,
		}
	}
	return node, nil
}

// execute runs the behavior of one node while RUNNING.
func (s *step) execute(ctx context.Context, node domain.Node) (next string, suspend bool, err error) {
	ctx, span := s.engine.tracer.Start(ctx, "menuflow.node", trace.WithAttributes(
		attribute.String("menuflow.node_id", node.NodeID()),
		attribute.String("menuflow.node_type", string(node.Kind())),
	))
	defer span.End()

	switch n := node.(type) {
	case *domain.Message:
		s.send(ctx, n.Text)
		return n.Next(), false, nil
	case *domain.Input:
		s.send(ctx, n.Text)
		return "", true, nil
	case *domain.Switch:
		discriminant := s.engine.renderer.Render(ctx, n.Validation, s.tx.All())
		next, err := s.resolve(ctx, n, discriminant, n.Cases)
		return next, false, err
	case *domain.HTTPRequest:
		next, err := s.httpRequest(ctx, n)
		if err != nil {
			span.RecordError(err)
		}
		return next, false, err
	default:
		return "", false, &domain.ConfigurationError{NodeID: node.NodeID(), Reason: fmt.Sprintf("unsupported node type %q", node.Kind())}
	}
}

// afterInput decides where a captured input goes: its o_connection, or else
// the node's own branch.
func (s *step) afterInput(ctx context.Context, in *domain.Input) (string, error) {
	if in.Next() != "" {
		return in.Next(), nil
	}
	if !in.HasCases() {
		return "", nil
	}
	discriminant := s.engine.renderer.Render(ctx, in.Validation, s.tx.All())
	return s.resolve(ctx, in, discriminant, in.Cases)
}

// moveTo positions the session at next, which must exist in the Menu.
func (s *step) moveTo(from domain.Node, next string) error {
	if _, ok := s.menu.Node(next); !ok {
		return &domain.ConfigurationError{
			NodeID: from.NodeID(),
			Reason: fmt.Sprintf("o_connection %q does not resolve", next),
			Err:    domain.ErrUnknownNode,
		}
	}
	s.transitions++
	if s.transitions > s.engine.maxTransitions {
		return &domain.ConfigurationError{
			NodeID: from.NodeID(),
			Reason: fmt.Sprintf("more than %d transitions in one step", s.engine.maxTransitions),
			Err:    domain.ErrTooManyTransitions,
		}
	}
	s.session.CurrentNodeID = next
	return nil
}

// send renders text and hands it to the messenger. Delivery failures are
// logged and do not stop traversal.
func (s *step) send(ctx context.Context, text string) {
	rendered := s.engine.renderer.Render(ctx, text, s.tx.All())
	if rendered == "" {
		return
	}
	s.sent = append(s.sent, rendered)
	if s.out == nil {
		return
	}
	if err := s.out.SendMessage(ctx, s.session.RoomID, rendered); err != nil {
		s.engine.logger.WarnContext(ctx, "Failed to send message",
			"user_id", s.session.UserID,
			"room_id", s.session.RoomID,
			"node_id", s.session.CurrentNodeID,
			"error", err,
		)
	}
}
