package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrSessionNotFound is returned when a user has no stored session.
var ErrSessionNotFound = errors.New("session not found")

// ErrVariableNotFound is returned when a user has no stored value for a variable.
var ErrVariableNotFound = errors.New("variable not found")

// ErrUnknownNode is returned when a node reference does not resolve in the Menu.
var ErrUnknownNode = errors.New("unknown node")

// ErrMissingDefaultCase is returned when no case matches and there is no default case.
var ErrMissingDefaultCase = errors.New("no matching case and no default case")

// ErrTooManyTransitions is returned when one traversal step follows more
// successors than the engine allows (usually a cycle of message nodes).
var ErrTooManyTransitions = errors.New("too many transitions in one step")

// ErrInvalidInput is returned when an inbound message body is rejected before
// traversal (too large, invalid UTF-8).
var ErrInvalidInput = errors.New("invalid input")

// ErrResponseTooLarge is returned when an HTTP response body exceeds the
// engine's size limit.
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// ConfigurationError is a flow definition problem found at traversal time.
// It aborts the step and leaves the user where they were.
type ConfigurationError struct {
	NodeID string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error at node '%s': %s", e.NodeID, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NetworkError is an HTTP request node failure (timeout, connection error).
type NetworkError struct {
	NodeID string
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("http request at node '%s' (%s %s) failed: %v", e.NodeID, e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the request failed because a deadline expired.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// PersistenceError is a failure to load or commit a user's state.
type PersistenceError struct {
	UserID string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed for user '%s': %v", e.UserID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ParseError is an HTTP response body that could not be used for variable
// extraction. It is logged and never fails the step.
type ParseError struct {
	NodeID string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("response of node '%s' not extracted: %v", e.NodeID, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
