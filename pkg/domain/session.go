package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the traversal state of a session.
type Status string

const (
	// StatusRunning means the engine is free to execute the current node.
	StatusRunning Status = "running"
	// StatusAwaitingInput means the current node is an Input node waiting for
	// the user's next message.
	StatusAwaitingInput Status = "awaiting_input"
)

// Session is the persisted position of one user in the Menu.
// Variables are stored alongside it but managed by the variable store.
type Session struct {
	UserID string `json:"user_id"`
	// Generation is fixed when the session is created. A session recreated
	// after a reset or expiry gets a new one, so its Revision never collides
	// with the previous incarnation's.
	Generation    string    `json:"generation,omitempty"`
	RoomID        string    `json:"room_id,omitempty"`
	CurrentNodeID string    `json:"current_node_id"`
	Status        Status    `json:"status"`
	Revision      int64     `json:"revision"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSession creates a running session positioned at the entry node.
func NewSession(userID, entryNodeID string) *Session {
	return &Session{
		UserID:        userID,
		Generation:    uuid.NewString(),
		CurrentNodeID: entryNodeID,
		Status:        StatusRunning,
	}
}

// WaitingForInput reports whether the next message is captured as input.
func (s *Session) WaitingForInput() bool {
	return s.Status == StatusAwaitingInput
}

// Clone returns a copy safe for mutation.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
