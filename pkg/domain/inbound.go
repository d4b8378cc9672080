package domain

// Inbound is a chat message received from the transport.
type Inbound struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
	Body   string `json:"body"`
}
