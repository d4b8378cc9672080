package ports

import "context"

// Messenger delivers rendered text to a chat room.
// Failures are reported to the engine, which logs them and keeps traversing.
type Messenger interface {
	SendMessage(ctx context.Context, roomID, text string) error
}

// MessengerFunc adapts a plain function to Messenger.
type MessengerFunc func(ctx context.Context, roomID, text string) error

func (f MessengerFunc) SendMessage(ctx context.Context, roomID, text string) error {
	return f(ctx, roomID, text)
}
