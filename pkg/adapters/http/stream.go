package http

import (
	"log/slog"
	"sync"

	"github.com/aretw0/menuflow/internal/logging"
)

// Outbound is one message delivered to a room, as seen by stream subscribers.
type Outbound struct {
	UserID string `json:"user_id"`
	RoomID string `json:"room_id"`
	Text   string `json:"text"`
}

// StreamManager fans outbound messages out to the SSE subscribers of a user.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Outbound]struct{} // UserID -> Set of Channels
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan Outbound]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for userID. The returned func
// unregisters and closes it.
func (sm *StreamManager) Subscribe(userID string) (<-chan Outbound, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Outbound, 16)
	if _, ok := sm.subscribers[userID]; !ok {
		sm.subscribers[userID] = make(map[chan Outbound]struct{})
	}
	sm.subscribers[userID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[userID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, userID)
				}
			}
		})
	}
}

// Broadcast never blocks: slow subscribers lose messages.
func (sm *StreamManager) Broadcast(msg Outbound) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[msg.UserID] {
		select {
		case ch <- msg:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping message", "user_id", msg.UserID)
		}
	}
}

// Subscribers returns the number of open streams for userID.
func (sm *StreamManager) Subscribers(userID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[userID])
}
