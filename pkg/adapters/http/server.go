// Package http is the webhook chat transport: inbound messages arrive as JSON
// posts, rendered replies are returned in the response and streamed to SSE
// subscribers.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/menuflow/internal/logging"
	"github.com/aretw0/menuflow/pkg/domain"
	"github.com/aretw0/menuflow/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxBodyBytes caps an inbound webhook payload.
const maxBodyBytes = 1 << 20

// Server handles the webhook routes.
type Server struct {
	Processor ports.Processor
	Streams   *StreamManager

	gatherer prometheus.Gatherer
	logger   *slog.Logger
	version  string
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for request errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics exposes the gatherer on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithVersion sets the version reported by GET /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// MessageResponse is the body returned by POST /messages.
type MessageResponse struct {
	Result   *domain.Result `json:"result,omitempty"`
	Messages []Outbound     `json:"messages"`
	Error    string         `json:"error,omitempty"`
}

// NewHandler creates the HTTP handler for the processor.
func NewHandler(p ports.Processor, opts ...Option) http.Handler {
	s := &Server{
		Processor: p,
		logger:    logging.NewNop(),
		version:   "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/messages", s.PostMessage)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return otelhttp.NewHandler(r, "menuflow.http")
}

// PostMessage handles the POST /messages request.
func (s *Server) PostMessage(w http.ResponseWriter, r *http.Request) {
	var in domain.Inbound
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostMessage: Invalid request body", "error", err)
		return
	}
	if in.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	collector := &collector{userID: in.UserID, streams: s.Streams}
	res, err := s.Processor.Process(r.Context(), in, collector)

	resp := MessageResponse{Result: res, Messages: collector.messages()}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = err.Error()
		if status >= http.StatusInternalServerError {
			s.logger.Error("PostMessage: step failed", "user_id", in.UserID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("PostMessage response encode failed", "error", err)
	}
}

func statusFor(err error) int {
	var (
		cfgErr *domain.ConfigurationError
		netErr *domain.NetworkError
		perErr *domain.PersistenceError
	)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case errors.As(err, &perErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"app":     "menuflow",
		"version": s.version,
	})
}

// SubscribeEvents handles the GET /events request (SSE of outbound messages).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(userID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// collector is the Messenger of one webhook call.
type collector struct {
	userID  string
	streams *StreamManager

	mu  sync.Mutex
	out []Outbound
}

func (c *collector) SendMessage(ctx context.Context, roomID, text string) error {
	msg := Outbound{UserID: c.userID, RoomID: roomID, Text: text}
	c.mu.Lock()
	c.out = append(c.out, msg)
	c.mu.Unlock()
	c.streams.Broadcast(msg)
	return nil
}

func (c *collector) messages() []Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Outbound, len(c.out))
	copy(out, c.out)
	return out
}
