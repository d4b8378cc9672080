// Package redis provides Redis-backed session storage and distributed locking.
//
// Layout per user (with the default prefix):
//
//	menuflow:session:<user>  JSON-encoded domain.Session
//	menuflow:vars:<user>     hash of variable name -> value
//	menuflow:index           sorted set of users, scored by expiry
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aretw0/menuflow/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "menuflow:"

// Store implements ports.SessionStore and ports.Committer on Redis.
type Store struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires idle sessions and their variables after ttl.
// Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewFromClient creates a store over an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New connects to addr and verifies the connection.
func New(ctx context.Context, addr, password string, db int, opts ...Option) (*Store, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return NewFromClient(client, opts...), nil
}

// Client returns the underlying client (shared with the Locker).
func (s *Store) Client() backend.UniversalClient {
	return s.client
}

func (s *Store) sessionKey(userID string) string { return s.prefix + "session:" + userID }
func (s *Store) varsKey(userID string) string    { return s.prefix + "vars:" + userID }
func (s *Store) indexKey() string                { return s.prefix + "index" }

func (s *Store) score() float64 {
	if s.ttl > 0 {
		return float64(time.Now().Add(s.ttl).Unix())
	}
	return float64(time.Now().Unix())
}

// LoadSession retrieves the session of a user.
func (s *Store) LoadSession(ctx context.Context, userID string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(userID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", userID, err)
	}
	return &session, nil
}

// SaveSession persists the session and refreshes its index entry.
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	return s.Commit(ctx, session, nil)
}

// Commit writes the session and variable changes in one MULTI/EXEC.
func (s *Store) Commit(ctx context.Context, session *domain.Session, vars map[string]string) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(session.UserID), data, s.ttl)
		if len(vars) > 0 {
			values := make([]any, 0, len(vars)*2)
			for k, v := range vars {
				values = append(values, k, v)
			}
			pipe.HSet(ctx, s.varsKey(session.UserID), values...)
		}
		if s.ttl > 0 {
			pipe.Expire(ctx, s.varsKey(session.UserID), s.ttl)
		}
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: s.score(), Member: session.UserID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis commit: %w", err)
	}
	return nil
}

// LoadVariable retrieves one variable.
func (s *Store) LoadVariable(ctx context.Context, userID, name string) (string, error) {
	v, err := s.client.HGet(ctx, s.varsKey(userID), name).Result()
	if errors.Is(err, backend.Nil) {
		return "", domain.ErrVariableNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget: %w", err)
	}
	return v, nil
}

// SaveVariable persists one variable.
func (s *Store) SaveVariable(ctx context.Context, userID, name, value string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.HSet(ctx, s.varsKey(userID), name, value)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.varsKey(userID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

// LoadVariables retrieves every variable of a user.
func (s *Store) LoadVariables(ctx context.Context, userID string) (map[string]string, error) {
	vars, err := s.client.HGetAll(ctx, s.varsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	return vars, nil
}

// DeleteSession removes the session, its variables and its index entry.
func (s *Store) DeleteSession(ctx context.Context, userID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(userID), s.varsKey(userID))
		pipe.ZRem(ctx, s.indexKey(), userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// ListSessions returns the users with a live session. Expired index entries
// are removed lazily.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	if s.ttl > 0 {
		now := strconv.FormatInt(time.Now().Unix(), 10)
		if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", "("+now).Err(); err != nil {
			return nil, fmt.Errorf("redis index cleanup: %w", err)
		}
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	return ids, nil
}
