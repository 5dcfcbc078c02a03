package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "smartrag:session:"

// RedisStore persists each session as a single JSON document under one key.
// Per-session appends are serialized by an in-process lock.
type RedisStore struct {
	client *redis.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, locks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) lock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

func (s *RedisStore) load(ctx context.Context, sessionID string) ([]Turn, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}
	return turns, nil
}

// AppendTurn appends one turn to the session document.
func (s *RedisStore) AppendTurn(ctx context.Context, sessionID string, role Role, text string) error {
	l := s.lock(sessionID)
	l.Lock()
	defer l.Unlock()

	turns, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}
	turns = append(turns, Turn{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})

	data, err := json.Marshal(turns)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+sessionID, data, 0).Err()
}

// GetRecent returns the last n turns in order.
func (s *RedisStore) GetRecent(ctx context.Context, sessionID string, n int) ([]Turn, error) {
	turns, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

// StartNewSession allocates a fresh session id.
func (s *RedisStore) StartNewSession(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// DeleteSession removes the session document.
func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.locks, sessionID)
	s.mu.Unlock()
	return s.client.Del(ctx, redisKeyPrefix+sessionID).Err()
}
