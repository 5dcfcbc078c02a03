package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps session logs in process memory with a lock per session.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	turns []Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*session)}
}

func (s *MemoryStore) session(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}

// AppendTurn appends one turn, serialized per session.
func (s *MemoryStore) AppendTurn(ctx context.Context, sessionID string, role Role, text string) error {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = append(sess.turns, Turn{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
		Timestamp: time.Now(),
	})
	return nil
}

// GetRecent returns the last n turns in order.
func (s *MemoryStore) GetRecent(ctx context.Context, sessionID string, n int) ([]Turn, error) {
	sess := s.session(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	turns := sess.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// StartNewSession allocates a fresh session id.
func (s *MemoryStore) StartNewSession(ctx context.Context) (string, error) {
	return uuid.NewString(), nil
}

// DeleteSession removes a session and its turns.
func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
