package conversation

import (
	"context"
	"time"
)

// Role labels one side of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session's append-only log.
type Turn struct {
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the conversation store contract. Appends within a session are
// serialized; concurrent requests for the same session take a per-session
// lock.
type Store interface {
	// AppendTurn appends one turn to a session log, creating the session
	// if needed.
	AppendTurn(ctx context.Context, sessionID string, role Role, text string) error

	// GetRecent returns the last n turns of a session in order.
	GetRecent(ctx context.Context, sessionID string, n int) ([]Turn, error)

	// StartNewSession allocates a fresh session id. Existing sessions are
	// left intact.
	StartNewSession(ctx context.Context) (string, error)

	// DeleteSession removes a session and its turns.
	DeleteSession(ctx context.Context, sessionID string) error
}
