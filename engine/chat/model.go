// Package chat answers follow-up questions about analyzed documents,
// grounding each turn in retrieved document context and recent history.
package chat

import (
	"context"
	"time"
)

// Message roles on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role      string    `db:"role"       json:"role"`
	Content   string    `db:"content"    json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Store persists chat turns per session. History returns the most recent
// messages in chronological order.
type Store interface {
	SaveMessage(ctx context.Context, sessionID, documentID, role, content string) error
	History(ctx context.Context, sessionID string, limit int) ([]Message, error)
	DeleteSession(ctx context.Context, sessionID string) error
}
