package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/lexiscope/lexiscope/engine/chat"
)

// ChatRepo implements chat.Store on PostgreSQL.
type ChatRepo struct {
	db DBInterface
}

func NewChatRepo(db DBInterface) *ChatRepo {
	return &ChatRepo{db: db}
}

func (r *ChatRepo) SaveMessage(ctx context.Context, sessionID, documentID, role, content string) error {
	query, args, err := squirrel.Insert("chat_history").
		Columns("session_id", "document_id", "role", "content", "created_at").
		Values(sessionID, documentID, role, content, time.Now()).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building chat insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting chat message: %w", err)
	}
	return nil
}

// History returns the limit most recent messages in chronological order.
func (r *ChatRepo) History(ctx context.Context, sessionID string, limit int) ([]chat.Message, error) {
	inner := squirrel.Select("role", "content", "created_at").
		From("chat_history").
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		inner = inner.Limit(uint64(limit))
	}
	innerSQL, args, err := inner.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building chat history query: %w", err)
	}
	query := fmt.Sprintf("SELECT role, content, created_at FROM (%s) recent ORDER BY created_at ASC", innerSQL)
	var messages []chat.Message
	if err := pgxscan.Select(ctx, r.db, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("scanning chat history: %w", err)
	}
	return messages, nil
}

func (r *ChatRepo) DeleteSession(ctx context.Context, sessionID string) error {
	query, args, err := squirrel.Delete("chat_history").
		Where(squirrel.Eq{"session_id": sessionID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building chat delete: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting chat session: %w", err)
	}
	return nil
}
