package postgres

import (
	"context"
	"fmt"

	"github.com/lexiscope/lexiscope/pkg/logger"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL,
		char_count INTEGER NOT NULL,
		page_count INTEGER NOT NULL DEFAULT 0,
		truncated BOOLEAN NOT NULL DEFAULT FALSE,
		content TEXT NOT NULL,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_history (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL,
		document_id TEXT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_history_session
		ON chat_history (session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT,
		document_id TEXT,
		analysis_id TEXT,
		feedback_type TEXT NOT NULL,
		rating INTEGER,
		feedback_text TEXT NOT NULL DEFAULT '',
		user_correction TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		is_processed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feedback_created
		ON feedback (created_at)`,
	`CREATE TABLE IF NOT EXISTS feedback_analytics (
		id BIGSERIAL PRIMARY KEY,
		feedback_id BIGINT NOT NULL REFERENCES feedback (id),
		key_issues JSONB NOT NULL DEFAULT '{}',
		improvement_suggestions JSONB NOT NULL DEFAULT '[]',
		priority INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS improvements (
		id BIGSERIAL PRIMARY KEY,
		improvement_type TEXT NOT NULL,
		prompt_addition TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		impact_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		affected_count INTEGER NOT NULL DEFAULT 0,
		usage_count INTEGER NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_improvements_active
		ON improvements (is_active, usage_count, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS model_performance (
		analysis_type TEXT PRIMARY KEY,
		average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		total_feedback_count INTEGER NOT NULL DEFAULT 0,
		improvement_suggestions JSONB NOT NULL DEFAULT '[]',
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// Migrate applies the schema. Statements are idempotent, so running on
// every startup is safe.
func Migrate(ctx context.Context, db DBInterface) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying migration %d: %w", i, err)
		}
	}
	logger.FromContext(ctx).Info("database schema up to date", "statements", len(migrations))
	return nil
}
