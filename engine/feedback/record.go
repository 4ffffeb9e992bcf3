// Package feedback mines stored user feedback for recurring issue and
// correction patterns and converts them into prompt-improvement artifacts.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexiscope/lexiscope/engine/core"
)

// Feedback types accepted at the ingestion boundary.
const (
	TypeRating     = "rating"
	TypeCorrection = "correction"
	TypeComment    = "comment"
)

// Record is one piece of user feedback. Records are immutable once stored;
// only the IsProcessed flag flips after a background pass consumes them.
type Record struct {
	ID          int64          `db:"id"           json:"id"`
	SessionID   string         `db:"session_id"   json:"session_id,omitempty"`
	DocumentID  string         `db:"document_id"  json:"document_id,omitempty"`
	AnalysisID  string         `db:"analysis_id"  json:"analysis_id,omitempty"`
	Type        string         `db:"feedback_type" json:"type"`
	Rating      *int           `db:"rating"       json:"rating,omitempty"`
	Text        string         `db:"feedback_text" json:"text,omitempty"`
	Correction  string         `db:"user_correction" json:"correction,omitempty"`
	Category    string         `db:"category"     json:"category"`
	Metadata    map[string]any `db:"-"            json:"metadata,omitempty"`
	IsProcessed bool           `db:"is_processed" json:"is_processed"`
	CreatedAt   time.Time      `db:"created_at"   json:"created_at"`
}

func (r *Record) Validate() error {
	if r.Type == "" {
		return core.NewError(errors.New("feedback type is required"), core.ErrCodeInvalidInput, nil)
	}
	if r.Category == "" {
		return core.NewError(errors.New("feedback category is required"), core.ErrCodeInvalidInput, nil)
	}
	if r.Rating != nil && (*r.Rating < 1 || *r.Rating > 5) {
		return core.NewError(
			fmt.Errorf("rating %d out of range", *r.Rating),
			core.ErrCodeInvalidInput,
			map[string]any{"rating": *r.Rating},
		)
	}
	return nil
}

// PatternGroup is one row of the grouped-feedback query: identical
// (category, type, rating, text, correction) tuples collapsed with their
// occurrence count.
type PatternGroup struct {
	Category   string `db:"category"`
	Type       string `db:"feedback_type"`
	Rating     *int   `db:"rating"`
	Text       string `db:"feedback_text"`
	Correction string `db:"user_correction"`
	Frequency  int    `db:"frequency"`
}

// Store is the persistence contract the mining engine and the ingestion
// boundary need. Insert failures must propagate to the caller; the insert
// acknowledges user-visible feedback. MarkProcessed flips IsProcessed on
// every unprocessed record created at or before the cutoff and reports how
// many it flipped; a successful mining cycle calls it with its start time.
type Store interface {
	Insert(ctx context.Context, rec *Record) (int64, error)
	RecentGroups(ctx context.Context, since time.Time, minFrequency int) ([]PatternGroup, error)
	RecentCorrections(ctx context.Context, since time.Time, limit int) ([]PatternGroup, error)
	MarkProcessed(ctx context.Context, before time.Time) (int64, error)
	Summary(ctx context.Context) (*Summary, error)
}

// Summary aggregates stored feedback for the analytics endpoint.
type Summary struct {
	TotalFeedback  int            `json:"total_feedback"`
	AverageRating  float64        `json:"average_rating"`
	CategoryCounts map[string]int `json:"category_counts"`
}

// AnalyticsStore receives best-effort per-feedback analytics rows. Write
// failures are logged, never surfaced.
type AnalyticsStore interface {
	InsertAnalytics(ctx context.Context, feedbackID int64, keyIssues map[string]any, suggestions []string, priority int) error
}

// PerformanceStore upserts the aggregate performance record each mining
// cycle.
type PerformanceStore interface {
	UpsertPerformance(ctx context.Context, rec *PerformanceRecord) error
}

// PerformanceRecord is the aggregate row keyed by a fixed analysis-type
// label.
type PerformanceRecord struct {
	AnalysisType  string    `db:"analysis_type"`
	AverageRating float64   `db:"average_rating"`
	TotalFeedback int       `db:"total_feedback_count"`
	Suggestions   []string  `db:"improvement_suggestions"`
	LastUpdated   time.Time `db:"last_updated"`
}
