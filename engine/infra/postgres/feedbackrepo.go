package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/lexiscope/lexiscope/engine/feedback"
)

// FeedbackRepo implements feedback.Store, feedback.AnalyticsStore, and
// feedback.PerformanceStore on PostgreSQL.
type FeedbackRepo struct {
	db DBInterface
}

func NewFeedbackRepo(db DBInterface) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

func (r *FeedbackRepo) Insert(ctx context.Context, rec *feedback.Record) (int64, error) {
	query, args, err := squirrel.Insert("feedback").
		Columns("session_id", "document_id", "analysis_id", "feedback_type",
			"rating", "feedback_text", "user_correction", "category", "created_at").
		Values(rec.SessionID, rec.DocumentID, rec.AnalysisID, rec.Type,
			rec.Rating, rec.Text, rec.Correction, rec.Category, rec.CreatedAt).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building feedback insert: %w", err)
	}
	var id int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting feedback: %w", err)
	}
	return id, nil
}

func (r *FeedbackRepo) RecentGroups(ctx context.Context, since time.Time, minFrequency int) ([]feedback.PatternGroup, error) {
	query, args, err := squirrel.Select("category", "feedback_type", "rating",
		"feedback_text", "user_correction", "COUNT(*) AS frequency").
		From("feedback").
		Where(squirrel.GtOrEq{"created_at": since}).
		GroupBy("category", "feedback_type", "rating", "feedback_text", "user_correction").
		Having("COUNT(*) >= ?", minFrequency).
		OrderBy("frequency DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building feedback group query: %w", err)
	}
	var groups []feedback.PatternGroup
	if err := pgxscan.Select(ctx, r.db, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("scanning feedback groups: %w", err)
	}
	return groups, nil
}

func (r *FeedbackRepo) RecentCorrections(ctx context.Context, since time.Time, limit int) ([]feedback.PatternGroup, error) {
	qb := squirrel.Select("user_correction", "COUNT(*) AS frequency").
		From("feedback").
		Where(squirrel.GtOrEq{"created_at": since}).
		Where(squirrel.NotEq{"user_correction": ""}).
		GroupBy("user_correction").
		OrderBy("frequency DESC").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building corrections query: %w", err)
	}
	var groups []feedback.PatternGroup
	if err := pgxscan.Select(ctx, r.db, &groups, query, args...); err != nil {
		return nil, fmt.Errorf("scanning corrections: %w", err)
	}
	return groups, nil
}

func (r *FeedbackRepo) MarkProcessed(ctx context.Context, before time.Time) (int64, error) {
	query, args, err := squirrel.Update("feedback").
		Set("is_processed", true).
		Where(squirrel.Eq{"is_processed": false}).
		Where(squirrel.LtOrEq{"created_at": before}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building processed update: %w", err)
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("marking feedback processed: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *FeedbackRepo) Summary(ctx context.Context) (*feedback.Summary, error) {
	query, args, err := squirrel.Select(
		"COALESCE(COUNT(*), 0) AS total",
		"COALESCE(AVG(rating), 0) AS average").
		From("feedback").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building summary query: %w", err)
	}
	summary := &feedback.Summary{CategoryCounts: make(map[string]int)}
	row := r.db.QueryRow(ctx, query, args...)
	if err := row.Scan(&summary.TotalFeedback, &summary.AverageRating); err != nil {
		return nil, fmt.Errorf("scanning feedback summary: %w", err)
	}

	catQuery, catArgs, err := squirrel.Select("category", "COUNT(*) AS frequency").
		From("feedback").
		GroupBy("category").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building category query: %w", err)
	}
	var counts []struct {
		Category  string `db:"category"`
		Frequency int    `db:"frequency"`
	}
	if err := pgxscan.Select(ctx, r.db, &counts, catQuery, catArgs...); err != nil {
		return nil, fmt.Errorf("scanning category counts: %w", err)
	}
	for _, c := range counts {
		summary.CategoryCounts[c.Category] = c.Frequency
	}
	return summary, nil
}

func (r *FeedbackRepo) InsertAnalytics(ctx context.Context, feedbackID int64, keyIssues map[string]any, suggestions []string, priority int) error {
	issuesJSON, err := json.Marshal(keyIssues)
	if err != nil {
		return fmt.Errorf("encoding key issues: %w", err)
	}
	suggestionsJSON, err := json.Marshal(suggestions)
	if err != nil {
		return fmt.Errorf("encoding suggestions: %w", err)
	}
	query, args, err := squirrel.Insert("feedback_analytics").
		Columns("feedback_id", "key_issues", "improvement_suggestions", "priority").
		Values(feedbackID, issuesJSON, suggestionsJSON, priority).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building analytics insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting feedback analytics: %w", err)
	}
	return nil
}

func (r *FeedbackRepo) UpsertPerformance(ctx context.Context, rec *feedback.PerformanceRecord) error {
	suggestionsJSON, err := json.Marshal(rec.Suggestions)
	if err != nil {
		return fmt.Errorf("encoding suggestions: %w", err)
	}
	query, args, err := squirrel.Insert("model_performance").
		Columns("analysis_type", "average_rating", "total_feedback_count",
			"improvement_suggestions", "last_updated").
		Values(rec.AnalysisType, rec.AverageRating, rec.TotalFeedback,
			suggestionsJSON, rec.LastUpdated).
		Suffix(`ON CONFLICT (analysis_type) DO UPDATE SET
			average_rating = EXCLUDED.average_rating,
			total_feedback_count = EXCLUDED.total_feedback_count,
			improvement_suggestions = EXCLUDED.improvement_suggestions,
			last_updated = EXCLUDED.last_updated`).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building performance upsert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting model performance: %w", err)
	}
	return nil
}
