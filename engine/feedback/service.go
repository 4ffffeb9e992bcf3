package feedback

import (
	"context"
	"time"

	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

// Service is the ingestion boundary for user feedback. The primary insert
// must succeed for the submission to be acknowledged; the derived analytics
// row is best-effort.
type Service struct {
	store     Store
	analytics AnalyticsStore
}

func NewService(store Store, analytics AnalyticsStore) *Service {
	return &Service{store: store, analytics: analytics}
}

// Submit validates and persists one feedback record and returns its id
// together with immediate improvement suggestions for the caller.
func (s *Service) Submit(ctx context.Context, rec *Record) (int64, []string, error) {
	if err := rec.Validate(); err != nil {
		return 0, nil, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	id, err := s.store.Insert(ctx, rec)
	if err != nil {
		return 0, nil, core.NewError(err, core.ErrCodePersistence, map[string]any{
			"category": rec.Category,
		})
	}

	suggestions := suggestImprovements(rec)
	s.recordAnalytics(ctx, id, rec, suggestions)
	return id, suggestions, nil
}

// Analytics returns the aggregate feedback summary.
func (s *Service) Analytics(ctx context.Context) (*Summary, error) {
	summary, err := s.store.Summary(ctx)
	if err != nil {
		return nil, core.NewError(err, core.ErrCodePersistence, nil)
	}
	return summary, nil
}

func (s *Service) recordAnalytics(ctx context.Context, id int64, rec *Record, suggestions []string) {
	if s.analytics == nil {
		return
	}
	keyIssues := map[string]any{}
	if bucket, ok := ClassifyIssue(rec.Text); ok {
		keyIssues["issue"] = bucket
	}
	if bucket, ok := ClassifyCorrection(rec.Correction); ok {
		keyIssues["correction"] = bucket
	}
	priority := 3
	if rec.Rating != nil && *rec.Rating <= 2 {
		priority = 1
	}
	if err := s.analytics.InsertAnalytics(ctx, id, keyIssues, suggestions, priority); err != nil {
		logger.FromContext(ctx).Warn("feedback analytics write failed",
			"feedback_id", id, "error", err)
	}
}

// suggestImprovements derives immediate advice from a single record. Low
// ratings and corrections each contribute one suggestion.
func suggestImprovements(rec *Record) []string {
	var out []string
	if rec.Rating != nil && *rec.Rating <= 2 {
		if bucket, ok := ClassifyIssue(rec.Text); ok {
			out = append(out, "Review "+bucket+" of generated analyses")
		} else {
			out = append(out, "Review overall analysis quality for this document type")
		}
	}
	if rec.Correction != "" {
		if bucket, ok := ClassifyCorrection(rec.Correction); ok {
			out = append(out, "Apply "+bucket+" corrections to future analyses")
		}
	}
	return out
}
