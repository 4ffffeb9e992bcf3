package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/lexiscope/lexiscope/engine/improvement"
)

// ImprovementRepo implements improvement.Store on PostgreSQL.
type ImprovementRepo struct {
	db DBInterface
}

func NewImprovementRepo(db DBInterface) *ImprovementRepo {
	return &ImprovementRepo{db: db}
}

func (r *ImprovementRepo) Insert(ctx context.Context, imp *improvement.Improvement) error {
	query, args, err := squirrel.Insert("improvements").
		Columns("improvement_type", "prompt_addition", "reason", "confidence",
			"impact_score", "affected_count", "usage_count", "is_active", "created_at").
		Values(imp.Type, imp.PromptAddition, imp.Reason, imp.Confidence,
			imp.ImpactScore, imp.AffectedCount, imp.UsageCount, imp.IsActive, imp.CreatedAt).
		Suffix("RETURNING id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building improvement insert: %w", err)
	}
	if err := r.db.QueryRow(ctx, query, args...).Scan(&imp.ID); err != nil {
		return fmt.Errorf("inserting improvement: %w", err)
	}
	return nil
}

// Select returns the active improvement with the lowest usage count, ties
// broken by most recent creation. nil with a nil error means none active.
func (r *ImprovementRepo) Select(ctx context.Context) (*improvement.Improvement, error) {
	query, args, err := squirrel.Select("id", "improvement_type", "prompt_addition",
		"reason", "confidence", "impact_score", "affected_count", "usage_count",
		"is_active", "created_at").
		From("improvements").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("usage_count ASC", "created_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building improvement select: %w", err)
	}
	var imp improvement.Improvement
	if err := pgxscan.Get(ctx, r.db, &imp, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning improvement: %w", err)
	}
	return &imp, nil
}

func (r *ImprovementRepo) RecordUsage(ctx context.Context, id int64) error {
	query, args, err := squirrel.Update("improvements").
		Set("usage_count", squirrel.Expr("usage_count + 1")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building usage update: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("recording improvement usage: %w", err)
	}
	return nil
}

func (r *ImprovementRepo) SetActive(ctx context.Context, id int64, active bool) error {
	query, args, err := squirrel.Update("improvements").
		Set("is_active", active).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building active update: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("setting improvement active flag: %w", err)
	}
	return nil
}

func (r *ImprovementRepo) ListActive(ctx context.Context) ([]improvement.Improvement, error) {
	query, args, err := squirrel.Select("id", "improvement_type", "prompt_addition",
		"reason", "confidence", "impact_score", "affected_count", "usage_count",
		"is_active", "created_at").
		From("improvements").
		Where(squirrel.Eq{"is_active": true}).
		OrderBy("created_at DESC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building active list query: %w", err)
	}
	var out []improvement.Improvement
	if err := pgxscan.Select(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("scanning active improvements: %w", err)
	}
	return out, nil
}
