// Package improvement persists prompt-improvement artifacts mined from
// user feedback and selects one to splice into live analysis prompts.
package improvement

import (
	"context"
	"time"
)

// Improvement is a prompt-augmentation artifact. Improvements are never
// deleted, only deactivated.
type Improvement struct {
	ID             int64     `db:"id"             json:"id"`
	Type           string    `db:"improvement_type" json:"type"`
	PromptAddition string    `db:"prompt_addition"  json:"prompt_addition"`
	Reason         string    `db:"reason"         json:"reason"`
	Confidence     float64   `db:"confidence"     json:"confidence"`
	ImpactScore    float64   `db:"impact_score"   json:"impact_score"`
	AffectedCount  int       `db:"affected_count" json:"affected_count"`
	UsageCount     int       `db:"usage_count"    json:"usage_count"`
	IsActive       bool      `db:"is_active"      json:"is_active"`
	CreatedAt      time.Time `db:"created_at"     json:"created_at"`
}

// Store is the persistence contract for improvements. Select returns the
// active improvement with the lowest usage count, ties broken by most
// recent creation — round-robin fairness so no single improvement
// dominates every future prompt. A nil improvement with a nil error means
// none is active.
type Store interface {
	Insert(ctx context.Context, imp *Improvement) error
	Select(ctx context.Context) (*Improvement, error)
	RecordUsage(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	ListActive(ctx context.Context) ([]Improvement, error)
}
