package feedback

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/lexiscope/lexiscope/engine/improvement"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

const (
	// PerformanceKey is the fixed aggregate row updated each cycle.
	PerformanceKey = "system_overall"

	defaultWindow        = 30 * 24 * time.Hour
	defaultMinFrequency  = 5
	defaultThreshold     = 0.7
	issueNormalizer      = 20.0
	correctionNormalizer = 10.0
	correctionImpact     = 0.8
	correctionsLimit     = 20
	neutralRating        = 3.0
)

// Rules parameterize a mining cycle.
type Rules struct {
	Window       time.Duration
	MinFrequency int
	Threshold    float64
}

func DefaultRules() Rules {
	return Rules{
		Window:       defaultWindow,
		MinFrequency: defaultMinFrequency,
		Threshold:    defaultThreshold,
	}
}

// Engine runs the periodic pattern-mining cycle: group recent feedback,
// classify it into buckets, synthesize improvement candidates, activate
// the ones that cross the confidence threshold, and refresh the aggregate
// performance record.
type Engine struct {
	store        Store
	improvements improvement.Store
	performance  PerformanceStore
	rules        Rules
}

func NewEngine(store Store, improvements improvement.Store, performance PerformanceStore, rules Rules) *Engine {
	if rules.Window <= 0 {
		rules.Window = defaultWindow
	}
	if rules.MinFrequency <= 0 {
		rules.MinFrequency = defaultMinFrequency
	}
	if rules.Threshold <= 0 {
		rules.Threshold = defaultThreshold
	}
	return &Engine{store: store, improvements: improvements, performance: performance, rules: rules}
}

type bucketStats struct {
	frequency int
	ratingSum int
	rated     int
}

// RunCycle executes one mining pass. Any step failure aborts the cycle and
// is reported to the caller; partial results are never applied.
func (e *Engine) RunCycle(ctx context.Context) error {
	log := logger.FromContext(ctx)
	started := time.Now()
	since := started.Add(-e.rules.Window)

	groups, err := e.store.RecentGroups(ctx, since, e.rules.MinFrequency)
	if err != nil {
		return fmt.Errorf("loading recent feedback groups: %w", err)
	}
	corrections, err := e.store.RecentCorrections(ctx, since, correctionsLimit)
	if err != nil {
		return fmt.Errorf("loading recent corrections: %w", err)
	}

	candidates := append(e.mineIssues(groups), e.mineCorrections(corrections)...)

	activated := 0
	for i := range candidates {
		cand := &candidates[i]
		if cand.Confidence < e.rules.Threshold {
			log.Debug("improvement below activation threshold",
				"type", cand.Type, "confidence", cand.Confidence)
			continue
		}
		cand.IsActive = true
		if err := e.improvements.Insert(ctx, cand); err != nil {
			return fmt.Errorf("storing improvement %q: %w", cand.Type, err)
		}
		activated++
	}

	if err := e.refreshPerformance(ctx, groups, candidates); err != nil {
		return fmt.Errorf("updating performance record: %w", err)
	}

	marked, err := e.store.MarkProcessed(ctx, started)
	if err != nil {
		return fmt.Errorf("marking feedback processed: %w", err)
	}

	log.Info("feedback mining cycle complete",
		"groups", len(groups),
		"candidates", len(candidates),
		"activated", activated,
		"processed", marked)
	return nil
}

func (e *Engine) mineIssues(groups []PatternGroup) []improvement.Improvement {
	stats := make(map[string]*bucketStats)
	for _, g := range groups {
		bucket, ok := ClassifyIssue(g.Text)
		if !ok {
			continue
		}
		s := stats[bucket]
		if s == nil {
			s = &bucketStats{}
			stats[bucket] = s
		}
		s.frequency += g.Frequency
		if g.Rating != nil {
			s.ratingSum += *g.Rating * g.Frequency
			s.rated += g.Frequency
		}
	}

	out := make([]improvement.Improvement, 0, len(stats))
	for _, bucket := range sortedKeys(stats) {
		s := stats[bucket]
		guideline, ok := IssueGuideline(bucket)
		if !ok {
			continue
		}
		avg := neutralRating
		if s.rated > 0 {
			avg = float64(s.ratingSum) / float64(s.rated)
		}
		out = append(out, improvement.Improvement{
			Type:           bucket,
			PromptAddition: guideline,
			Reason: fmt.Sprintf("%d recent feedback entries flagged %s problems",
				s.frequency, bucket),
			Confidence:    clamp01(float64(s.frequency) / issueNormalizer),
			ImpactScore:   (5.0 - avg) / 5.0,
			AffectedCount: s.frequency,
		})
	}
	return out
}

func (e *Engine) mineCorrections(groups []PatternGroup) []improvement.Improvement {
	freq := make(map[string]int)
	for _, g := range groups {
		bucket, ok := ClassifyCorrection(g.Correction)
		if !ok {
			continue
		}
		freq[bucket] += g.Frequency
	}

	out := make([]improvement.Improvement, 0, len(freq))
	for _, bucket := range sortedKeys(freq) {
		n := freq[bucket]
		guideline, ok := CorrectionGuideline(bucket)
		if !ok {
			continue
		}
		out = append(out, improvement.Improvement{
			Type:           bucket + "_improvement",
			PromptAddition: guideline,
			Reason:         fmt.Sprintf("%d recent user corrections targeted %s", n, bucket),
			Confidence:     clamp01(float64(n) / correctionNormalizer),
			ImpactScore:    correctionImpact,
			AffectedCount:  n,
		})
	}
	return out
}

func (e *Engine) refreshPerformance(ctx context.Context, groups []PatternGroup, candidates []improvement.Improvement) error {
	if e.performance == nil {
		return nil
	}
	total := 0
	ratingSum := 0
	rated := 0
	for _, g := range groups {
		total += g.Frequency
		if g.Rating != nil {
			ratingSum += *g.Rating * g.Frequency
			rated += g.Frequency
		}
	}
	avg := 0.0
	if rated > 0 {
		avg = float64(ratingSum) / float64(rated)
	}
	suggestions := make([]string, 0, len(candidates))
	for _, c := range candidates {
		suggestions = append(suggestions, c.Reason)
	}
	return e.performance.UpsertPerformance(ctx, &PerformanceRecord{
		AnalysisType:  PerformanceKey,
		AverageRating: avg,
		TotalFeedback: total,
		Suggestions:   suggestions,
		LastUpdated:   time.Now(),
	})
}

func clamp01(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0 {
		return 0
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
