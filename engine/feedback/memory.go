package feedback

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used when the service runs without a
// database and in tests. Grouping semantics mirror the SQL store.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	records []Record
	perf    map[string]PerformanceRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{perf: make(map[string]PerformanceRecord)}
}

func (m *MemoryStore) Insert(_ context.Context, rec *Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *rec
	stored.ID = m.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	m.records = append(m.records, stored)
	return stored.ID, nil
}

type groupKey struct {
	category   string
	feedback   string
	rating     int
	hasRating  bool
	text       string
	correction string
}

func (m *MemoryStore) RecentGroups(_ context.Context, since time.Time, minFrequency int) ([]PatternGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[groupKey]int)
	for _, r := range m.records {
		if r.CreatedAt.Before(since) {
			continue
		}
		key := groupKey{
			category:   r.Category,
			feedback:   r.Type,
			text:       r.Text,
			correction: r.Correction,
		}
		if r.Rating != nil {
			key.rating = *r.Rating
			key.hasRating = true
		}
		counts[key]++
	}
	var out []PatternGroup
	for key, n := range counts {
		if n < minFrequency {
			continue
		}
		g := PatternGroup{
			Category:   key.category,
			Type:       key.feedback,
			Text:       key.text,
			Correction: key.correction,
			Frequency:  n,
		}
		if key.hasRating {
			rating := key.rating
			g.Rating = &rating
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	return out, nil
}

func (m *MemoryStore) RecentCorrections(_ context.Context, since time.Time, limit int) ([]PatternGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range m.records {
		if r.CreatedAt.Before(since) || r.Correction == "" {
			continue
		}
		counts[r.Correction]++
	}
	out := make([]PatternGroup, 0, len(counts))
	for correction, n := range counts {
		out = append(out, PatternGroup{Correction: correction, Frequency: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) MarkProcessed(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var marked int64
	for i := range m.records {
		if m.records[i].IsProcessed || m.records[i].CreatedAt.After(before) {
			continue
		}
		m.records[i].IsProcessed = true
		marked++
	}
	return marked, nil
}

// Unprocessed counts records the mining cycle has not consumed yet.
func (m *MemoryStore) Unprocessed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if !r.IsProcessed {
			n++
		}
	}
	return n
}

func (m *MemoryStore) Summary(_ context.Context) (*Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary := &Summary{CategoryCounts: make(map[string]int)}
	ratingSum, rated := 0, 0
	for _, r := range m.records {
		summary.TotalFeedback++
		summary.CategoryCounts[r.Category]++
		if r.Rating != nil {
			ratingSum += *r.Rating
			rated++
		}
	}
	if rated > 0 {
		summary.AverageRating = float64(ratingSum) / float64(rated)
	}
	return summary, nil
}

func (m *MemoryStore) UpsertPerformance(_ context.Context, rec *PerformanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perf[rec.AnalysisType] = *rec
	return nil
}

// Performance returns the stored aggregate row, if any.
func (m *MemoryStore) Performance(analysisType string) (PerformanceRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.perf[analysisType]
	return rec, ok
}
