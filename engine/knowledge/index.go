// Package knowledge maintains a sparse-vector retrieval index over chunks
// of ingested documents and answers top-k relevance queries used to ground
// chat answers.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/lexiscope/lexiscope/engine/chunk"
	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

const (
	scoreHistoryCap  = 1000
	scoreHistoryKeep = 500
	statsWindow      = 100
)

// Settings holds retrieval index configuration.
type Settings struct {
	ChunkSize       int     `json:"chunk_size"`
	ChunkOverlap    int     `json:"chunk_overlap"`
	TopK            int     `json:"top_k"`
	MinScore        float64 `json:"min_score"`
	MaxContextChars int     `json:"max_context_chars"`
}

func DefaultSettings() Settings {
	return Settings{
		ChunkSize:       chunk.DefaultRetrievalSize,
		ChunkOverlap:    chunk.DefaultRetrievalOverlap,
		TopK:            3,
		MinScore:        0.1,
		MaxContextChars: 2000,
	}
}

func (s Settings) Validate() error {
	if s.ChunkSize <= 0 {
		return errors.New("knowledge: chunk size must be greater than zero")
	}
	if s.TopK <= 0 {
		return errors.New("knowledge: top k must be greater than zero")
	}
	if s.MinScore < 0 || s.MinScore >= 1 {
		return fmt.Errorf("knowledge: min score %f must be in [0, 1)", s.MinScore)
	}
	return nil
}

// Entry is one indexed chunk with its provenance.
type Entry struct {
	Chunk      string
	DocumentID string
	Position   int
	Metadata   map[string]any
}

// Result is a scored retrieval match.
type Result struct {
	Chunk      string
	Score      float64
	DocumentID string
	Metadata   map[string]any
}

// Stats exposes the index's observability counters.
type Stats struct {
	Available     bool    `json:"available"`
	IndexedChunks int     `json:"indexed_chunks"`
	Attempts      int64   `json:"retrieval_attempts"`
	Successes     int64   `json:"retrieval_successes"`
	AverageScore  float64 `json:"average_relevance_score"`
}

// snapshot bundles a fitted model with the exact corpus it was fitted on,
// so a query never observes a half-rebuilt index.
type snapshot struct {
	model   *Model
	vectors []sparseVector
	entries []Entry
}

// Index is the retrieval index. AddDocument is the only mutator and holds a
// single-writer lock; queries read the latest snapshot without locking.
type Index struct {
	settings   Settings
	vectorizer *Vectorizer

	writeMu sync.Mutex
	entries []Entry
	current atomic.Pointer[snapshot]

	attempts  atomic.Int64
	successes atomic.Int64
	scoresMu  sync.Mutex
	scores    []float64
}

// NewIndex builds an index from the injected vectorizer factory. A nil or
// failing factory yields an unavailable index whose queries return empty
// results rather than errors.
func NewIndex(factory VectorizerFactory, settings Settings) (*Index, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	idx := &Index{settings: settings}
	if factory == nil {
		return idx, nil
	}
	vectorizer, err := factory()
	if err != nil {
		logger.FromContext(context.Background()).Warn(
			"retrieval vectorizer unavailable, queries will return no grounding",
			"error", err,
		)
		return idx, nil
	}
	idx.vectorizer = vectorizer
	return idx, nil
}

// Available reports whether the vector model can serve queries.
func (i *Index) Available() bool {
	return i.vectorizer != nil
}

// AddDocument chunks text for retrieval, appends the chunks to the corpus,
// and re-fits the vector model over the entire corpus. The fitted model and
// corpus swap in atomically.
func (i *Index) AddDocument(ctx context.Context, documentID, text string, metadata map[string]any) error {
	log := logger.FromContext(ctx)
	if !i.Available() {
		log.Debug("retrieval index unavailable, skipping document", "document_id", documentID)
		return nil
	}
	chunks, err := chunk.SplitSentences(text, i.settings.ChunkSize, i.settings.ChunkOverlap)
	if err != nil {
		return core.NewError(err, core.ErrCodeIndexUnavailable, map[string]any{"document_id": documentID})
	}
	if len(chunks) == 0 {
		return nil
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	entries := make([]Entry, 0, len(i.entries)+len(chunks))
	entries = append(entries, i.entries...)
	for pos, text := range chunks {
		entries = append(entries, Entry{
			Chunk:      text,
			DocumentID: documentID,
			Position:   pos,
			Metadata:   core.CloneMap(metadata),
		})
	}
	corpus := make([]string, len(entries))
	for j := range entries {
		corpus[j] = entries[j].Chunk
	}
	model, vectors := i.vectorizer.Fit(corpus)
	i.entries = entries
	i.current.Store(&snapshot{model: model, vectors: vectors, entries: entries})
	log.Info("document indexed for retrieval",
		"document_id", documentID,
		"chunks", len(chunks),
		"corpus_size", len(entries),
	)
	return nil
}

// Query returns the top-k chunks most relevant to text, highest score
// first, dropping anything below the relevance floor. An unavailable or
// empty index returns no results and no error.
func (i *Index) Query(ctx context.Context, text string, k int) []Result {
	i.attempts.Add(1)
	snap := i.current.Load()
	if snap == nil || !i.Available() {
		logger.FromContext(ctx).Debug("retrieval query on unavailable index")
		return nil
	}
	if k <= 0 {
		k = i.settings.TopK
	}

	queryVec := snap.model.Transform(text)
	results := make([]Result, 0, k)
	for j, vec := range snap.vectors {
		score := cosine(queryVec, vec)
		if score <= i.settings.MinScore {
			continue
		}
		results = append(results, Result{
			Chunk:      snap.entries[j].Chunk,
			Score:      score,
			DocumentID: snap.entries[j].DocumentID,
			Metadata:   snap.entries[j].Metadata,
		})
	}
	sort.Slice(results, func(a, b int) bool { return results[a].Score > results[b].Score })
	if len(results) > k {
		results = results[:k]
	}
	if len(results) > 0 {
		i.successes.Add(1)
		i.recordScores(results)
	}
	return results
}

// Context assembles a grounding block for a query, newline-separated and
// bounded by maxChars. An empty string means no grounding is available.
func (i *Index) Context(ctx context.Context, query string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = i.settings.MaxContextChars
	}
	results := i.Query(ctx, query, i.settings.TopK)
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, 0, len(results))
	total := 0
	for _, res := range results {
		if total+len(res.Chunk) > maxChars {
			break
		}
		parts = append(parts, fmt.Sprintf("[Relevance: %.3f] %s", res.Score, res.Chunk))
		total += len(res.Chunk)
	}
	return strings.Join(parts, "\n\n")
}

// Stats returns cumulative counters and the rolling average relevance score
// over the most recent retrievals.
func (i *Index) Stats() Stats {
	stats := Stats{
		Available: i.Available(),
		Attempts:  i.attempts.Load(),
		Successes: i.successes.Load(),
	}
	if snap := i.current.Load(); snap != nil {
		stats.IndexedChunks = len(snap.entries)
	}
	i.scoresMu.Lock()
	defer i.scoresMu.Unlock()
	window := i.scores
	if len(window) > statsWindow {
		window = window[len(window)-statsWindow:]
	}
	if len(window) > 0 {
		var sum float64
		for _, s := range window {
			sum += s
		}
		stats.AverageScore = sum / float64(len(window))
	}
	return stats
}

func (i *Index) recordScores(results []Result) {
	i.scoresMu.Lock()
	defer i.scoresMu.Unlock()
	for _, res := range results {
		i.scores = append(i.scores, res.Score)
	}
	if len(i.scores) > scoreHistoryCap {
		i.scores = append(i.scores[:0:0], i.scores[len(i.scores)-scoreHistoryKeep:]...)
	}
}
