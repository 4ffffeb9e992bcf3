package analysis

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/engine/improvement"
	"github.com/lexiscope/lexiscope/engine/llm"
)

// fakeGenerator echoes the document/section body so tests can verify
// ordering, with optional per-call latency jitter and failure injection.
type fakeGenerator struct {
	mu        sync.Mutex
	prompts   []string
	jitter    time.Duration
	failWhen  func(prompt string) bool
	emptyWhen func(prompt string) bool
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, _ string) llm.Completion {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(f.jitter))))
	}
	if f.failWhen != nil && f.failWhen(prompt) {
		return llm.Completion{Text: "API error: 503", Degraded: true, Attempts: 3}
	}
	if f.emptyWhen != nil && f.emptyWhen(prompt) {
		return llm.Completion{}
	}
	body := prompt
	for _, marker := range []string{"SECTION:\n", "DOCUMENT:\n", "SECTION ANALYSES:\n"} {
		if idx := strings.LastIndex(prompt, marker); idx >= 0 {
			body = prompt[idx+len(marker):]
			break
		}
	}
	return llm.Completion{Text: "ANALYZED " + body}
}

func testSettings() Settings {
	s := DefaultSettings()
	s.APIKey = "test-key"
	s.SingleCallThreshold = 100
	s.ChunkSize = 40
	s.BatchCooldown = time.Millisecond
	return s
}

func bigDocument(paragraphs int) string {
	parts := make([]string, paragraphs)
	for i := range parts {
		parts[i] = fmt.Sprintf("Paragraph %02d covers clause material.", i+1)
	}
	return strings.Join(parts, "\n\n")
}

func TestServiceAnalyze(t *testing.T) {
	t.Run("Should reject empty input", func(t *testing.T) {
		svc, err := NewService(&fakeGenerator{}, nil, testSettings())
		require.NoError(t, err)
		_, err = svc.Analyze(context.Background(), "   \n", "")
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeInvalidInput))
	})

	t.Run("Should reject a missing api key without calling the gateway", func(t *testing.T) {
		gen := &fakeGenerator{}
		settings := testSettings()
		settings.APIKey = ""
		svc, err := NewService(gen, nil, settings)
		require.NoError(t, err)

		_, err = svc.Analyze(context.Background(), "Short policy.", "")
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeInvalidInput))
		assert.Empty(t, gen.prompts)
	})

	t.Run("Should take the single-call path for small documents", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc, err := NewService(gen, nil, testSettings())
		require.NoError(t, err)

		report, err := svc.Analyze(context.Background(), "Short privacy policy.", "doc_1")
		require.NoError(t, err)
		assert.Equal(t, 1, report.Sections)
		assert.False(t, report.Partial)
		assert.Contains(t, report.Analysis, "Short privacy policy.")
		assert.Len(t, gen.prompts, 1)
		assert.NotEmpty(t, report.RequestID)
	})

	t.Run("Should fail the request when the single call degrades", func(t *testing.T) {
		gen := &fakeGenerator{failWhen: func(string) bool { return true }}
		svc, err := NewService(gen, nil, testSettings())
		require.NoError(t, err)

		_, err = svc.Analyze(context.Background(), "Short policy.", "")
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeTotalFailure))
	})

	t.Run("Should preserve document order under concurrent batches", func(t *testing.T) {
		gen := &fakeGenerator{jitter: 5 * time.Millisecond}
		svc, err := NewService(gen, nil, testSettings())
		require.NoError(t, err)

		report, err := svc.Analyze(context.Background(), bigDocument(8), "doc_1")
		require.NoError(t, err)
		assert.False(t, report.Partial)

		// Every paragraph must appear, and in its original order.
		last := -1
		for i := 1; i <= 8; i++ {
			idx := strings.Index(report.Analysis, fmt.Sprintf("Paragraph %02d", i))
			require.GreaterOrEqual(t, idx, 0, "paragraph %d missing", i)
			assert.Greater(t, idx, last, "paragraph %d out of order", i)
			last = idx
		}
	})

	t.Run("Should drop failed sections without failing the request", func(t *testing.T) {
		gen := &fakeGenerator{failWhen: func(prompt string) bool {
			return strings.Contains(prompt, "Paragraph 03")
		}}
		svc, err := NewService(gen, nil, testSettings())
		require.NoError(t, err)

		report, err := svc.Analyze(context.Background(), bigDocument(8), "doc_1")
		require.NoError(t, err)
		assert.True(t, report.Partial)
		assert.Equal(t, 1, report.FailedSections)
		assert.NotContains(t, report.Analysis, "Paragraph 03")
		assert.Contains(t, report.Analysis, "Paragraph 04")
	})

	t.Run("Should not count an empty completion as a failed section", func(t *testing.T) {
		gen := &fakeGenerator{emptyWhen: func(prompt string) bool {
			return strings.Contains(prompt, "Paragraph 03")
		}}
		svc, err := NewService(gen, nil, testSettings())
		require.NoError(t, err)

		report, err := svc.Analyze(context.Background(), bigDocument(8), "doc_1")
		require.NoError(t, err)
		assert.Zero(t, report.FailedSections)
		assert.False(t, report.Partial)
		// The empty section keeps its place in the assembled report.
		assert.Contains(t, report.Analysis, "## Section 3")
		assert.NotContains(t, report.Analysis, "Paragraph 03")
	})

	t.Run("Should report total failure when every section degrades", func(t *testing.T) {
		gen := &fakeGenerator{failWhen: func(prompt string) bool {
			return strings.Contains(prompt, "SECTION:")
		}}
		svc, err := NewService(gen, nil, testSettings())
		require.NoError(t, err)

		_, err = svc.Analyze(context.Background(), bigDocument(8), "doc_1")
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeTotalFailure))
	})

	t.Run("Should synthesize an executive summary for many sections", func(t *testing.T) {
		gen := &fakeGenerator{}
		svc, err := NewService(gen, nil, testSettings())
		require.NoError(t, err)

		report, err := svc.Analyze(context.Background(), bigDocument(8), "doc_1")
		require.NoError(t, err)
		require.True(t, report.Synthesized)
		assert.Contains(t, report.Analysis, "## Executive Summary")
		// Synthesis runs last, over the combined section analyses.
		lastPrompt := gen.prompts[len(gen.prompts)-1]
		assert.Contains(t, lastPrompt, "SECTION ANALYSES:")
	})

	t.Run("Should skip synthesis for few sections", func(t *testing.T) {
		gen := &fakeGenerator{}
		settings := testSettings()
		settings.ChunkSize = 200
		svc, err := NewService(gen, nil, settings)
		require.NoError(t, err)

		report, err := svc.Analyze(context.Background(), bigDocument(6), "doc_1")
		require.NoError(t, err)
		assert.False(t, report.Synthesized)
		assert.NotContains(t, report.Analysis, "## Executive Summary")
	})

	t.Run("Should splice the selected improvement and record usage", func(t *testing.T) {
		store := improvement.NewMemoryStore()
		ctx := context.Background()
		imp := &improvement.Improvement{
			Type:           "accuracy",
			PromptAddition: "ACCURACY REQUIREMENTS: verify claims",
			IsActive:       true,
		}
		require.NoError(t, store.Insert(ctx, imp))

		gen := &fakeGenerator{}
		svc, err := NewService(gen, store, testSettings())
		require.NoError(t, err)

		_, err = svc.Analyze(ctx, "Short policy.", "")
		require.NoError(t, err)
		assert.Contains(t, gen.prompts[0], "ACCURACY REQUIREMENTS")

		selected, err := store.Select(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, selected.UsageCount)
	})
}

func TestAssemble(t *testing.T) {
	t.Run("Should label sections by their document position", func(t *testing.T) {
		out := assemble([]sectionResult{
			{text: "first", ok: true},
			{},
			{text: "third", ok: true},
		})
		assert.Contains(t, out, "## Section 1\n\nfirst")
		assert.NotContains(t, out, "## Section 2")
		assert.Contains(t, out, "## Section 3\n\nthird")
	})
}

func TestCapRunes(t *testing.T) {
	t.Run("Should cut on rune boundaries", func(t *testing.T) {
		text := strings.Repeat("é", 10)
		capped := capRunes(text, 4)
		assert.Equal(t, strings.Repeat("é", 4), capped)
	})
	t.Run("Should leave short text alone", func(t *testing.T) {
		assert.Equal(t, "short", capRunes("short", 100))
	})
}
