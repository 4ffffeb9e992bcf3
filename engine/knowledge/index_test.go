package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(DefaultFactory, DefaultSettings())
	require.NoError(t, err)
	return idx
}

func TestSettings_Validate_Knowledge(t *testing.T) {
	t.Run("Should accept defaults", func(t *testing.T) {
		assert.NoError(t, DefaultSettings().Validate())
	})
	t.Run("Should reject zero top k", func(t *testing.T) {
		s := DefaultSettings()
		s.TopK = 0
		assert.Error(t, s.Validate())
	})
	t.Run("Should reject out-of-range min score", func(t *testing.T) {
		s := DefaultSettings()
		s.MinScore = 1.0
		assert.Error(t, s.Validate())
	})
}

func TestIndex_AddDocumentAndQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("Should retrieve the chunk matching the query terms", func(t *testing.T) {
		idx := newTestIndex(t)
		require.NoError(t, idx.AddDocument(ctx, "doc-1",
			"Data retention obligations require encryption of stored records. "+
				"Breach notification must happen within seventy two hours. "+
				"Annual privacy audits are mandatory for processors.",
			map[string]any{"sector": "technology"}))

		results := idx.Query(ctx, "breach notification deadline hours", 3)

		require.NotEmpty(t, results)
		assert.Contains(t, results[0].Chunk, "notification")
		assert.Equal(t, "doc-1", results[0].DocumentID)
		assert.Equal(t, "technology", results[0].Metadata["sector"])
	})

	t.Run("Should cover all chunks added so far after every AddDocument", func(t *testing.T) {
		idx := newTestIndex(t)
		require.NoError(t, idx.AddDocument(ctx, "doc-1",
			"Solar panel installation subsidies are funded by the energy ministry.", nil))
		require.NoError(t, idx.AddDocument(ctx, "doc-2",
			"Maritime shipping emissions fall under the coastal transport authority.", nil))

		firstDoc := idx.Query(ctx, "solar subsidies energy funding", 3)
		secondDoc := idx.Query(ctx, "maritime shipping emissions authority", 3)

		require.NotEmpty(t, firstDoc)
		require.NotEmpty(t, secondDoc)
		assert.Equal(t, "doc-1", firstDoc[0].DocumentID)
		assert.Equal(t, "doc-2", secondDoc[0].DocumentID)
	})

	t.Run("Should return empty results below the relevance threshold", func(t *testing.T) {
		idx := newTestIndex(t)
		require.NoError(t, idx.AddDocument(ctx, "doc-1",
			"Agricultural water usage permits expire after five growing seasons.", nil))

		results := idx.Query(ctx, "quantum cryptography blockchain", 3)

		assert.Empty(t, results)
	})

	t.Run("Should order results by descending score and cap at k", func(t *testing.T) {
		idx := newTestIndex(t)
		var sb strings.Builder
		for i := 0; i < 8; i++ {
			fmt.Fprintf(&sb, "Rule %d covers workplace safety inspections and requires safety gear. ", i)
		}
		require.NoError(t, idx.AddDocument(ctx, "doc-1", sb.String(), nil))

		results := idx.Query(ctx, "workplace safety inspections", 2)

		assert.LessOrEqual(t, len(results), 2)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})

	t.Run("Should skip blank documents without error", func(t *testing.T) {
		idx := newTestIndex(t)
		assert.NoError(t, idx.AddDocument(ctx, "doc-1", "   \n  ", nil))
		assert.Empty(t, idx.Query(ctx, "anything", 3))
	})
}

func TestIndex_Unavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("Should degrade to empty results with a nil factory", func(t *testing.T) {
		idx, err := NewIndex(nil, DefaultSettings())
		require.NoError(t, err)

		assert.False(t, idx.Available())
		assert.NoError(t, idx.AddDocument(ctx, "doc-1", "some text to index", nil))
		assert.Empty(t, idx.Query(ctx, "some text", 3))
		assert.Empty(t, idx.Context(ctx, "some text", 2000))
	})

	t.Run("Should degrade to empty results when the factory fails", func(t *testing.T) {
		factory := func() (*Vectorizer, error) {
			return nil, errors.New("vector model missing")
		}
		idx, err := NewIndex(factory, DefaultSettings())
		require.NoError(t, err)

		assert.False(t, idx.Available())
		assert.Empty(t, idx.Query(ctx, "query", 3))
	})
}

func TestIndex_Context(t *testing.T) {
	ctx := context.Background()

	t.Run("Should prefix grounding chunks with their relevance score", func(t *testing.T) {
		idx := newTestIndex(t)
		require.NoError(t, idx.AddDocument(ctx, "doc-1",
			"Vehicle emission standards tighten every three years. "+
				"Car manufacturers must certify compliance annually.", nil))

		grounding := idx.Context(ctx, "vehicle emission standards compliance", 2000)

		require.NotEmpty(t, grounding)
		assert.Contains(t, grounding, "[Relevance: ")
	})

	t.Run("Should respect the character budget", func(t *testing.T) {
		idx := newTestIndex(t)
		long := strings.Repeat("Food import tariffs apply to processed goods shipments. ", 20)
		require.NoError(t, idx.AddDocument(ctx, "doc-1", long, nil))

		grounding := idx.Context(ctx, "food import tariffs", 80)

		assert.LessOrEqual(t, len(grounding), 80+len("[Relevance: 0.000] "))
	})
}

func TestIndex_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("Should count attempts and successes", func(t *testing.T) {
		idx := newTestIndex(t)
		require.NoError(t, idx.AddDocument(ctx, "doc-1",
			"Telecommunications licensing fees fund rural broadband expansion.", nil))

		idx.Query(ctx, "telecommunications licensing broadband", 3)
		idx.Query(ctx, "unrelated astrophysics jargon", 3)

		stats := idx.Stats()
		assert.True(t, stats.Available)
		assert.Equal(t, int64(2), stats.Attempts)
		assert.Equal(t, int64(1), stats.Successes)
		assert.Greater(t, stats.AverageScore, 0.0)
		assert.Greater(t, stats.IndexedChunks, 0)
	})
}

func TestIndex_ConcurrentQueriesDuringRetrain(t *testing.T) {
	t.Run("Should serve consistent snapshots while documents are added", func(t *testing.T) {
		ctx := context.Background()
		idx := newTestIndex(t)
		require.NoError(t, idx.AddDocument(ctx, "seed",
			"Initial corpus entry about financial disclosure requirements.", nil))

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(worker int) {
				defer wg.Done()
				for i := 0; i < 20; i++ {
					idx.Query(ctx, "financial disclosure requirements", 3)
				}
			}(w)
		}
		for i := 0; i < 10; i++ {
			docID := fmt.Sprintf("doc-%d", i)
			require.NoError(t, idx.AddDocument(ctx, docID,
				fmt.Sprintf("Amendment %d adjusts financial disclosure thresholds.", i), nil))
		}
		wg.Wait()

		stats := idx.Stats()
		assert.Equal(t, int64(80), stats.Attempts)
	})
}

func TestVectorizer_Fit(t *testing.T) {
	t.Run("Should drop corpus-saturating terms", func(t *testing.T) {
		v := NewVectorizer()
		corpus := []string{
			"policy framework governs data",
			"policy framework governs energy",
			"policy framework governs water",
			"policy framework governs transport",
		}
		model, _ := v.Fit(corpus)

		_, hasPolicy := model.vocabulary["policy"]
		assert.False(t, hasPolicy, "terms in every chunk should be filtered by max document frequency")
		_, hasWater := model.vocabulary["water"]
		assert.True(t, hasWater)
	})

	t.Run("Should keep all terms for a single-chunk corpus", func(t *testing.T) {
		v := NewVectorizer()
		model, vectors := v.Fit([]string{"encryption mandate applies"})

		assert.NotEmpty(t, model.vocabulary)
		require.Len(t, vectors, 1)
		assert.NotEmpty(t, vectors[0])
	})

	t.Run("Should produce l2-normalized vectors", func(t *testing.T) {
		v := NewVectorizer()
		_, vectors := v.Fit([]string{
			"breach notification duty applies strictly",
			"retention schedule covers archived records",
		})
		for _, vec := range vectors {
			var norm float64
			for _, w := range vec {
				norm += w * w
			}
			assert.InDelta(t, 1.0, norm, 1e-9)
		}
	})

	t.Run("Should score identical texts at similarity one", func(t *testing.T) {
		v := NewVectorizer()
		model, vectors := v.Fit([]string{
			"breach notification duty applies strictly",
			"unrelated maritime cargo inspection rules",
		})
		query := model.Transform("breach notification duty applies strictly")
		assert.InDelta(t, 1.0, cosine(query, vectors[0]), 1e-9)
	})
}
