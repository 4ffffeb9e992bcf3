package document

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiscope/lexiscope/engine/core"
)

func TestServiceIngest(t *testing.T) {
	t.Run("Should ingest plain text uploads", func(t *testing.T) {
		svc := NewService(nil, nil)
		doc, err := svc.Ingest(context.Background(), "policy.txt", ContentTypeText,
			[]byte("This agreement governs use of the service."))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(doc.ID, "doc_"))
		assert.Equal(t, ContentTypeText, doc.ContentType)
		assert.Equal(t, 42, doc.CharCount)
	})

	t.Run("Should reject empty uploads", func(t *testing.T) {
		svc := NewService(nil, nil)
		_, err := svc.Ingest(context.Background(), "empty.txt", ContentTypeText, nil)
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeInvalidInput))
	})

	t.Run("Should reject uploads with no extractable text", func(t *testing.T) {
		svc := NewService(nil, nil)
		_, err := svc.Ingest(context.Background(), "blank.txt", ContentTypeText, []byte("  \n\t "))
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeInvalidInput))
	})

	t.Run("Should reject malformed pdf uploads", func(t *testing.T) {
		svc := NewService(nil, nil)
		_, err := svc.Ingest(context.Background(), "broken.pdf", ContentTypePDF,
			[]byte("not a pdf at all"))
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeInvalidInput))
	})
}

func TestServiceGet(t *testing.T) {
	t.Run("Should serve ingested documents from the cache", func(t *testing.T) {
		svc := NewService(nil, nil)
		ctx := context.Background()
		doc, err := svc.Ingest(ctx, "policy.txt", ContentTypeText, []byte("cached content"))
		require.NoError(t, err)

		got, err := svc.Get(ctx, doc.ID)
		require.NoError(t, err)
		assert.Equal(t, "cached content", got.Content)
	})

	t.Run("Should report not found without a store", func(t *testing.T) {
		svc := NewService(nil, nil)
		_, err := svc.Get(context.Background(), "doc_unknown")
		require.Error(t, err)
		assert.True(t, core.HasCode(err, core.ErrCodeNotFound))
	})
}

func TestServiceCachedContent(t *testing.T) {
	t.Run("Should cap returned content", func(t *testing.T) {
		svc := NewService(nil, nil)
		doc, err := svc.Ingest(context.Background(), "policy.txt", ContentTypeText,
			[]byte(strings.Repeat("a", 2000)))
		require.NoError(t, err)

		snippet := svc.CachedContent(doc.ID, 1000)
		assert.Len(t, snippet, 1000)
	})

	t.Run("Should return empty for unknown documents", func(t *testing.T) {
		svc := NewService(nil, nil)
		assert.Empty(t, svc.CachedContent("doc_unknown", 1000))
	})
}

func TestServiceList(t *testing.T) {
	t.Run("Should list cached metadata without content", func(t *testing.T) {
		svc := NewService(nil, nil)
		ctx := context.Background()
		_, err := svc.Ingest(ctx, "a.txt", ContentTypeText, []byte("first document"))
		require.NoError(t, err)
		_, err = svc.Ingest(ctx, "b.txt", ContentTypeText, []byte("second document"))
		require.NoError(t, err)

		docs, err := svc.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		for _, d := range docs {
			assert.Empty(t, d.Content)
			assert.Positive(t, d.CharCount)
		}
	})
}
