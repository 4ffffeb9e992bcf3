package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/engine/infra/cache"
	"github.com/lexiscope/lexiscope/engine/knowledge"
	"github.com/lexiscope/lexiscope/pkg/logger"
)

// Cache bounds for ingested documents.
const (
	CacheCapacity = 50
	CacheKeep     = 25
)

// Accepted upload content types.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain"
)

// Service ingests uploads: extract text, cache it, persist it, and feed
// the retrieval index. The store and index are optional; without them
// ingestion still serves analysis from the cache.
type Service struct {
	cache *cache.Cache[string, *Document]
	store Store
	index *knowledge.Index
}

func NewService(store Store, index *knowledge.Index) *Service {
	return &Service{
		cache: cache.New[string, *Document](CacheCapacity, CacheKeep),
		store: store,
		index: index,
	}
}

// Ingest extracts text from an upload and registers the document. PDF
// extraction is capped at MaxPDFPages; everything else is treated as
// plain text.
func (s *Service) Ingest(ctx context.Context, filename, contentType string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, core.NewError(errors.New("upload is empty"), core.ErrCodeInvalidInput, nil)
	}
	log := logger.FromContext(ctx)
	doc := &Document{
		ID:          core.NewDocumentID(),
		Filename:    filename,
		ContentType: contentType,
		UploadedAt:  time.Now(),
	}
	if contentType == ContentTypePDF || strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		text, pages, truncated, err := extractPDF(data)
		if err != nil {
			return nil, core.NewError(fmt.Errorf("pdf extraction: %w", err), core.ErrCodeInvalidInput,
				map[string]any{"filename": filename})
		}
		doc.Content = text
		doc.PageCount = pages
		doc.Truncated = truncated
		doc.ContentType = ContentTypePDF
	} else {
		doc.Content = string(data)
		doc.ContentType = ContentTypeText
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, core.NewError(errors.New("no extractable text"), core.ErrCodeInvalidInput,
			map[string]any{"filename": filename})
	}
	doc.CharCount = len(doc.Content)

	s.cache.Set(doc.ID, doc)
	if s.store != nil {
		if err := s.store.Insert(ctx, doc); err != nil {
			return nil, core.NewError(err, core.ErrCodePersistence, map[string]any{"document_id": doc.ID})
		}
	}
	if s.index != nil {
		if err := s.index.AddDocument(ctx, doc.ID, doc.Content, map[string]any{
			"filename": doc.Filename,
		}); err != nil {
			log.Warn("indexing document failed", "document_id", doc.ID, "error", err)
		}
	}
	log.Info("document ingested",
		"document_id", doc.ID,
		"filename", doc.Filename,
		"chars", doc.CharCount,
		"pages", doc.PageCount)
	return doc, nil
}

// Get serves from the cache first, falling back to the store.
func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	if doc, ok := s.cache.Get(id); ok {
		return doc, nil
	}
	if s.store == nil {
		return nil, core.NewError(errors.New("document not found"), core.ErrCodeNotFound,
			map[string]any{"document_id": id})
	}
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(doc.ID, doc)
	return doc, nil
}

// List returns document metadata, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]*Document, error) {
	if s.store == nil {
		docs := make([]*Document, 0)
		for _, id := range s.cache.Keys() {
			if doc, ok := s.cache.Get(id); ok {
				meta := *doc
				meta.Content = ""
				docs = append(docs, &meta)
			}
		}
		return docs, nil
	}
	return s.store.List(ctx, limit)
}

// CacheSize reports how many documents the cache currently holds.
func (s *Service) CacheSize() int {
	return s.cache.Len()
}

// CachedContent returns the first maxChars of a cached document's text,
// for grounding fallbacks. Empty when the document is not cached.
func (s *Service) CachedContent(id string, maxChars int) string {
	doc, ok := s.cache.Get(id)
	if !ok {
		return ""
	}
	if maxChars > 0 && len(doc.Content) > maxChars {
		runes := []rune(doc.Content)
		if len(runes) > maxChars {
			return string(runes[:maxChars])
		}
	}
	return doc.Content
}
