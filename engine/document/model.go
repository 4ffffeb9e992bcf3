// Package document handles ingestion of policy documents: text and PDF
// extraction, caching, persistence, and indexing for retrieval.
package document

import (
	"context"
	"time"
)

// Document is an ingested policy document. Content is the full extracted
// text; listing queries return metadata only.
type Document struct {
	ID          string    `db:"id"           json:"id"`
	Filename    string    `db:"filename"     json:"filename"`
	ContentType string    `db:"content_type" json:"content_type"`
	CharCount   int       `db:"char_count"   json:"char_count"`
	PageCount   int       `db:"page_count"   json:"page_count,omitempty"`
	Truncated   bool      `db:"truncated"    json:"truncated,omitempty"`
	Content     string    `db:"content"      json:"-"`
	UploadedAt  time.Time `db:"uploaded_at"  json:"uploaded_at"`
}

// Store persists documents. List returns metadata with Content left empty.
type Store interface {
	Insert(ctx context.Context, doc *Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, limit int) ([]*Document, error)
}
