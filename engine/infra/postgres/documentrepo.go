package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/lexiscope/lexiscope/engine/core"
	"github.com/lexiscope/lexiscope/engine/document"
)

// DocumentRepo implements document.Store on PostgreSQL.
type DocumentRepo struct {
	db DBInterface
}

func NewDocumentRepo(db DBInterface) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Insert(ctx context.Context, doc *document.Document) error {
	query, args, err := squirrel.Insert("documents").
		Columns("id", "filename", "content_type", "char_count", "page_count",
			"truncated", "content", "uploaded_at").
		Values(doc.ID, doc.Filename, doc.ContentType, doc.CharCount, doc.PageCount,
			doc.Truncated, doc.Content, doc.UploadedAt).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building document insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	query, args, err := squirrel.Select("id", "filename", "content_type", "char_count",
		"page_count", "truncated", "content", "uploaded_at").
		From("documents").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building document select: %w", err)
	}
	var doc document.Document
	if err := pgxscan.Get(ctx, r.db, &doc, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, core.NewError(err, core.ErrCodeNotFound, map[string]any{"document_id": id})
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepo) List(ctx context.Context, limit int) ([]*document.Document, error) {
	qb := squirrel.Select("id", "filename", "content_type", "char_count",
		"page_count", "truncated", "'' AS content", "uploaded_at").
		From("documents").
		OrderBy("uploaded_at DESC").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		qb = qb.Limit(uint64(limit))
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building document list: %w", err)
	}
	var docs []*document.Document
	if err := pgxscan.Select(ctx, r.db, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("scanning documents: %w", err)
	}
	return docs, nil
}
