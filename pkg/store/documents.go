package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// UpsertDocument inserts or updates a document keyed by its ID. created_at
// is preserved on update; updated_at is always refreshed.
func (s *Store) UpsertDocument(ctx context.Context, doc *types.Document) error {
	ts := now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, filepath, title, doc_type, body_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filepath   = excluded.filepath,
			title      = excluded.title,
			doc_type   = excluded.doc_type,
			body_hash  = excluded.body_hash,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Filepath, doc.Title, string(doc.Type), doc.BodyHash, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.Filepath, err)
	}
	return nil
}

const documentColumns = `id, filepath, title, doc_type, body_hash, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*types.Document, error) {
	var doc types.Document
	var docType, createdAt, updatedAt string
	if err := row.Scan(&doc.ID, &doc.Filepath, &doc.Title, &docType, &doc.BodyHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Type = types.DocType(docType)
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}

// FindDocumentByID returns the document with the given ID, or ErrNotFound.
func (s *Store) FindDocumentByID(ctx context.Context, id string) (*types.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find document %s: %w", id, err)
	}
	return doc, nil
}

// FindDocumentByFilepath returns the document at the given corpus-relative
// path, or ErrNotFound.
func (s *Store) FindDocumentByFilepath(ctx context.Context, filepath string) (*types.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE filepath = ?`, filepath)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document at %s: %w", filepath, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find document at %s: %w", filepath, err)
	}
	return doc, nil
}

// AllDocuments returns every document ordered by filepath.
func (s *Store) AllDocuments(ctx context.Context) ([]types.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY filepath`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []types.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// AllFilepaths returns the corpus-relative path of every document.
func (s *Store) AllFilepaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filepath FROM documents ORDER BY filepath`)
	if err != nil {
		return nil, fmt.Errorf("list filepaths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DocIDByFilepath returns the ID of the document at the given path, or ""
// when no such document exists.
func (s *Store) DocIDByFilepath(ctx context.Context, filepath string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM documents WHERE filepath = ?`, filepath).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("lookup doc id for %s: %w", filepath, err)
	}
	return id, nil
}

// DeleteDocument removes a document; sections, links, and source refs go
// with it via ON DELETE CASCADE.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// CountDocuments returns the number of documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
