package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mdgraph/mdgraph/pkg/types"
	"github.com/mdgraph/mdgraph/pkg/vectorindex"
)

// EncodeVector serializes a float32 vector as a little-endian blob, the
// at-rest format of the sections.embedding column.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector deserializes a little-endian float32 blob.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// ReplaceSections deletes a document's sections and inserts the given ones,
// returning the inserted rows with their assigned IDs in section order.
// Embeddings are reset; sections keep nil embeddings until the queue fills
// them in.
func (s *Store) ReplaceSections(ctx context.Context, docID string, sections []types.Section) ([]types.Section, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace sections: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sections WHERE doc_id = ?`, docID); err != nil {
		return nil, fmt.Errorf("delete sections of %s: %w", docID, err)
	}

	ts := now()
	for _, sec := range sections {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sections (doc_id, heading, section_order, content, content_hash, token_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			docID, nullString(sec.Heading), sec.Order, sec.Content, sec.ContentHash,
			nullInt64(int64(sec.TokenCount)), ts)
		if err != nil {
			return nil, fmt.Errorf("insert section %d of %s: %w", sec.Order, docID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace sections: %w", err)
	}

	return s.FindSectionsByDocID(ctx, docID)
}

const sectionColumns = `id, doc_id, heading, section_order, content, content_hash, embedding, embedding_model, token_count, updated_at`

func scanSection(row interface{ Scan(...any) error }) (*types.Section, error) {
	var sec types.Section
	var heading, model sql.NullString
	var tokenCount sql.NullInt64
	var embedding []byte
	var updatedAt string

	err := row.Scan(&sec.ID, &sec.DocID, &heading, &sec.Order, &sec.Content,
		&sec.ContentHash, &embedding, &model, &tokenCount, &updatedAt)
	if err != nil {
		return nil, err
	}

	sec.Heading = heading.String
	sec.EmbeddingModel = model.String
	sec.TokenCount = int(tokenCount.Int64)
	sec.UpdatedAt = parseTime(updatedAt)
	if len(embedding) > 0 {
		vec, err := DecodeVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", sec.ID, err)
		}
		sec.Embedding = vec
	}
	return &sec, nil
}

// FindSectionByID returns the section with the given rowid, or ErrNotFound.
func (s *Store) FindSectionByID(ctx context.Context, id int64) (*types.Section, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE id = ?`, id)
	sec, err := scanSection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("section %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find section %d: %w", id, err)
	}
	return sec, nil
}

// FindSectionsByDocID returns a document's sections in section order.
func (s *Store) FindSectionsByDocID(ctx context.Context, docID string) ([]types.Section, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sectionColumns+` FROM sections WHERE doc_id = ? ORDER BY section_order`, docID)
	if err != nil {
		return nil, fmt.Errorf("list sections of %s: %w", docID, err)
	}
	defer rows.Close()

	var sections []types.Section
	for rows.Next() {
		sec, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, *sec)
	}
	return sections, rows.Err()
}

// UpdateEmbedding stores a section's embedding vector and model tag.
func (s *Store) UpdateEmbedding(ctx context.Context, sectionID int64, vector []float32, model string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sections SET embedding = ?, embedding_model = ?, updated_at = ?
		WHERE id = ?`,
		EncodeVector(vector), model, now(), sectionID)
	if err != nil {
		return fmt.Errorf("update embedding of section %d: %w", sectionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("section %d: %w", sectionID, ErrNotFound)
	}
	return nil
}

// LoadEmbedded returns every embedded section as vector index entries, used
// to rebuild the in-memory index at startup.
func (s *Store) LoadEmbedded(ctx context.Context) ([]vectorindex.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, embedding FROM sections WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("load embedded sections: %w", err)
	}
	defer rows.Close()

	var entries []vectorindex.Entry
	for rows.Next() {
		var entry vectorindex.Entry
		var blob []byte
		if err := rows.Scan(&entry.SectionID, &entry.DocID, &blob); err != nil {
			return nil, fmt.Errorf("scan embedded section: %w", err)
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", entry.SectionID, err)
		}
		entry.Vector = vec
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SectionCounts returns the total number of sections and how many have
// embeddings.
func (s *Store) SectionCounts(ctx context.Context) (total, embedded int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(embedding) FROM sections`).Scan(&total, &embedded)
	if err != nil {
		return 0, 0, fmt.Errorf("count sections: %w", err)
	}
	return total, embedded, nil
}
