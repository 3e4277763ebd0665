package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// RefHash pairs a source file path with its content hash at sync time. An
// empty hash records a reference whose file could not be read.
type RefHash struct {
	FilePath string
	Hash     string
}

// SyncSourceRefs replaces a document's source-ref state with the given refs,
// all marked fresh.
func (s *Store) SyncSourceRefs(ctx context.Context, docID string, refs []RefHash) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sync source refs: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM source_refs_state WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("delete source refs of %s: %w", docID, err)
	}

	ts := now()
	for _, ref := range refs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO source_refs_state (doc_id, file_path, last_synced_hash, last_synced_at, is_stale)
			VALUES (?, ?, ?, ?, 0)`,
			docID, ref.FilePath, nullString(ref.Hash), ts)
		if err != nil {
			return fmt.Errorf("insert source ref %s of %s: %w", ref.FilePath, docID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sync source refs: %w", err)
	}
	return nil
}

// SourceRefsByDocID returns a document's source-ref state rows.
func (s *Store) SourceRefsByDocID(ctx context.Context, docID string) ([]types.SourceRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, file_path, last_synced_hash, last_synced_at, is_stale
		FROM source_refs_state WHERE doc_id = ?`, docID)
	if err != nil {
		return nil, fmt.Errorf("list source refs of %s: %w", docID, err)
	}
	defer rows.Close()

	var refs []types.SourceRef
	for rows.Next() {
		ref, err := scanSourceRef(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, *ref)
	}
	return refs, rows.Err()
}

func scanSourceRef(row interface{ Scan(...any) error }) (*types.SourceRef, error) {
	var ref types.SourceRef
	var hash, syncedAt sql.NullString
	var stale int
	if err := row.Scan(&ref.DocID, &ref.FilePath, &hash, &syncedAt, &stale); err != nil {
		return nil, fmt.Errorf("scan source ref: %w", err)
	}
	ref.LastSyncedHash = hash.String
	ref.LastSyncedAt = parseTime(syncedAt.String)
	ref.Stale = stale == 1
	return &ref, nil
}

// UpdateRefStaleness marks every ref of a file stale or fresh by comparing
// the stored hash with the current one.
func (s *Store) UpdateRefStaleness(ctx context.Context, filePath, currentHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE source_refs_state
		SET is_stale = CASE WHEN last_synced_hash IS NULL OR last_synced_hash != ? THEN 1 ELSE 0 END
		WHERE file_path = ?`,
		currentHash, filePath)
	if err != nil {
		return fmt.Errorf("update staleness of %s: %w", filePath, err)
	}
	return nil
}

// StaleSourceRefs returns every stale ref joined with its document metadata.
func (s *Store) StaleSourceRefs(ctx context.Context) ([]types.StaleSourceRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.doc_id, r.file_path, r.last_synced_hash, r.last_synced_at, r.is_stale,
		       d.title, d.filepath
		FROM source_refs_state r
		JOIN documents d ON r.doc_id = d.id
		WHERE r.is_stale = 1`)
	if err != nil {
		return nil, fmt.Errorf("list stale source refs: %w", err)
	}
	defer rows.Close()

	var refs []types.StaleSourceRef
	for rows.Next() {
		var ref types.StaleSourceRef
		var hash, syncedAt sql.NullString
		var stale int
		err := rows.Scan(&ref.DocID, &ref.FilePath, &hash, &syncedAt, &stale,
			&ref.DocTitle, &ref.DocFilepath)
		if err != nil {
			return nil, fmt.Errorf("scan stale source ref: %w", err)
		}
		ref.LastSyncedHash = hash.String
		ref.LastSyncedAt = parseTime(syncedAt.String)
		ref.Stale = stale == 1
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// RefSummary returns total and stale source-ref counts.
func (s *Store) RefSummary(ctx context.Context) (total, stale int, err error) {
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(is_stale), 0) FROM source_refs_state`).
		Scan(&total, &stale)
	if err != nil {
		return 0, 0, fmt.Errorf("summarize source refs: %w", err)
	}
	return total, stale, nil
}
