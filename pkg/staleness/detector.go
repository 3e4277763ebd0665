// Package staleness tracks source-ref hashes and classifies how trustworthy
// each document is relative to the source files it claims to describe.
package staleness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mdgraph/mdgraph/pkg/types"
	"github.com/mdgraph/mdgraph/pkg/utils"
)

// notFoundHash is recorded for refs whose file could not be read, so the
// stored hash never matches and the ref stays stale.
const notFoundHash = "__NOT_FOUND__"

// Store is the persistence surface the detector needs.
type Store interface {
	AllDocuments(ctx context.Context) ([]types.Document, error)
	SourceRefsByDocID(ctx context.Context, docID string) ([]types.SourceRef, error)
	UpdateRefStaleness(ctx context.Context, filePath, currentHash string) error
	StaleSourceRefs(ctx context.Context) ([]types.StaleSourceRef, error)
}

// Detector computes staleness levels by comparing stored source-ref hashes
// against the files on disk.
type Detector struct {
	store       Store
	projectRoot string
	logger      *slog.Logger
}

func NewDetector(store Store, projectRoot string, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{store: store, projectRoot: projectRoot, logger: logger}
}

// LevelFromRefs derives a staleness level from a document's refs. A stale ref
// that was hashed at least once means the file changed; a stale ref that was
// never hashed means the file was never found. Changed files dominate.
func LevelFromRefs(refs []types.SourceRef) types.StalenessLevel {
	if len(refs) == 0 {
		return types.StalenessFresh
	}
	var hasStale, hasUntracked bool
	for _, ref := range refs {
		if !ref.Stale {
			continue
		}
		if ref.LastSyncedHash == "" || ref.LastSyncedHash == notFoundHash {
			hasUntracked = true
		} else {
			hasStale = true
		}
	}
	if hasStale {
		return types.StalenessStale
	}
	if hasUntracked {
		return types.StalenessUntracked
	}
	return types.StalenessFresh
}

// Level returns the staleness level of one document.
func (d *Detector) Level(ctx context.Context, docID string) (types.StalenessLevel, error) {
	refs, err := d.store.SourceRefsByDocID(ctx, docID)
	if err != nil {
		return "", fmt.Errorf("staleness of %s: %w", docID, err)
	}
	return LevelFromRefs(refs), nil
}

// CheckAll re-hashes every referenced source file and updates the stored
// staleness flags. Unreadable files get a sentinel hash so they show as stale.
func (d *Detector) CheckAll(ctx context.Context) error {
	docs, err := d.store.AllDocuments(ctx)
	if err != nil {
		return fmt.Errorf("check staleness: %w", err)
	}

	for _, doc := range docs {
		refs, err := d.store.SourceRefsByDocID(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("check staleness of %s: %w", doc.ID, err)
		}
		for _, ref := range refs {
			hash := notFoundHash
			if content, err := os.ReadFile(d.resolve(ref.FilePath)); err == nil {
				hash = utils.HashBytes(content)
			}
			if err := d.store.UpdateRefStaleness(ctx, ref.FilePath, hash); err != nil {
				return err
			}
		}
	}
	return nil
}

// StaleDocuments refreshes all ref hashes, then returns every document with
// at least one stale ref, grouped with per-ref reasons.
func (d *Detector) StaleDocuments(ctx context.Context) ([]types.StaleDoc, error) {
	if err := d.CheckAll(ctx); err != nil {
		return nil, err
	}

	staleRefs, err := d.store.StaleSourceRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stale documents: %w", err)
	}

	byDoc := make(map[string]*types.StaleDoc)
	var order []string
	for _, ref := range staleRefs {
		doc, ok := byDoc[ref.DocID]
		if !ok {
			doc = &types.StaleDoc{
				DocID:    ref.DocID,
				Filepath: ref.DocFilepath,
				Title:    ref.DocTitle,
			}
			byDoc[ref.DocID] = doc
			order = append(order, ref.DocID)
		}
		doc.StaleRefs = append(doc.StaleRefs, types.StaleRef{
			SourcePath: ref.FilePath,
			Reason:     d.reasonFor(ref),
		})
	}

	docs := make([]types.StaleDoc, 0, len(order))
	for _, docID := range order {
		doc := byDoc[docID]
		level, err := d.Level(ctx, docID)
		if err != nil {
			return nil, err
		}
		doc.Staleness = level
		docs = append(docs, *doc)
	}
	return docs, nil
}

func (d *Detector) reasonFor(ref types.StaleSourceRef) string {
	if ref.LastSyncedHash == "" || ref.LastSyncedHash == notFoundHash {
		return "not_found"
	}
	if _, err := os.Stat(d.resolve(ref.FilePath)); err != nil {
		return "deleted"
	}
	return "modified"
}

// StaleRefPaths returns the stale source-ref paths of one document.
func (d *Detector) StaleRefPaths(ctx context.Context, docID string) ([]string, error) {
	refs, err := d.store.SourceRefsByDocID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("stale refs of %s: %w", docID, err)
	}
	var paths []string
	for _, ref := range refs {
		if ref.Stale {
			paths = append(paths, ref.FilePath)
		}
	}
	return paths, nil
}

func (d *Detector) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.projectRoot, path)
}
