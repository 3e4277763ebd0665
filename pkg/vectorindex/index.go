// Package vectorindex provides an in-memory brute-force vector search index
// over pre-normalized float32 embeddings. Similarity is computed as a plain
// dot product, which equals cosine similarity for unit vectors.
package vectorindex

import (
	"errors"
	"fmt"
	"sync"

	"github.com/mdgraph/mdgraph/pkg/utils"
)

// DefaultCompactThreshold is the tombstone ratio that triggers automatic
// compaction after removals.
const DefaultCompactThreshold = 0.2

// ErrDimensionMismatch is returned when a vector does not match the dimension
// fixed by the first vector the index saw.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Entry is one indexed section vector.
type Entry struct {
	SectionID int64
	DocID     string
	Vector    []float32
}

// Hit is one search result, scored by dot-product similarity.
type Hit struct {
	SectionID  int64
	DocID      string
	Similarity float64
}

// Index is an in-memory exact nearest-neighbor index. Removals leave nil
// tombstones in the entry slice; the slice is compacted once the tombstone
// ratio reaches the configured threshold. Safe for concurrent use.
type Index struct {
	mu               sync.RWMutex
	entries          []*Entry
	slots            map[int64]int // section ID -> slot in entries
	dimension        int
	tombstones       int
	compactThreshold float64
}

// New creates an empty index. A threshold <= 0 selects
// DefaultCompactThreshold.
func New(compactThreshold float64) *Index {
	if compactThreshold <= 0 {
		compactThreshold = DefaultCompactThreshold
	}
	return &Index{
		slots:            make(map[int64]int),
		compactThreshold: compactThreshold,
	}
}

// Load replaces the index contents with the given entries, typically the
// embedded sections read from the store at startup. The first entry fixes the
// dimension if it is not fixed yet; entries with a different dimension are
// rejected.
func (ix *Index) Load(entries []Entry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.entries = make([]*Entry, 0, len(entries))
	ix.slots = make(map[int64]int, len(entries))
	ix.tombstones = 0

	for i := range entries {
		e := entries[i]
		if ix.dimension == 0 {
			ix.dimension = len(e.Vector)
		}
		if len(e.Vector) != ix.dimension {
			return fmt.Errorf("load section %d: %w: expected %d, got %d",
				e.SectionID, ErrDimensionMismatch, ix.dimension, len(e.Vector))
		}
		ix.slots[e.SectionID] = len(ix.entries)
		ix.entries = append(ix.entries, &e)
	}
	return nil
}

// Upsert adds or replaces the vector for a section. The first vector fixes
// the index dimension.
func (ix *Index) Upsert(sectionID int64, docID string, vector []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dimension == 0 {
		ix.dimension = len(vector)
	}
	if len(vector) != ix.dimension {
		return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, ix.dimension, len(vector))
	}

	entry := &Entry{SectionID: sectionID, DocID: docID, Vector: vector}
	if slot, ok := ix.slots[sectionID]; ok {
		ix.entries[slot] = entry
		return nil
	}
	ix.slots[sectionID] = len(ix.entries)
	ix.entries = append(ix.entries, entry)
	return nil
}

// Search returns the topK entries most similar to the query vector, sorted by
// similarity descending. The query must match the index dimension once one is
// fixed.
func (ix *Index) Search(query []float32, topK int) ([]Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.dimension > 0 && len(query) != ix.dimension {
		return nil, fmt.Errorf("query: %w: expected %d, got %d", ErrDimensionMismatch, ix.dimension, len(query))
	}
	if topK <= 0 {
		return nil, nil
	}

	scored := make([]utils.ScoredItem[*Entry], 0, len(ix.slots))
	for _, entry := range ix.entries {
		if entry == nil {
			continue
		}
		scored = append(scored, utils.ScoredItem[*Entry]{
			Item:  entry,
			Score: utils.DotProduct(query, entry.Vector),
		})
	}

	top := utils.TopKByScore(scored, topK)
	hits := make([]Hit, len(top))
	for i, s := range top {
		hits[i] = Hit{
			SectionID:  s.Item.SectionID,
			DocID:      s.Item.DocID,
			Similarity: s.Score,
		}
	}
	return hits, nil
}

// RemoveByDocID tombstones every entry belonging to a document and returns
// how many were removed.
func (ix *Index) RemoveByDocID(docID string) int {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	removed := 0
	for i, entry := range ix.entries {
		if entry != nil && entry.DocID == docID {
			delete(ix.slots, entry.SectionID)
			ix.entries[i] = nil
			ix.tombstones++
			removed++
		}
	}
	if removed > 0 {
		ix.maybeCompact()
	}
	return removed
}

// RemoveBySectionID tombstones a single entry. Returns false if the section
// was not indexed.
func (ix *Index) RemoveBySectionID(sectionID int64) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	slot, ok := ix.slots[sectionID]
	if !ok {
		return false
	}
	ix.entries[slot] = nil
	delete(ix.slots, sectionID)
	ix.tombstones++
	ix.maybeCompact()
	return true
}

// Compact drops all tombstones and rebuilds the slot map.
func (ix *Index) Compact() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.compact()
}

func (ix *Index) compact() {
	live := make([]*Entry, 0, len(ix.slots))
	slots := make(map[int64]int, len(ix.slots))
	for _, entry := range ix.entries {
		if entry != nil {
			slots[entry.SectionID] = len(live)
			live = append(live, entry)
		}
	}
	ix.entries = live
	ix.slots = slots
	ix.tombstones = 0
}

// maybeCompact compacts once the tombstone ratio reaches the threshold.
// Callers must hold the write lock.
func (ix *Index) maybeCompact() {
	if len(ix.entries) > 0 && float64(ix.tombstones)/float64(len(ix.entries)) >= ix.compactThreshold {
		ix.compact()
	}
}

// Size returns the number of live entries.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.slots)
}

// TotalAllocated returns the length of the entry slice including tombstones.
func (ix *Index) TotalAllocated() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dimension returns the vector dimension and whether it has been fixed yet.
func (ix *Index) Dimension() (int, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dimension, ix.dimension > 0
}

// IsEmpty reports whether the index holds no live entries.
func (ix *Index) IsEmpty() bool {
	return ix.Size() == 0
}
