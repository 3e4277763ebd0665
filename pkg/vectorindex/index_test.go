package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertAndSearch(t *testing.T) {
	ix := New(0)

	require.NoError(t, ix.Upsert(1, "doc-a", []float32{1, 0, 0}))
	require.NoError(t, ix.Upsert(2, "doc-a", []float32{0, 1, 0}))
	require.NoError(t, ix.Upsert(3, "doc-b", []float32{0.7071, 0.7071, 0}))

	hits, err := ix.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].SectionID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.Equal(t, int64(3), hits[1].SectionID)
	assert.InDelta(t, 0.7071, hits[1].Similarity, 1e-3)
}

func TestUpsertReplacesExisting(t *testing.T) {
	ix := New(0)

	require.NoError(t, ix.Upsert(1, "doc-a", []float32{1, 0}))
	require.NoError(t, ix.Upsert(1, "doc-a", []float32{0, 1}))

	assert.Equal(t, 1, ix.Size())
	assert.Equal(t, 1, ix.TotalAllocated())

	hits, err := ix.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestDimensionFixedByFirstVector(t *testing.T) {
	ix := New(0)

	_, fixed := ix.Dimension()
	assert.False(t, fixed)

	require.NoError(t, ix.Upsert(1, "doc-a", []float32{1, 0, 0}))

	dim, fixed := ix.Dimension()
	assert.True(t, fixed)
	assert.Equal(t, 3, dim)

	err := ix.Upsert(2, "doc-a", []float32{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = ix.Search([]float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDimensionFixedByLoad(t *testing.T) {
	ix := New(0)

	require.NoError(t, ix.Load([]Entry{
		{SectionID: 1, DocID: "doc-a", Vector: []float32{1, 0}},
		{SectionID: 2, DocID: "doc-b", Vector: []float32{0, 1}},
	}))

	dim, fixed := ix.Dimension()
	assert.True(t, fixed)
	assert.Equal(t, 2, dim)
	assert.Equal(t, 2, ix.Size())

	err := ix.Load([]Entry{
		{SectionID: 3, DocID: "doc-c", Vector: []float32{1, 0, 0}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestRemoveByDocID(t *testing.T) {
	// High threshold so removals stay as tombstones
	ix := New(0.99)

	require.NoError(t, ix.Upsert(1, "doc-a", []float32{1, 0}))
	require.NoError(t, ix.Upsert(2, "doc-a", []float32{0, 1}))
	require.NoError(t, ix.Upsert(3, "doc-b", []float32{1, 0}))

	removed := ix.RemoveByDocID("doc-a")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, ix.Size())
	assert.Equal(t, 3, ix.TotalAllocated())

	hits, err := ix.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc-b", hits[0].DocID)

	assert.Equal(t, 0, ix.RemoveByDocID("doc-a"))
}

func TestRemoveBySectionID(t *testing.T) {
	ix := New(0.99)

	require.NoError(t, ix.Upsert(1, "doc-a", []float32{1, 0}))
	require.NoError(t, ix.Upsert(2, "doc-a", []float32{0, 1}))

	assert.True(t, ix.RemoveBySectionID(1))
	assert.False(t, ix.RemoveBySectionID(1))
	assert.Equal(t, 1, ix.Size())
}

func TestAutoCompaction(t *testing.T) {
	ix := New(0.2)

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, ix.Upsert(i, "doc-a", []float32{1, 0}))
	}
	require.NoError(t, ix.Upsert(11, "doc-b", []float32{0, 1}))

	// Removing 10 of 11 entries crosses the 20% threshold
	ix.RemoveByDocID("doc-a")

	assert.Equal(t, 1, ix.Size())
	assert.Equal(t, 1, ix.TotalAllocated())
}

func TestExplicitCompact(t *testing.T) {
	ix := New(0.99)

	require.NoError(t, ix.Upsert(1, "doc-a", []float32{1, 0}))
	require.NoError(t, ix.Upsert(2, "doc-b", []float32{0, 1}))
	ix.RemoveBySectionID(1)

	assert.Equal(t, 2, ix.TotalAllocated())
	ix.Compact()
	assert.Equal(t, 1, ix.TotalAllocated())
	assert.Equal(t, 1, ix.Size())

	// Upsert after compaction still works against the rebuilt slot map
	require.NoError(t, ix.Upsert(3, "doc-c", []float32{1, 0}))
	hits, err := ix.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := New(0)
	assert.True(t, ix.IsEmpty())

	hits, err := ix.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
