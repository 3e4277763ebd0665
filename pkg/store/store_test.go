package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdgraph/mdgraph/pkg/types"
	"github.com/mdgraph/mdgraph/pkg/utils"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertDoc(t *testing.T, s *Store, id, filepath, title string, docType types.DocType) {
	t.Helper()
	err := s.UpsertDocument(context.Background(), &types.Document{
		ID:       id,
		Filepath: filepath,
		Title:    title,
		Type:     docType,
		BodyHash: utils.HashString(filepath),
	})
	require.NoError(t, err)
}

func TestDocumentUpsertAndFind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	insertDoc(t, s, "d1", "api/auth.md", "Auth API", types.DocTypeAPI)

	doc, err := s.FindDocumentByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Auth API", doc.Title)
	assert.Equal(t, types.DocTypeAPI, doc.Type)
	assert.False(t, doc.CreatedAt.IsZero())

	byPath, err := s.FindDocumentByFilepath(ctx, "api/auth.md")
	require.NoError(t, err)
	assert.Equal(t, "d1", byPath.ID)

	// Upsert with the same ID updates in place
	err = s.UpsertDocument(ctx, &types.Document{
		ID: "d1", Filepath: "api/auth.md", Title: "Auth API v2",
		Type: types.DocTypeAPI, BodyHash: "h2",
	})
	require.NoError(t, err)

	doc, err = s.FindDocumentByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "Auth API v2", doc.Title)
	assert.Equal(t, "h2", doc.BodyHash)

	n, err := s.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDocumentNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.FindDocumentByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindDocumentByFilepath(context.Background(), "nope.md")
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := s.DocIDByFilepath(context.Background(), "nope.md")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestReplaceSections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "d1", "guide.md", "Guide", types.DocTypeGuide)

	inserted, err := s.ReplaceSections(ctx, "d1", []types.Section{
		{Heading: "", Order: 0, Content: "intro text", ContentHash: "h0"},
		{Heading: "Setup", Order: 1, Content: "setup text", ContentHash: "h1", TokenCount: 12},
	})
	require.NoError(t, err)
	require.Len(t, inserted, 2)
	assert.Empty(t, inserted[0].Heading)
	assert.Equal(t, "Setup", inserted[1].Heading)
	assert.NotZero(t, inserted[1].ID)
	assert.Equal(t, 12, inserted[1].TokenCount)

	// Replacing again swaps the rows out entirely
	replaced, err := s.ReplaceSections(ctx, "d1", []types.Section{
		{Heading: "Only", Order: 0, Content: "new text", ContentHash: "h2"},
	})
	require.NoError(t, err)
	require.Len(t, replaced, 1)
	assert.NotEqual(t, inserted[0].ID, replaced[0].ID)

	total, embedded, err := s.SectionCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, embedded)
}

func TestVectorBlobRoundtrip(t *testing.T) {
	vec := []float32{0.1, -0.5, 1.0, 0}
	decoded, err := DecodeVector(EncodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestUpdateEmbeddingAndLoadEmbedded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "d1", "a.md", "A", types.DocTypeSpec)

	sections, err := s.ReplaceSections(ctx, "d1", []types.Section{
		{Order: 0, Content: "one", ContentHash: "h0"},
		{Order: 1, Content: "two", ContentHash: "h1"},
	})
	require.NoError(t, err)

	vec := []float32{0.6, 0.8}
	require.NoError(t, s.UpdateEmbedding(ctx, sections[0].ID, vec, "test-model"))

	entries, err := s.LoadEmbedded(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, sections[0].ID, entries[0].SectionID)
	assert.Equal(t, "d1", entries[0].DocID)
	assert.Equal(t, vec, entries[0].Vector)

	sec, err := s.FindSectionByID(ctx, sections[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "test-model", sec.EmbeddingModel)
	assert.Equal(t, vec, sec.Embedding)

	_, embedded, err := s.SectionCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, embedded)

	assert.ErrorIs(t, s.UpdateEmbedding(ctx, 99999, vec, "m"), ErrNotFound)
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "d1", "a.md", "A", types.DocTypeSpec)
	insertDoc(t, s, "d2", "b.md", "B", types.DocTypeSpec)

	_, err := s.ReplaceSections(ctx, "d1", []types.Section{
		{Order: 0, Content: "body", ContentHash: "h"},
	})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceLinks(ctx, "d1", []types.Link{
		{TargetDocID: "d2", Type: types.LinkReferences, TargetTitle: "B"},
	}))
	require.NoError(t, s.SyncSourceRefs(ctx, "d1", []RefHash{{FilePath: "src/a.go", Hash: "x"}}))

	require.NoError(t, s.DeleteDocument(ctx, "d1"))

	total, _, err := s.SectionCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	linksTotal, _, _, err := s.LinkCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, linksTotal)

	refsTotal, _, err := s.RefSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, refsTotal)
}

func TestReplaceLinksDedupes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "d1", "a.md", "A", types.DocTypeSpec)
	insertDoc(t, s, "d2", "b.md", "B", types.DocTypeSpec)

	err := s.ReplaceLinks(ctx, "d1", []types.Link{
		{TargetDocID: "d2", Type: types.LinkReferences, TargetTitle: "B", Context: "first"},
		{TargetDocID: "d2", Type: types.LinkReferences, TargetTitle: "B", Context: "duplicate"},
		{TargetDocID: "d2", Type: types.LinkDependsOn, TargetTitle: "B"},
	})
	require.NoError(t, err)

	links, err := s.LinksBySourceDocID(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, links, 2)

	// The first occurrence of a duplicate (target, type) pair wins
	for _, link := range links {
		if link.Type == types.LinkReferences {
			assert.Equal(t, "first", link.Context)
		}
	}
}

func TestDanglingLinkResolution(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "d1", "a.md", "A", types.DocTypeSpec)

	require.NoError(t, s.ReplaceLinks(ctx, "d1", []types.Link{
		{Type: types.LinkReferences, TargetTitle: "Future Doc"},
	}))

	dangling, err := s.DanglingLinks(ctx)
	require.NoError(t, err)
	require.Len(t, dangling, 1)
	assert.Empty(t, dangling[0].TargetDocID)

	insertDoc(t, s, "d2", "future.md", "Future Doc", types.DocTypeDesign)
	n, err := s.ResolveDanglingLinks(ctx, "Future Doc", "d2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	dangling, err = s.DanglingLinks(ctx)
	require.NoError(t, err)
	assert.Empty(t, dangling)

	total, resolved, danglingCount, err := s.LinkCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 0, danglingCount)
}

// buildChain creates a -> b -> c -> d with references links.
func buildChain(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	insertDoc(t, s, "a", "a.md", "A", types.DocTypeSpec)
	insertDoc(t, s, "b", "b.md", "B", types.DocTypeSpec)
	insertDoc(t, s, "c", "c.md", "C", types.DocTypeSpec)
	insertDoc(t, s, "d", "d.md", "D", types.DocTypeSpec)

	require.NoError(t, s.ReplaceLinks(ctx, "a", []types.Link{{TargetDocID: "b", Type: types.LinkReferences, TargetTitle: "B"}}))
	require.NoError(t, s.ReplaceLinks(ctx, "b", []types.Link{{TargetDocID: "c", Type: types.LinkReferences, TargetTitle: "C"}}))
	require.NoError(t, s.ReplaceLinks(ctx, "c", []types.Link{{TargetDocID: "d", Type: types.LinkReferences, TargetTitle: "D"}}))
}

func TestTraverseForwardDepthLimit(t *testing.T) {
	s := openTestStore(t)
	buildChain(t, s)
	ctx := context.Background()

	nodes, err := s.TraverseForward(ctx, "a", 2, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "b", nodes[0].DocID)
	assert.Equal(t, 1, nodes[0].Depth)
	assert.Equal(t, "c", nodes[1].DocID)
	assert.Equal(t, 2, nodes[1].Depth)

	nodes, err = s.TraverseForward(ctx, "a", 3, nil)
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
}

func TestTraverseBackward(t *testing.T) {
	s := openTestStore(t)
	buildChain(t, s)

	nodes, err := s.TraverseBackward(context.Background(), "c", 2, nil)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "b", nodes[0].DocID)
	assert.Equal(t, 1, nodes[0].Depth)
	assert.Equal(t, types.DirectionIncoming, nodes[0].Direction)
	assert.Equal(t, "a", nodes[1].DocID)
	assert.Equal(t, 2, nodes[1].Depth)
}

func TestTraverseLinkTypeFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "a", "a.md", "A", types.DocTypeSpec)
	insertDoc(t, s, "b", "b.md", "B", types.DocTypeSpec)
	insertDoc(t, s, "c", "c.md", "C", types.DocTypeSpec)

	require.NoError(t, s.ReplaceLinks(ctx, "a", []types.Link{
		{TargetDocID: "b", Type: types.LinkReferences, TargetTitle: "B"},
		{TargetDocID: "c", Type: types.LinkDependsOn, TargetTitle: "C"},
	}))

	nodes, err := s.TraverseForward(ctx, "a", 2, []types.LinkType{types.LinkDependsOn})
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "c", nodes[0].DocID)
	assert.Equal(t, types.LinkDependsOn, nodes[0].LinkType)
}

func TestTraverseCycleTerminates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "a", "a.md", "A", types.DocTypeSpec)
	insertDoc(t, s, "b", "b.md", "B", types.DocTypeSpec)

	require.NoError(t, s.ReplaceLinks(ctx, "a", []types.Link{{TargetDocID: "b", Type: types.LinkReferences, TargetTitle: "B"}}))
	require.NoError(t, s.ReplaceLinks(ctx, "b", []types.Link{{TargetDocID: "a", Type: types.LinkReferences, TargetTitle: "A"}}))

	nodes, err := s.TraverseForward(ctx, "a", 5, nil)
	require.NoError(t, err)
	// The center document is excluded even when the cycle returns to it
	require.Len(t, nodes, 1)
	assert.Equal(t, "b", nodes[0].DocID)
	assert.Equal(t, 1, nodes[0].Depth)
}

func TestSourceRefStaleness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "d1", "a.md", "A", types.DocTypeSpec)

	require.NoError(t, s.SyncSourceRefs(ctx, "d1", []RefHash{
		{FilePath: "src/one.go", Hash: "hash-one"},
		{FilePath: "src/two.go", Hash: "hash-two"},
	}))

	refs, err := s.SourceRefsByDocID(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.False(t, refs[0].Stale)

	// Unchanged hash stays fresh, changed hash goes stale
	require.NoError(t, s.UpdateRefStaleness(ctx, "src/one.go", "hash-one"))
	require.NoError(t, s.UpdateRefStaleness(ctx, "src/two.go", "different"))

	stale, err := s.StaleSourceRefs(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "src/two.go", stale[0].FilePath)
	assert.Equal(t, "A", stale[0].DocTitle)

	total, staleCount, err := s.RefSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, staleCount)
}

func TestFulltextSearch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "d1", "auth.md", "Auth", types.DocTypeAPI)
	insertDoc(t, s, "d2", "cache.md", "Cache", types.DocTypeDesign)

	_, err := s.ReplaceSections(ctx, "d1", []types.Section{
		{Heading: "Login", Order: 0, Content: "authentication flow with tokens", ContentHash: "h0"},
	})
	require.NoError(t, err)
	_, err = s.ReplaceSections(ctx, "d2", []types.Section{
		{Heading: "Eviction", Order: 0, Content: "cache eviction policy", ContentHash: "h1"},
	})
	require.NoError(t, err)

	hits, err := s.SearchFulltext(ctx, "authentication", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].DocID)
	assert.Equal(t, "Login", hits[0].Heading)
	assert.True(t, hits[0].Rank < 0, "FTS5 rank is negative")

	// Empty and syntax-heavy queries degrade to no results, not errors
	hits, err = s.SearchFulltext(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.SearchFulltext(ctx, `"NEAR(`, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFulltextSectionDeleteSyncsFTS(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	insertDoc(t, s, "d1", "a.md", "A", types.DocTypeSpec)

	_, err := s.ReplaceSections(ctx, "d1", []types.Section{
		{Order: 0, Content: "searchable elephant content", ContentHash: "h0"},
	})
	require.NoError(t, err)

	hits, err := s.SearchFulltext(ctx, "elephant", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = s.ReplaceSections(ctx, "d1", []types.Section{
		{Order: 0, Content: "nothing to see", ContentHash: "h1"},
	})
	require.NoError(t, err)

	hits, err = s.SearchFulltext(ctx, "elephant", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSanitizeFTSQuery(t *testing.T) {
	assert.Equal(t, `"hello" "world"`, sanitizeFTSQuery("  hello   world "))
	assert.Equal(t, `"say""hi"""`, sanitizeFTSQuery(`say"hi"`))
	assert.Equal(t, `"AND"`, sanitizeFTSQuery("AND"))
	assert.Equal(t, "", sanitizeFTSQuery("   "))
}
