package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdgraph/mdgraph/pkg/embedder"
	"github.com/mdgraph/mdgraph/pkg/graph"
	"github.com/mdgraph/mdgraph/pkg/types"
	"github.com/mdgraph/mdgraph/pkg/vectorindex"
)

type mockIndex struct {
	hits  []vectorindex.Hit
	empty bool
	err   error
}

func (m *mockIndex) Search(_ []float32, topK int) ([]vectorindex.Hit, error) {
	if m.err != nil {
		return nil, m.err
	}
	if topK > len(m.hits) {
		topK = len(m.hits)
	}
	return m.hits[:topK], nil
}

func (m *mockIndex) IsEmpty() bool { return m.empty }

type mockEmbedder struct {
	err        error
	queryCalls int
}

func (m *mockEmbedder) Embed(context.Context, string) (*embedder.Result, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &embedder.Result{Vector: []float32{1, 0}}, nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([]*embedder.Result, error) {
	out := make([]*embedder.Result, len(texts))
	for i := range texts {
		out[i] = &embedder.Result{Vector: []float32{1, 0}}
	}
	return out, nil
}

func (m *mockEmbedder) Close() error { return nil }

type queryMockEmbedder struct{ mockEmbedder }

func (m *queryMockEmbedder) EmbedQuery(context.Context, string) (*embedder.Result, error) {
	m.queryCalls++
	return &embedder.Result{Vector: []float32{0, 1}}, nil
}

type searchStore struct {
	docs     map[string]*types.Document
	sections map[int64]*types.Section
	byDoc    map[string][]types.Section
	ftsHits  []types.FulltextHit
	ftsErr   error
}

func (s *searchStore) SearchFulltext(context.Context, string, int) ([]types.FulltextHit, error) {
	return s.ftsHits, s.ftsErr
}

func (s *searchStore) FindDocumentByID(_ context.Context, id string) (*types.Document, error) {
	if doc, ok := s.docs[id]; ok {
		return doc, nil
	}
	return nil, errors.New("not found")
}

func (s *searchStore) FindSectionByID(_ context.Context, id int64) (*types.Section, error) {
	if sec, ok := s.sections[id]; ok {
		return sec, nil
	}
	return nil, errors.New("not found")
}

func (s *searchStore) FindSectionsByDocID(_ context.Context, docID string) ([]types.Section, error) {
	return s.byDoc[docID], nil
}

type mockWalker struct {
	forward map[string][]types.GraphNode
}

func (m *mockWalker) TraverseForward(_ context.Context, docID string, _ int, _ []types.LinkType) ([]types.GraphNode, error) {
	return m.forward[docID], nil
}

func (m *mockWalker) TraverseBackward(context.Context, string, int, []types.LinkType) ([]types.GraphNode, error) {
	return nil, nil
}

type mockStaleness struct {
	levels map[string]types.StalenessLevel
}

func (m *mockStaleness) Level(_ context.Context, docID string) (types.StalenessLevel, error) {
	if level, ok := m.levels[docID]; ok {
		return level, nil
	}
	return types.StalenessFresh, nil
}

func testConfig() Config {
	return Config{Alpha: 0.7, DefaultLimit: 10, MaxDepth: 2}
}

// twoDocFixture: document "a" has an embedded section and links to "b".
func twoDocFixture() (*mockIndex, *searchStore, *mockWalker) {
	index := &mockIndex{hits: []vectorindex.Hit{
		{SectionID: 1, DocID: "a", Similarity: 0.9},
	}}
	store := &searchStore{
		docs: map[string]*types.Document{
			"a": {ID: "a", Filepath: "a.md", Title: "Doc A", Type: types.DocTypeAPI},
			"b": {ID: "b", Filepath: "b.md", Title: "Doc B", Type: types.DocTypeGuide},
		},
		sections: map[int64]*types.Section{
			1: {ID: 1, DocID: "a", Heading: "Intro", Content: "a content"},
		},
		byDoc: map[string][]types.Section{
			"b": {{ID: 2, DocID: "b", Heading: "Start", Content: "b content"}},
		},
	}
	walker := &mockWalker{forward: map[string][]types.GraphNode{
		"a": {{DocID: "b", Title: "Doc B", Depth: 1, LinkType: types.LinkReferences, Direction: types.DirectionOutgoing}},
	}}
	return index, store, walker
}

func newSearcher(cfg Config, index *mockIndex, embed embedder.Client, store *searchStore, walker *mockWalker) *Searcher {
	return NewSearcher(cfg, index, embed, store, graph.NewTraversal(walker), &mockStaleness{}, nil)
}

func TestSplitWeights(t *testing.T) {
	beta, gamma := SplitWeights(0.7, false)
	assert.InDelta(t, 0.3, beta, 1e-9)
	assert.Zero(t, gamma)

	beta, gamma = SplitWeights(0.7, true)
	assert.InDelta(t, 0.09, gamma, 1e-9)
	assert.InDelta(t, 0.21, beta, 1e-9)
	assert.InDelta(t, 1.0, 0.7+beta+gamma, 1e-9)
}

func TestHybridRanksVectorAndGraph(t *testing.T) {
	index, store, walker := twoDocFixture()
	s := newSearcher(testConfig(), index, &mockEmbedder{}, store, walker)

	out, err := s.Search(context.Background(), types.SearchRequest{Query: "auth"})
	require.NoError(t, err)
	assert.Equal(t, types.SearchTypeHybrid, out.SearchType)
	require.Len(t, out.Results, 2)
	assert.Equal(t, 2, out.TotalFound)

	// a: 0.7*0.9 + 0.3*1.0; b: graph only, 0.3*1.0
	a := out.Results[0]
	assert.Equal(t, "a", a.DocID)
	assert.InDelta(t, 0.93, a.Score, 1e-9)
	assert.InDelta(t, 0.9, a.Breakdown.VectorSimilarity, 1e-9)
	assert.InDelta(t, 1.0, a.Breakdown.GraphProximity, 1e-9)
	assert.Contains(t, a.RelevanceReason, "vector similarity: 0.900")
	require.Len(t, a.Sections, 1)
	assert.Equal(t, "Intro", a.Sections[0].Heading)
	assert.InDelta(t, 0.9, a.Sections[0].Score, 1e-9)

	b := out.Results[1]
	assert.Equal(t, "b", b.DocID)
	assert.InDelta(t, 0.3, b.Score, 1e-9)
	assert.Zero(t, b.Breakdown.VectorSimilarity)
	assert.Contains(t, b.RelevanceReason, "graph proximity: 1.000")
	require.Len(t, b.Sections, 1)
	assert.Equal(t, "b content", b.Sections[0].Content)
	assert.Zero(t, b.Sections[0].Score)
}

func TestHybridBlendsFulltextSignal(t *testing.T) {
	index, store, walker := twoDocFixture()
	store.ftsHits = []types.FulltextHit{
		{SectionID: 1, DocID: "a", Rank: -2},
		{SectionID: 9, DocID: "zz", Rank: -1},
	}
	s := newSearcher(testConfig(), index, &mockEmbedder{}, store, walker)

	out, err := s.Search(context.Background(), types.SearchRequest{Query: "auth"})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)

	// beta=0.21, gamma=0.09; a's fts score normalizes to 1.0
	a := out.Results[0]
	assert.InDelta(t, 0.7*0.9+0.21*1.0+0.09*1.0, a.Score, 1e-9)
	assert.Contains(t, a.RelevanceReason, "fulltext: 1.000")

	// fulltext-only documents do not enter hybrid results
	for _, r := range out.Results {
		assert.NotEqual(t, "zz", r.DocID)
	}
}

func TestMultiSectionConsistencyBonus(t *testing.T) {
	hits := []vectorindex.Hit{
		{SectionID: 1, DocID: "m", Similarity: 0.9},
		{SectionID: 2, DocID: "m", Similarity: 0.8},
		{SectionID: 3, DocID: "m", Similarity: 0.7},
		{SectionID: 4, DocID: "m", Similarity: 0.6},
	}
	sim := aggregateSimilarity(hits)
	assert.InDelta(t, 0.9*0.8+0.8*0.2, sim, 1e-9)

	single := aggregateSimilarity(hits[:1])
	assert.InDelta(t, 0.9, single, 1e-9)
}

func TestHybridDocTypeFilter(t *testing.T) {
	index, store, walker := twoDocFixture()
	s := newSearcher(testConfig(), index, &mockEmbedder{}, store, walker)

	out, err := s.Search(context.Background(), types.SearchRequest{Query: "auth", DocType: types.DocTypeAPI})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "a", out.Results[0].DocID)
	assert.Equal(t, 1, out.TotalFound)
}

func TestHybridLimitKeepsTotalFound(t *testing.T) {
	index := &mockIndex{hits: []vectorindex.Hit{
		{SectionID: 1, DocID: "a", Similarity: 0.9},
		{SectionID: 2, DocID: "b", Similarity: 0.8},
		{SectionID: 3, DocID: "c", Similarity: 0.7},
	}}
	store := &searchStore{
		docs: map[string]*types.Document{
			"a": {ID: "a", Title: "A"}, "b": {ID: "b", Title: "B"}, "c": {ID: "c", Title: "C"},
		},
		sections: map[int64]*types.Section{
			1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3},
		},
	}
	walker := &mockWalker{}
	s := newSearcher(testConfig(), index, &mockEmbedder{}, store, walker)

	out, err := s.Search(context.Background(), types.SearchRequest{Query: "q", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out.Results, 2)
	assert.Equal(t, 3, out.TotalFound)
	assert.Equal(t, "a", out.Results[0].DocID)
	assert.Equal(t, "b", out.Results[1].DocID)
}

func TestHybridLinkTypeFilter(t *testing.T) {
	index, store, walker := twoDocFixture()
	s := newSearcher(testConfig(), index, &mockEmbedder{}, store, walker)

	out, err := s.Search(context.Background(), types.SearchRequest{
		Query:     "auth",
		LinkTypes: []types.LinkType{types.LinkDependsOn},
	})
	require.NoError(t, err)
	// b is reached via a "references" link, which the filter drops
	require.Len(t, out.Results, 1)
	assert.Equal(t, "a", out.Results[0].DocID)
}

func TestEmptyIndexFallsBackToFulltext(t *testing.T) {
	store := &searchStore{
		docs: map[string]*types.Document{
			"a": {ID: "a", Filepath: "a.md", Title: "Doc A", Type: types.DocTypeAPI},
		},
		ftsHits: []types.FulltextHit{
			{SectionID: 1, DocID: "a", Title: "Doc A", DocType: types.DocTypeAPI,
				Heading: "Intro", Snippet: "…auth…", Rank: -1.5},
		},
	}
	s := newSearcher(testConfig(), &mockIndex{empty: true}, &mockEmbedder{}, store, &mockWalker{})

	out, err := s.Search(context.Background(), types.SearchRequest{Query: "auth"})
	require.NoError(t, err)
	assert.Equal(t, types.SearchTypeFulltextFallback, out.SearchType)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "fulltext match", out.Results[0].RelevanceReason)
	assert.InDelta(t, 1.5, out.Results[0].Score, 1e-9)
	assert.Equal(t, "…auth…", out.Results[0].Sections[0].Content)
}

func TestEmbedFailureFallsBackToFulltext(t *testing.T) {
	index, store, walker := twoDocFixture()
	store.ftsHits = []types.FulltextHit{
		{SectionID: 1, DocID: "a", Rank: -1},
	}
	s := newSearcher(testConfig(), index, &mockEmbedder{err: errors.New("model offline")}, store, walker)

	out, err := s.Search(context.Background(), types.SearchRequest{Query: "auth"})
	require.NoError(t, err)
	assert.Equal(t, types.SearchTypeFulltextFallback, out.SearchType)
	require.Len(t, out.Results, 1)
}

func TestFallbackDedupesDocuments(t *testing.T) {
	store := &searchStore{
		docs: map[string]*types.Document{"a": {ID: "a", Title: "A"}},
		ftsHits: []types.FulltextHit{
			{SectionID: 1, DocID: "a", Rank: -2},
			{SectionID: 2, DocID: "a", Rank: -1},
		},
	}
	s := newSearcher(testConfig(), &mockIndex{empty: true}, &mockEmbedder{}, store, &mockWalker{})

	out, err := s.Search(context.Background(), types.SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, out.Results, 1)
}

func TestFallbackDocTypeFilter(t *testing.T) {
	store := &searchStore{
		docs: map[string]*types.Document{
			"a": {ID: "a", Title: "A", Type: types.DocTypeAPI},
			"b": {ID: "b", Title: "B", Type: types.DocTypeGuide},
		},
		ftsHits: []types.FulltextHit{
			{SectionID: 1, DocID: "a", DocType: types.DocTypeAPI, Rank: -2},
			{SectionID: 2, DocID: "b", DocType: types.DocTypeGuide, Rank: -1},
		},
	}
	s := newSearcher(testConfig(), &mockIndex{empty: true}, &mockEmbedder{}, store, &mockWalker{})

	out, err := s.Search(context.Background(), types.SearchRequest{Query: "q", DocType: types.DocTypeGuide})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "b", out.Results[0].DocID)
}

func TestQueryEmbedderPreferred(t *testing.T) {
	index, store, walker := twoDocFixture()
	embed := &queryMockEmbedder{}
	s := newSearcher(testConfig(), index, embed, store, walker)

	_, err := s.Search(context.Background(), types.SearchRequest{Query: "auth"})
	require.NoError(t, err)
	assert.Equal(t, 1, embed.queryCalls)
}
