// Package search ranks documents by fusing vector similarity, link-graph
// proximity, and FTS5 keyword relevance into a single score.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/mdgraph/mdgraph/pkg/embedder"
	"github.com/mdgraph/mdgraph/pkg/graph"
	"github.com/mdgraph/mdgraph/pkg/types"
	"github.com/mdgraph/mdgraph/pkg/vectorindex"
)

const (
	// candidateFactor widens the vector and fulltext candidate pools beyond
	// the requested limit so graph fusion has material to rerank.
	candidateFactor = 10

	// seedFactor caps how many top vector hits seed graph traversal.
	seedFactor = 2

	fallbackContentLimit = 500
)

// VectorSearcher is the in-memory vector index surface used by search.
type VectorSearcher interface {
	Search(query []float32, topK int) ([]vectorindex.Hit, error)
	IsEmpty() bool
}

// Store is the persistence surface used to hydrate results.
type Store interface {
	SearchFulltext(ctx context.Context, query string, limit int) ([]types.FulltextHit, error)
	FindDocumentByID(ctx context.Context, id string) (*types.Document, error)
	FindSectionByID(ctx context.Context, id int64) (*types.Section, error)
	FindSectionsByDocID(ctx context.Context, docID string) ([]types.Section, error)
}

// StalenessProvider reports a document's staleness level.
type StalenessProvider interface {
	Level(ctx context.Context, docID string) (types.StalenessLevel, error)
}

// Config carries the search tuning knobs.
type Config struct {
	Alpha        float64
	DefaultLimit int
	MaxDepth     int
}

// Searcher runs hybrid searches over the corpus.
type Searcher struct {
	cfg       Config
	index     VectorSearcher
	embed     embedder.Client
	store     Store
	traversal *graph.Traversal
	staleness StalenessProvider
	logger    *slog.Logger
}

func NewSearcher(cfg Config, index VectorSearcher, embed embedder.Client, store Store,
	traversal *graph.Traversal, staleness StalenessProvider, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{
		cfg:       cfg,
		index:     index,
		embed:     embed,
		store:     store,
		traversal: traversal,
		staleness: staleness,
		logger:    logger,
	}
}

// Search runs a hybrid search. When the vector index is empty, or the hybrid
// path fails, it degrades to pure fulltext search instead of erroring.
func (s *Searcher) Search(ctx context.Context, req types.SearchRequest) (*types.SearchOutput, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	if s.index.IsEmpty() {
		s.logger.Info("vector index empty, falling back to fulltext search")
		return s.fulltextFallback(ctx, req, limit)
	}

	out, err := s.hybrid(ctx, req, limit)
	if err != nil {
		s.logger.Error("hybrid search failed, falling back to fulltext", "error", err)
		return s.fulltextFallback(ctx, req, limit)
	}
	return out, nil
}

type scoredDoc struct {
	docID          string
	finalScore     float64
	vectorSim      float64
	graphProximity float64
	ftsScore       float64
	sectionHits    []vectorindex.Hit
}

func (s *Searcher) hybrid(ctx context.Context, req types.SearchRequest, limit int) (*types.SearchOutput, error) {
	maxDepth := req.Depth
	if maxDepth <= 0 {
		maxDepth = s.cfg.MaxDepth
	}

	queryVector, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	candidateCount := limit * candidateFactor
	vectorHits, err := s.index.Search(queryVector, candidateCount)
	if err != nil {
		return nil, err
	}
	if len(vectorHits) == 0 {
		return s.fulltextFallback(ctx, req, limit)
	}

	ftsScores, err := s.fulltextScores(ctx, req.Query, candidateCount)
	if err != nil {
		return nil, err
	}

	// Seed traversal with the documents behind the best vector hits
	seeds := make(map[string]struct{})
	seedCount := limit * seedFactor
	if seedCount > len(vectorHits) {
		seedCount = len(vectorHits)
	}
	for _, hit := range vectorHits[:seedCount] {
		seeds[hit.DocID] = struct{}{}
	}

	linkTypeFilter := make(map[types.LinkType]struct{}, len(req.LinkTypes))
	for _, lt := range req.LinkTypes {
		linkTypeFilter[lt] = struct{}{}
	}

	graphDepths := make(map[string]int)
	for docID := range seeds {
		nodes, err := s.traversal.Traverse(ctx, docID, maxDepth, nil)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			if len(linkTypeFilter) > 0 {
				if _, ok := linkTypeFilter[node.LinkType]; !ok {
					continue
				}
			}
			if depth, ok := graphDepths[node.DocID]; !ok || node.Depth < depth {
				graphDepths[node.DocID] = node.Depth
			}
		}
	}

	proximity := make(map[string]float64, len(graphDepths)+len(seeds))
	for docID, depth := range graphDepths {
		if depth > 0 {
			proximity[docID] = 1.0 / float64(depth)
		}
	}
	for docID := range seeds {
		if proximity[docID] < 1.0 {
			proximity[docID] = 1.0
		}
	}

	// Aggregate vector hits per document
	byDoc := make(map[string]*scoredDoc)
	var order []string
	for _, hit := range vectorHits {
		doc, ok := byDoc[hit.DocID]
		if !ok {
			doc = &scoredDoc{docID: hit.DocID}
			byDoc[hit.DocID] = doc
			order = append(order, hit.DocID)
		}
		doc.sectionHits = append(doc.sectionHits, hit)
	}
	for docID := range graphDepths {
		if _, ok := byDoc[docID]; !ok {
			byDoc[docID] = &scoredDoc{docID: docID}
			order = append(order, docID)
		}
	}

	alpha := s.cfg.Alpha
	beta, gamma := SplitWeights(alpha, len(ftsScores) > 0)

	scored := make([]*scoredDoc, 0, len(order))
	for _, docID := range order {
		doc := byDoc[docID]
		doc.vectorSim = aggregateSimilarity(doc.sectionHits)
		doc.graphProximity = proximity[docID]
		doc.ftsScore = ftsScores[docID]
		doc.finalScore = alpha*doc.vectorSim + beta*doc.graphProximity + gamma*doc.ftsScore
		scored = append(scored, doc)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].finalScore > scored[j].finalScore
	})

	if req.DocType != "" {
		filtered := scored[:0]
		for _, doc := range scored {
			d, err := s.store.FindDocumentByID(ctx, doc.docID)
			if err == nil && d.Type == req.DocType {
				filtered = append(filtered, doc)
			}
		}
		scored = filtered
	}

	totalFound := len(scored)
	if len(scored) > limit {
		scored = scored[:limit]
	}

	results, err := s.buildResults(ctx, scored)
	if err != nil {
		return nil, err
	}
	return &types.SearchOutput{
		Results:    results,
		TotalFound: totalFound,
		SearchType: types.SearchTypeHybrid,
	}, nil
}

func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if qe, ok := s.embed.(embedder.QueryEmbedder); ok {
		res, err := qe.EmbedQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		return res.Vector, nil
	}
	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return res.Vector, nil
}

// fulltextScores normalizes FTS5 ranks into a 0..1 score per document,
// keeping the best section per doc. FTS5 ranks are negative with larger
// magnitude meaning more relevant.
func (s *Searcher) fulltextScores(ctx context.Context, query string, limit int) (map[string]float64, error) {
	hits, err := s.store.SearchFulltext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	maxRank := 0.0
	for _, hit := range hits {
		if r := math.Abs(hit.Rank); r > maxRank {
			maxRank = r
		}
	}

	scores := make(map[string]float64, len(hits))
	for _, hit := range hits {
		var normalized float64
		if maxRank > 0 {
			normalized = math.Abs(hit.Rank) / maxRank
		}
		if normalized > scores[hit.DocID] {
			scores[hit.DocID] = normalized
		}
	}
	return scores, nil
}

// aggregateSimilarity reduces a document's section hits to one similarity.
// Documents with several matching sections get a consistency bonus: the max
// blended with the mean of the top three.
func aggregateSimilarity(hits []vectorindex.Hit) float64 {
	if len(hits) == 0 {
		return 0
	}

	max := 0.0
	sims := make([]float64, len(hits))
	for i, hit := range hits {
		sims[i] = hit.Similarity
		if hit.Similarity > max {
			max = hit.Similarity
		}
	}
	if len(sims) == 1 {
		return max
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(sims)))
	n := 3
	if len(sims) < n {
		n = len(sims)
	}
	sum := 0.0
	for _, sim := range sims[:n] {
		sum += sim
	}
	return max*0.8 + (sum/float64(n))*0.2
}

func (s *Searcher) buildResults(ctx context.Context, scored []*scoredDoc) ([]types.SearchResult, error) {
	results := make([]types.SearchResult, 0, len(scored))
	for _, doc := range scored {
		d, err := s.store.FindDocumentByID(ctx, doc.docID)
		if err != nil {
			continue
		}

		var matches []types.SectionMatch
		for _, hit := range doc.sectionHits {
			if len(matches) == 3 {
				break
			}
			section, err := s.store.FindSectionByID(ctx, hit.SectionID)
			if err != nil {
				continue
			}
			matches = append(matches, types.SectionMatch{
				SectionID: hit.SectionID,
				Heading:   section.Heading,
				Content:   section.Content,
				Score:     hit.Similarity,
			})
		}

		// Graph-only documents still show their opening section
		if len(matches) == 0 {
			sections, err := s.store.FindSectionsByDocID(ctx, doc.docID)
			if err == nil && len(sections) > 0 {
				matches = append(matches, types.SectionMatch{
					SectionID: sections[0].ID,
					Heading:   sections[0].Heading,
					Content:   truncate(sections[0].Content, fallbackContentLimit),
					Score:     0,
				})
			}
		}

		level, err := s.staleness.Level(ctx, doc.docID)
		if err != nil {
			level = types.StalenessFresh
		}

		results = append(results, types.SearchResult{
			DocID:    d.ID,
			Filepath: d.Filepath,
			Title:    d.Title,
			Sections: matches,
			Score:    doc.finalScore,
			Breakdown: types.ScoreBreakdown{
				VectorSimilarity: doc.vectorSim,
				GraphProximity:   doc.graphProximity,
			},
			RelevanceReason: relevanceReason(doc),
			Staleness:       level,
		})
	}
	return results, nil
}

func (s *Searcher) fulltextFallback(ctx context.Context, req types.SearchRequest, limit int) (*types.SearchOutput, error) {
	hits, err := s.store.SearchFulltext(ctx, req.Query, limit*2)
	if err != nil {
		return nil, err
	}

	if req.DocType != "" {
		filtered := hits[:0]
		for _, hit := range hits {
			if hit.DocType == req.DocType {
				filtered = append(filtered, hit)
			}
		}
		hits = filtered
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]types.SearchResult, 0, len(hits))
	seen := make(map[string]struct{})
	for _, hit := range hits {
		if _, ok := seen[hit.DocID]; ok {
			continue
		}
		seen[hit.DocID] = struct{}{}

		doc, err := s.store.FindDocumentByID(ctx, hit.DocID)
		if err != nil {
			continue
		}

		level, err := s.staleness.Level(ctx, hit.DocID)
		if err != nil {
			level = types.StalenessFresh
		}

		score := math.Abs(hit.Rank)
		results = append(results, types.SearchResult{
			DocID:    doc.ID,
			Filepath: doc.Filepath,
			Title:    doc.Title,
			Sections: []types.SectionMatch{{
				SectionID: hit.SectionID,
				Heading:   hit.Heading,
				Content:   hit.Snippet,
				Score:     score,
			}},
			Score:           score,
			RelevanceReason: "fulltext match",
			Staleness:       level,
		})
	}

	return &types.SearchOutput{
		Results:    results,
		TotalFound: len(results),
		SearchType: types.SearchTypeFulltextFallback,
	}, nil
}

func relevanceReason(doc *scoredDoc) string {
	var reasons []string
	if doc.vectorSim > 0 {
		reasons = append(reasons, fmt.Sprintf("vector similarity: %.3f", doc.vectorSim))
	}
	if doc.graphProximity > 0 {
		reasons = append(reasons, fmt.Sprintf("graph proximity: %.3f", doc.graphProximity))
	}
	if doc.ftsScore > 0 {
		reasons = append(reasons, fmt.Sprintf("fulltext: %.3f", doc.ftsScore))
	}
	if len(reasons) == 0 {
		return "graph-connected"
	}
	return strings.Join(reasons, ", ")
}

// truncate cuts content at a rune boundary.
func truncate(content string, limit int) string {
	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}
	return string(runes[:limit])
}
