package graph

import (
	"sort"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// ProximityResult is one document's graph proximity with the hop distance it
// came from.
type ProximityResult struct {
	DocID       string
	Proximity   float64
	HopDistance int
}

// Scorer converts hop distances into graph proximity scores:
// proximity = 1/hops, so 1-hop scores 1.0, 2-hop 0.5, 3-hop 0.33.
// Hop distance 0 scores 0; seeding the center document is the caller's call.
type Scorer struct{}

// NewScorer creates a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score maps each document in nodes to its proximity score. A document that
// appears at several depths keeps the highest proximity (closest hop).
func (s *Scorer) Score(nodes []types.GraphNode) map[string]float64 {
	scores := make(map[string]float64, len(nodes))
	for _, node := range nodes {
		proximity := proximityOf(node.Depth)
		if existing, ok := scores[node.DocID]; !ok || proximity > existing {
			scores[node.DocID] = proximity
		}
	}
	return scores
}

// ScoreDetailed returns per-document proximity results sorted by proximity
// descending.
func (s *Scorer) ScoreDetailed(nodes []types.GraphNode) []ProximityResult {
	byDoc := make(map[string]ProximityResult, len(nodes))
	for _, node := range nodes {
		proximity := proximityOf(node.Depth)
		if existing, ok := byDoc[node.DocID]; !ok || proximity > existing.Proximity {
			byDoc[node.DocID] = ProximityResult{
				DocID:       node.DocID,
				Proximity:   proximity,
				HopDistance: node.Depth,
			}
		}
	}

	results := make([]ProximityResult, 0, len(byDoc))
	for _, r := range byDoc {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Proximity > results[j].Proximity
	})
	return results
}

func proximityOf(depth int) float64 {
	if depth <= 0 {
		return 0
	}
	return 1.0 / float64(depth)
}
