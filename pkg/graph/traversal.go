// Package graph provides link-graph traversal and proximity scoring over the
// document link store.
package graph

import (
	"context"
	"fmt"
	"sort"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// Walker is the link-storage collaborator traversal runs on. The store
// implements it with recursive CTE queries.
type Walker interface {
	// TraverseForward follows outgoing links from centerDocID up to maxDepth
	// hops, returning each reachable document once with its minimum depth.
	TraverseForward(ctx context.Context, centerDocID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error)

	// TraverseBackward follows incoming links.
	TraverseBackward(ctx context.Context, centerDocID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error)
}

// Traversal explores the link graph around a document.
type Traversal struct {
	walker Walker
}

// NewTraversal creates a Traversal over the given link storage.
func NewTraversal(walker Walker) *Traversal {
	return &Traversal{walker: walker}
}

// Forward follows outgoing links only.
func (t *Traversal) Forward(ctx context.Context, centerDocID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error) {
	return t.walker.TraverseForward(ctx, centerDocID, maxDepth, linkTypes)
}

// Backward follows incoming links only.
func (t *Traversal) Backward(ctx context.Context, centerDocID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error) {
	return t.walker.TraverseBackward(ctx, centerDocID, maxDepth, linkTypes)
}

// Traverse explores links in both directions from a center document up to
// maxDepth hops. A document reachable both ways keeps the entry with the
// smaller depth. Results are sorted by (depth, title).
func (t *Traversal) Traverse(ctx context.Context, centerDocID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error) {
	forward, err := t.walker.TraverseForward(ctx, centerDocID, maxDepth, linkTypes)
	if err != nil {
		return nil, fmt.Errorf("traverse forward: %w", err)
	}
	backward, err := t.walker.TraverseBackward(ctx, centerDocID, maxDepth, linkTypes)
	if err != nil {
		return nil, fmt.Errorf("traverse backward: %w", err)
	}

	merged := make(map[string]types.GraphNode, len(forward)+len(backward))
	for _, node := range append(forward, backward...) {
		existing, ok := merged[node.DocID]
		if !ok || node.Depth < existing.Depth {
			merged[node.DocID] = node
		}
	}

	nodes := make([]types.GraphNode, 0, len(merged))
	for _, node := range merged {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].Title < nodes[j].Title
	})
	return nodes, nil
}
