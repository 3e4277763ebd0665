// Package handlers implements the gin handlers of the HTTP API.
package handlers

import (
	"context"

	"github.com/mdgraph/mdgraph/pkg/linker"
	"github.com/mdgraph/mdgraph/pkg/types"
)

// Engine is the subset of the retrieval engine the HTTP API calls into.
type Engine interface {
	Search(ctx context.Context, req types.SearchRequest) (*types.SearchOutput, error)
	Reindex(ctx context.Context, force bool) (*types.ReindexResult, error)
	Status(ctx context.Context) (*types.Status, error)
	StaleDocuments(ctx context.Context) ([]types.StaleDoc, error)
	Related(ctx context.Context, docID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error)
	AmbiguousLinks() []linker.AmbiguousName
}
