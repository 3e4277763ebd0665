package mdgraph

import (
	"context"

	"github.com/mdgraph/mdgraph/pkg/types"
)

// Searcher is the read-side query surface of the engine.
type Searcher interface {
	Search(ctx context.Context, req types.SearchRequest) (*types.SearchOutput, error)
	Related(ctx context.Context, docID string, maxDepth int, linkTypes []types.LinkType) ([]types.GraphNode, error)
}

// Indexer mutates the index from the filesystem.
type Indexer interface {
	ProcessFile(ctx context.Context, relPath, content string, force bool) (*types.FileResult, error)
	Reindex(ctx context.Context, force bool) (*types.ReindexResult, error)
	DrainEmbeddings(ctx context.Context) error
}

// Maintainer reports on index health.
type Maintainer interface {
	Status(ctx context.Context) (*types.Status, error)
	StaleDocuments(ctx context.Context) ([]types.StaleDoc, error)
}

var _ interface {
	Searcher
	Indexer
	Maintainer
} = (*Engine)(nil)
