// Package embedder provides text embedding clients for the mdgraph engine.
//
// Two providers are supported: the OpenAI embeddings API and a local
// in-process model via go-embedeverything. Both return unit-normalized
// vectors so the vector index can rank by plain dot product. Clients can be
// wrapped with retry and circuit-breaker decorators for resilience against
// flaky providers.
package embedder

import (
	"context"
	"errors"
)

// ErrNoResult is returned when a provider responds without an embedding.
var ErrNoResult = errors.New("no embedding returned")

// Result is one embedding with its provenance.
type Result struct {
	Vector     []float32
	Model      string
	Dimensions int
}

// Client generates embeddings for text.
type Client interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) (*Result, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	// Results are positional: results[i] corresponds to texts[i].
	EmbedBatch(ctx context.Context, texts []string) ([]*Result, error)

	// Close cleans up any resources.
	Close() error
}

// QueryEmbedder is implemented by clients whose model distinguishes query
// text from passage text (e.g. E5-style instruction prefixes). Search code
// prefers EmbedQuery when available.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) (*Result, error)
}

// Config holds common provider settings.
type Config struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}
