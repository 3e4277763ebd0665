package embedder

import (
	"context"
	"fmt"
	"strings"

	embedeverything "github.com/soundprediction/go-embedeverything/pkg/embedder"

	"github.com/mdgraph/mdgraph/pkg/utils"
)

// LocalClient implements the Client interface with an in-process model via
// go-embedeverything. No network access is required.
type LocalClient struct {
	client *embedeverything.Embedder
	config *Config
}

// NewLocalClient creates a new local embedding client.
func NewLocalClient(config *Config) (*LocalClient, error) {
	client, err := embedeverything.NewEmbedder(config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &LocalClient{
		client: client,
		config: config,
	}, nil
}

// Embed generates an embedding for a single text.
func (c *LocalClient) Embed(ctx context.Context, text string) (*Result, error) {
	results, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 || results[0] == nil {
		return nil, ErrNoResult
	}
	return results[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (c *LocalClient) EmbedBatch(ctx context.Context, texts []string) ([]*Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// go-embedeverything does not support context yet
	embeddings, err := c.client.Embed(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	results := make([]*Result, len(texts))
	for i, emb := range embeddings {
		vec := utils.Normalize(emb)
		if vec == nil {
			return nil, ErrNoResult
		}
		results[i] = &Result{
			Vector:     vec,
			Model:      c.config.Model,
			Dimensions: len(vec),
		}
	}
	return results, nil
}

// EmbedQuery generates an embedding for search query text. E5-family models
// expect a "query: " prefix on queries and "passage: " on indexed text; other
// models embed the text as-is.
func (c *LocalClient) EmbedQuery(ctx context.Context, text string) (*Result, error) {
	if strings.Contains(strings.ToLower(c.config.Model), "e5") {
		text = "query: " + text
	}
	return c.Embed(ctx, text)
}

// Close cleans up any resources.
func (c *LocalClient) Close() error {
	c.client.Close()
	return nil
}
