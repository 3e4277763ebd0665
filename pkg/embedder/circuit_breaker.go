package embedder

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mdgraph/mdgraph/pkg/config"
)

// CircuitBreakerClient wraps a Client with circuit breaking logic
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
	name   string
}

// NewCircuitBreakerClient creates a new circuit breaker client
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, logger *slog.Logger, name string) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				logger.Warn("circuit breaker tripped",
					"name", name,
					"from", from.String(),
					"to", to.String())
			}
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		logger: logger,
		name:   name,
	}
}

// Embed implements Client
func (c *CircuitBreakerClient) Embed(ctx context.Context, text string) (*Result, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*Result), nil
}

// EmbedBatch implements Client
func (c *CircuitBreakerClient) EmbedBatch(ctx context.Context, texts []string) ([]*Result, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return resp.([]*Result), nil
}

// EmbedQuery implements QueryEmbedder, falling back to Embed when the
// wrapped client does not distinguish queries.
func (c *CircuitBreakerClient) EmbedQuery(ctx context.Context, text string) (*Result, error) {
	qe, ok := c.client.(QueryEmbedder)
	if !ok {
		return c.Embed(ctx, text)
	}
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return qe.EmbedQuery(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*Result), nil
}

// Close implements Client
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
