package llm

import (
	"context"
	"errors"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
)

// FallbackChain tries providers in order until one succeeds. Cancellation
// stops the walk immediately.
type FallbackChain struct {
	providers []Provider
}

// NewFallbackChain builds a chain from the primary and any configured
// fallback endpoints. Retry wrapping applies per provider.
func NewFallbackChain(cfg *config.Config) (*FallbackChain, error) {
	endpoints := []config.AIConfig{cfg.AI}
	if cfg.EnableFallbackProviders {
		endpoints = append(endpoints, cfg.FallbackProviders...)
	}

	providers := make([]Provider, 0, len(endpoints))
	for _, ep := range endpoints {
		p, err := NewOpenAIProvider(ep)
		if err != nil {
			return nil, err
		}
		providers = append(providers, NewRetryingProvider(p, cfg))
	}
	return &FallbackChain{providers: providers}, nil
}

// NewChain wraps pre-built providers, mostly for tests.
func NewChain(providers ...Provider) *FallbackChain {
	return &FallbackChain{providers: providers}
}

// Name identifies the first (primary) provider.
func (c *FallbackChain) Name() string {
	if len(c.providers) == 0 {
		return "none"
	}
	return c.providers[0].Name()
}

func (c *FallbackChain) walk(ctx context.Context, op func(Provider) error) error {
	if len(c.providers) == 0 {
		return ErrNoProviders
	}
	var lastErr error
	for _, p := range c.providers {
		err := op(p)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

// GenerateResponse walks the chain for a chat completion.
func (c *FallbackChain) GenerateResponse(ctx context.Context, prompt string, history []Message) (string, error) {
	var out string
	err := c.walk(ctx, func(p Provider) error {
		var opErr error
		out, opErr = p.GenerateResponse(ctx, prompt, history)
		return opErr
	})
	return out, err
}

// GenerateEmbedding walks the chain for one embedding.
func (c *FallbackChain) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := c.walk(ctx, func(p Provider) error {
		var opErr error
		out, opErr = p.GenerateEmbedding(ctx, text)
		return opErr
	})
	return out, err
}

// GenerateEmbeddingsBatch walks the chain for a batch of embeddings.
func (c *FallbackChain) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := c.walk(ctx, func(p Provider) error {
		var opErr error
		out, opErr = p.GenerateEmbeddingsBatch(ctx, texts)
		return opErr
	})
	return out, err
}
