package llm

import (
	"context"
	"errors"
)

// Message is one turn of chat history passed to the provider.
type Message struct {
	Role    string // "user" | "assistant" | "system"
	Content string
}

// Provider is the pluggable AI provider contract: chat completion plus
// embeddings with a fixed dimension.
type Provider interface {
	// GenerateResponse produces a chat completion for the prompt, with
	// optional prior history. Implementations must respect the configured
	// max-token budget.
	GenerateResponse(ctx context.Context, prompt string, history []Message) (string, error)

	// GenerateEmbedding returns the embedding vector for one text.
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// GenerateEmbeddingsBatch embeds many texts in one call.
	GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name identifies the provider for logging and source attribution.
	Name() string
}

// ErrNoProviders is returned by an empty fallback chain.
var ErrNoProviders = errors.New("no AI providers configured")
