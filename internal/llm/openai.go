package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
)

// OpenAIProvider talks to any openai-compatible endpoint via langchaingo.
type OpenAIProvider struct {
	llm       *openai.LLM
	name      string
	maxTokens int
	tokenizer *tiktoken.Tiktoken
}

// NewOpenAIProvider creates a provider from an AI endpoint config.
func NewOpenAIProvider(cfg config.AIConfig) (*OpenAIProvider, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(cfg.Token),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	// cl100k_base covers GPT-3.5/GPT-4/DeepSeek families. A nil tokenizer
	// just disables budget trimming.
	tokenizer, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		tokenizer = nil
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Model
	}

	return &OpenAIProvider{
		llm:       model,
		name:      name,
		maxTokens: cfg.MaxTokens,
		tokenizer: tokenizer,
	}, nil
}

// Name identifies the provider.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// GenerateResponse produces a chat completion, trimming the prompt to the
// configured token budget first.
func (p *OpenAIProvider) GenerateResponse(ctx context.Context, prompt string, history []Message) (string, error) {
	prompt = p.trimToBudget(prompt)

	msgs := make([]llms.MessageContent, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeAI, m.Content))
		case "system":
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, m.Content))
		default:
			msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, m.Content))
		}
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, prompt))

	var callOpts []llms.CallOption
	if p.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(p.maxTokens))
	}

	resp, err := p.llm.GenerateContent(ctx, msgs, callOpts...)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// GenerateEmbedding embeds one text.
func (p *OpenAIProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.GenerateEmbeddingsBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// GenerateEmbeddingsBatch embeds many texts in one call.
func (p *OpenAIProvider) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := p.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding call failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: want %d, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

// trimToBudget truncates a prompt to the token budget, keeping the head.
func (p *OpenAIProvider) trimToBudget(prompt string) string {
	if p.tokenizer == nil || p.maxTokens <= 0 {
		return prompt
	}
	tokens := p.tokenizer.Encode(prompt, nil, nil)
	if len(tokens) <= p.maxTokens {
		return prompt
	}
	return p.tokenizer.Decode(tokens[:p.maxTokens])
}
