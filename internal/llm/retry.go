package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/byerlikaya/SmartRAG-sub011/internal/config"
	"github.com/byerlikaya/SmartRAG-sub011/internal/logger"
)

var retryLog = logger.Component("llm")

// RetryingProvider wraps a provider with a configurable retry policy.
// Context cancellation and deadline errors are never retried.
type RetryingProvider struct {
	inner       Provider
	policy      string
	maxAttempts int
	delay       time.Duration
}

// NewRetryingProvider wraps inner per the configured retry policy.
func NewRetryingProvider(inner Provider, cfg *config.Config) *RetryingProvider {
	return &RetryingProvider{
		inner:       inner,
		policy:      cfg.RetryPolicy,
		maxAttempts: cfg.MaxRetryAttempts,
		delay:       cfg.RetryDelay(),
	}
}

// linearBackOff grows the wait by the base delay on every attempt.
type linearBackOff struct {
	base time.Duration
	next time.Duration
}

func (l *linearBackOff) NextBackOff() time.Duration {
	d := l.next
	l.next += l.base
	return d
}

func (l *linearBackOff) Reset() { l.next = l.base }

// newBackOff builds the backoff schedule for one call.
func (r *RetryingProvider) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff
	switch r.policy {
	case config.RetryNone:
		return &backoff.StopBackOff{}
	case config.RetryLinear:
		b = &linearBackOff{base: r.delay, next: r.delay}
	case config.RetryFixed:
		b = backoff.NewConstantBackOff(r.delay)
	default: // exponential
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = r.delay
		b = eb
	}
	b = backoff.WithMaxRetries(b, uint64(r.maxAttempts))
	return backoff.WithContext(b, ctx)
}

func (r *RetryingProvider) retry(ctx context.Context, what string, op func() error) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		retryLog.WithError(err).Warnf("%s failed (attempt %d)", what, attempt)
		return err
	}, r.newBackOff(ctx))
}

// Name identifies the wrapped provider.
func (r *RetryingProvider) Name() string {
	return r.inner.Name()
}

// GenerateResponse retries the chat completion per policy.
func (r *RetryingProvider) GenerateResponse(ctx context.Context, prompt string, history []Message) (string, error) {
	var out string
	err := r.retry(ctx, "chat completion", func() error {
		var opErr error
		out, opErr = r.inner.GenerateResponse(ctx, prompt, history)
		return opErr
	})
	return out, err
}

// GenerateEmbedding retries the embedding call per policy.
func (r *RetryingProvider) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := r.retry(ctx, "embedding", func() error {
		var opErr error
		out, opErr = r.inner.GenerateEmbedding(ctx, text)
		return opErr
	})
	return out, err
}

// GenerateEmbeddingsBatch retries the batch embedding call per policy.
func (r *RetryingProvider) GenerateEmbeddingsBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := r.retry(ctx, "batch embedding", func() error {
		var opErr error
		out, opErr = r.inner.GenerateEmbeddingsBatch(ctx, texts)
		return opErr
	})
	return out, err
}
