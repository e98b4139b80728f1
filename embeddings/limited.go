package embeddings

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limited bounds every provider call with a timeout and an optional rate limit.
type Limited struct {
	inner   Embedder
	timeout time.Duration
	limiter *rate.Limiter
}

// LimitOption configures Limited.
type LimitOption func(*Limited)

// WithTimeout sets the per call timeout.
func WithTimeout(d time.Duration) LimitOption {
	return func(l *Limited) { l.timeout = d }
}

// WithRate limits calls per second with the given burst.
func WithRate(perSecond float64, burst int) LimitOption {
	return func(l *Limited) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewLimited wraps an embedder.
func NewLimited(inner Embedder, opts ...LimitOption) *Limited {
	l := &Limited{inner: inner}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// EmbedDocuments embeds docs within the configured bounds.
func (l *Limited) EmbedDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	ctx, cancel, err := l.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return l.inner.EmbedDocuments(ctx, docs)
}

// EmbedQuery embeds a query within the configured bounds.
func (l *Limited) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel, err := l.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()
	return l.inner.EmbedQuery(ctx, text)
}

// Ping delegates to the wrapped embedder when it supports health checks.
func (l *Limited) Ping(ctx context.Context) error {
	hc, ok := l.inner.(HealthChecker)
	if !ok {
		return nil
	}
	ctx, cancel, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return hc.Ping(ctx)
}

// Model returns the wrapped embedder model.
func (l *Limited) Model() string {
	return ModelOf(l.inner, "")
}

func (l *Limited) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	cancel := context.CancelFunc(func() {})
	if l.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			cancel()
			return nil, nil, err
		}
	}
	return ctx, cancel, nil
}
