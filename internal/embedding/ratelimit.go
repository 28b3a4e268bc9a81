package embedding

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to an encoder that enforces a request quota.
type RateLimited struct {
	Provider
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond requests per second with the given burst.
// A non-positive rate disables limiting.
func NewRateLimited(p Provider, perSecond float64, burst int) *RateLimited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		Provider: p,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

// Embed waits for the limiter, then calls the wrapped provider.
func (r *RateLimited) Embed(ctx context.Context, text string) (Embedding, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Embedding{}, fmt.Errorf("%w: rate limiter: %w", ErrEncoderUnavailable, err)
	}
	return r.Provider.Embed(ctx, text)
}

// EmbedBatch waits once for the limiter; a batch counts as one request.
func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrEncoderUnavailable, err)
	}
	return EmbedAll(ctx, r.Provider, texts)
}
