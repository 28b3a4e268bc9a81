package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/paperrank/internal/metrics"
)

// Instrumented records request counts and latency for a provider.
type Instrumented struct {
	Provider
	name   string
	logger *zap.Logger
}

// NewInstrumented wraps p; name labels its metrics.
func NewInstrumented(p Provider, name string, logger *zap.Logger) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{Provider: p, name: name, logger: logger}
}

// Embed calls the wrapped provider and records the outcome.
func (i *Instrumented) Embed(ctx context.Context, text string) (Embedding, error) {
	var emb Embedding
	err := i.observe(func() (err error) {
		emb, err = i.Provider.Embed(ctx, text)
		return err
	})
	return emb, err
}

// EmbedBatch forwards a batch and records it as one request.
func (i *Instrumented) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	var embs []Embedding
	err := i.observe(func() (err error) {
		embs, err = EmbedAll(ctx, i.Provider, texts)
		return err
	})
	return embs, err
}

func (i *Instrumented) observe(call func() error) error {
	start := time.Now()
	err := call()
	metrics.EncoderRequestDuration.WithLabelValues(i.name).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EncoderRequestsTotal.WithLabelValues(i.name, "error").Inc()
		i.logger.Debug("Encoder request failed",
			zap.String("provider", i.name),
			zap.String("model", i.ModelName()),
			zap.Error(err))
		return err
	}
	metrics.EncoderRequestsTotal.WithLabelValues(i.name, "success").Inc()
	return nil
}
