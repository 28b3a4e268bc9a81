package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider generates embeddings from text.
type Provider interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) (Embedding, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions, or 0 when unknown.
	Dimensions() int
}

// BatchProvider embeds several texts per request.
type BatchProvider interface {
	Provider

	// EmbedBatch returns one embedding per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)
}

// EmbedAll embeds texts with one batch request when p supports it and one
// request per text otherwise.
func EmbedAll(ctx context.Context, p Provider, texts []string) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if bp, ok := p.(BatchProvider); ok {
		embs, err := bp.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(embs) != len(texts) {
			return nil, fmt.Errorf("encoder returned %d embeddings for %d texts", len(embs), len(texts))
		}
		return embs, nil
	}

	embs := make([]Embedding, len(texts))
	for i, text := range texts {
		emb, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embs[i] = emb
	}
	return embs, nil
}

// Provider names accepted by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Options selects and configures a provider.
type Options struct {
	Provider   string
	BaseURL    string
	Model      string
	Dimensions int
	APIKey     string
	Timeout    time.Duration
}

// New builds the provider named in opts.
func New(opts Options) (Provider, error) {
	switch strings.ToLower(opts.Provider) {
	case "", ProviderOllama:
		var o []OllamaOption
		if opts.BaseURL != "" {
			o = append(o, WithBaseURL(opts.BaseURL))
		}
		if opts.Model != "" {
			o = append(o, WithModel(opts.Model))
		}
		if opts.Dimensions > 0 {
			o = append(o, WithDimensions(opts.Dimensions))
		}
		if opts.Timeout > 0 {
			o = append(o, WithTimeout(opts.Timeout))
		}
		return NewOllamaProvider(o...), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:     opts.APIKey,
			BaseURL:    opts.BaseURL,
			Model:      opts.Model,
			Dimensions: opts.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}
}
