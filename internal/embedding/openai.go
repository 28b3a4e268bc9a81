package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when no model is configured for the OpenAI provider.
const DefaultOpenAIModel = string(openai.SmallEmbedding3)

// OpenAIConfig holds the settings for an OpenAI-compatible embeddings API.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty means api.openai.com
	Model      string
	Dimensions int
}

// OpenAIProvider generates embeddings through an OpenAI-compatible API.
type OpenAIProvider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIProvider creates an OpenAI-compatible embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: cfg.Dimensions,
	}
}

// Embed generates an embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	embs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return embs[0], nil
}

// EmbedBatch embeds texts in one request. Results follow input order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          p.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if p.dimensions > 0 {
		req.Dimensions = p.dimensions
	}

	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, parseAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	embs := make([]Embedding, len(texts))
	seen := make([]bool, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || seen[d.Index] {
			return nil, fmt.Errorf("embedding response has invalid index %d", d.Index)
		}
		if p.dimensions > 0 && len(d.Embedding) != p.dimensions {
			return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(d.Embedding), p.dimensions)
		}
		seen[d.Index] = true
		embs[d.Index] = Embedding{Vector: d.Embedding}
	}
	return embs, nil
}

// ModelName returns the name of the embedding model.
func (p *OpenAIProvider) ModelName() string {
	return string(p.model)
}

// Dimensions returns the requested vector dimensions, or 0 for the model default.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}

// parseAPIError turns a go-openai error into a readable one.
// Server-side failures and transport errors wrap ErrEncoderUnavailable.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		apiErr := fmt.Errorf("embedding API error %d: %s", reqErr.HTTPStatusCode, detail)
		if reqErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", ErrEncoderUnavailable, apiErr)
		}
		return apiErr
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("embedding API error %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		if apiErr.HTTPStatusCode >= http.StatusInternalServerError || apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", ErrEncoderUnavailable, wrapped)
		}
		return wrapped
	}

	return fmt.Errorf("%w: embedding request failed: %w", ErrEncoderUnavailable, err)
}

// extractDetail pulls the "detail" field out of a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
