package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama defaults.
const (
	DefaultOllamaURL  = "http://localhost:11434"
	DefaultModel      = "all-minilm:l6-v2"
	DefaultDimensions = 384 // all-minilm output size
)

const (
	ollamaTagsPath  = "/api/tags"
	ollamaEmbedPath = "/api/embed"

	// maxErrorBody caps how much of an error response ends up in an error message.
	maxErrorBody = 512
)

// OllamaProvider generates embeddings with a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) {
		p.baseURL = strings.TrimRight(url, "/")
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		p.model = model
	}
}

// WithDimensions sets the expected vector dimensions. Zero accepts any size.
func WithDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) {
		p.dimensions = dims
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		p.client.Timeout = timeout
	}
}

// NewOllamaProvider creates an Ollama embedding provider.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:    DefaultOllamaURL,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
		client:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ModelName returns the name of the embedding model.
func (p *OllamaProvider) ModelName() string {
	return p.model
}

// Dimensions returns the expected vector dimensions.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

// Embed generates an embedding for text.
// Transport failures, timeouts and 5xx responses wrap ErrEncoderUnavailable.
func (p *OllamaProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	embs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return embs[0], nil
}

// EmbedBatch embeds several texts in one request. Results are in input order.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp ollamaEmbedResponse
	if err := p.call(ctx, http.MethodPost, ollamaEmbedPath, ollamaEmbedRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	embs := make([]Embedding, len(texts))
	for i, vec := range resp.Embeddings {
		if p.dimensions > 0 && len(vec) != p.dimensions {
			return nil, fmt.Errorf("unexpected embedding dimensions: got %d, want %d", len(vec), p.dimensions)
		}
		embs[i] = Embedding{Vector: vec}
	}
	return embs, nil
}

// IsAvailable checks that the Ollama server answers.
func (p *OllamaProvider) IsAvailable(ctx context.Context) error {
	if err := p.call(ctx, http.MethodGet, ollamaTagsPath, nil, nil); err != nil {
		return fmt.Errorf("ollama is not running: %w", err)
	}
	return nil
}

// HasModel reports whether the configured model is pulled on the server.
func (p *OllamaProvider) HasModel(ctx context.Context) (bool, error) {
	var tags ollamaTagsResponse
	if err := p.call(ctx, http.MethodGet, ollamaTagsPath, nil, &tags); err != nil {
		return false, fmt.Errorf("checking models: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == p.model {
			return true, nil
		}
	}
	return false, nil
}

// call sends in as JSON (when non-nil) and decodes the response into out (when non-nil).
func (p *OllamaProvider) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncoderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, formatErrorBody(resp.Body))
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: %w", ErrEncoderUnavailable, err)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// formatErrorBody returns the start of an error response body.
func formatErrorBody(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return fmt.Sprintf("(failed to read response body: %v)", err)
	}
	return strings.TrimSpace(string(data))
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
