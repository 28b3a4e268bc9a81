package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matsen/paperrank/internal/window"
)

// Vectorizer embeds whole documents by windowing them to the encoder's input
// length and mean-pooling the per-window vectors.
// Windows are sent to the provider DefaultBatchSize at a time.
type Vectorizer struct {
	provider  Provider
	tok       window.Tokenizer
	cfg       window.Config
	timeout   time.Duration
	batchSize int
}

// DefaultBatchSize is the number of windows per encoder request.
const DefaultBatchSize = 32

// NewVectorizer creates a vectorizer. A non-positive timeout uses DefaultTimeout per request.
func NewVectorizer(p Provider, tok window.Tokenizer, cfg window.Config, timeout time.Duration) *Vectorizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Vectorizer{provider: p, tok: tok, cfg: cfg, timeout: timeout, batchSize: DefaultBatchSize}
}

// WithBatchSize sets the number of windows per request. Non-positive values are ignored.
func (v *Vectorizer) WithBatchSize(n int) *Vectorizer {
	if n > 0 {
		v.batchSize = n
	}
	return v
}

// ModelName returns the underlying provider's model name.
func (v *Vectorizer) ModelName() string {
	return v.provider.ModelName()
}

// EncodeDocuments returns one vector per document, in input order.
func (v *Vectorizer) EncodeDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	batch, err := window.Split(docs, v.tok, v.cfg)
	if err != nil {
		return nil, fmt.Errorf("windowing documents: %w", err)
	}

	texts := batch.Texts()
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += v.batchSize {
		end := min(start+v.batchSize, len(texts))
		embs, err := v.embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("windows %d-%d of document %d: %w", start, end-1, batch.Windows[start].Doc, err)
		}
		for _, emb := range embs {
			vectors = append(vectors, emb.Vector)
		}
	}

	return window.MeanPool(vectors, batch.Index)
}

// EncodeQuery embeds a single query text.
func (v *Vectorizer) EncodeQuery(ctx context.Context, text string) ([]float64, error) {
	vecs, err := v.EncodeDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return Embedding{Vector: vecs[0]}.Float64s(), nil
}

func (v *Vectorizer) embed(ctx context.Context, texts []string) ([]Embedding, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	embs, err := EmbedAll(ctx, v.provider, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrEncoderUnavailable) {
			return nil, fmt.Errorf("%w: %w", ErrEncoderUnavailable, err)
		}
		return nil, err
	}
	return embs, nil
}
