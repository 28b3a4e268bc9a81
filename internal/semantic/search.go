package semantic

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsen/paperrank/internal/similarity"
)

// ErrNoEncoder is returned by Search when no query encoder is configured.
var ErrNoEncoder = errors.New("no query encoder configured")

// QueryEncoder turns free text into a vector in the matrix's space.
type QueryEncoder interface {
	EncodeQuery(ctx context.Context, text string) ([]float64, error)
}

// Searcher ranks papers against a free-text query.
type Searcher struct {
	source  MatrixSource
	metric  similarity.Metric
	encoder QueryEncoder
}

// NewSearcher creates a searcher. encoder may be nil when only SearchVector is used.
func NewSearcher(source MatrixSource, metric similarity.Metric, encoder QueryEncoder) *Searcher {
	return &Searcher{source: source, metric: metric, encoder: encoder}
}

// Ready reports whether the backing matrix has been loaded at least once.
func (s *Searcher) Ready() bool {
	return s.source.Ready()
}

// Search encodes query and returns the k most similar papers.
// The matrix is fetched first so an unavailable artifact fails before the encoder is called.
func (s *Searcher) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if _, err := s.source.Get(ctx); err != nil {
		return nil, err
	}
	if s.encoder == nil {
		return nil, ErrNoEncoder
	}

	vec, err := s.encoder.EncodeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}
	return s.SearchVector(ctx, vec, k)
}

// SearchVector returns the k papers most similar to vec.
func (s *Searcher) SearchVector(ctx context.Context, vec []float64, k int) ([]SearchResult, error) {
	m, err := s.source.Get(ctx)
	if err != nil {
		return nil, err
	}

	scores, err := s.metric.Similarities(m, vec)
	if err != nil {
		return nil, err
	}
	return toResults(m, TopK(scores, k)), nil
}
