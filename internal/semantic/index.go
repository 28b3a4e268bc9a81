package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/matsen/paperrank/internal/artifact"
	"github.com/matsen/paperrank/internal/similarity"
)

// ErrPaperNotIndexed is returned when a reference paper has no row in the current matrix.
var ErrPaperNotIndexed = errors.New("paper not in semantic index")

// MatrixSource provides the current paper matrix. *artifact.Cache implements it.
type MatrixSource interface {
	Get(ctx context.Context) (*artifact.PaperMatrix, error)
	Ready() bool
}

// Finder ranks papers by similarity to a paper already in the matrix.
type Finder struct {
	source MatrixSource
	metric similarity.Metric
}

// NewFinder creates a finder over source using metric.
func NewFinder(source MatrixSource, metric similarity.Metric) *Finder {
	return &Finder{source: source, metric: metric}
}

// Ready reports whether the backing matrix has been loaded at least once.
func (f *Finder) Ready() bool {
	return f.source.Ready()
}

// Metric returns the similarity metric in use.
func (f *Finder) Metric() similarity.Metric {
	return f.metric
}

// FindSimilar returns the k papers most similar to paperID, excluding paperID itself.
// k <= 0 returns every other paper, ranked.
func (f *Finder) FindSimilar(ctx context.Context, paperID string, k int) ([]SearchResult, error) {
	m, err := f.source.Get(ctx)
	if err != nil {
		return nil, err
	}

	row, ok := m.Lookup(paperID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotIndexed, paperID)
	}

	scores, err := f.metric.Similarities(m, m.Row(row))
	if err != nil {
		return nil, fmt.Errorf("scoring against %s: %w", paperID, err)
	}
	scores[row] = math.NaN()

	return toResults(m, TopK(scores, k)), nil
}

// HasPaper reports whether paperID has a row in the current matrix.
func (f *Finder) HasPaper(ctx context.Context, paperID string) (bool, error) {
	m, err := f.source.Get(ctx)
	if err != nil {
		return false, err
	}
	_, ok := m.Lookup(paperID)
	return ok, nil
}

// Vector returns the stored vector for paperID.
func (f *Finder) Vector(ctx context.Context, paperID string) ([]float64, error) {
	m, err := f.source.Get(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := m.Vector(paperID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotIndexed, paperID)
	}
	return v, nil
}

func toResults(m *artifact.PaperMatrix, hits []Hit) []SearchResult {
	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{PaperID: m.ID(h.Row), Similarity: h.Score}
	}
	return results
}
