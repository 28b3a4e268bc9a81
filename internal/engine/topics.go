package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/matsen/paperrank/internal/semantic"
)

// ErrNoTopicNeighbors is returned when none of a query's nearest papers has a topic distribution.
var ErrNoTopicNeighbors = errors.New("no neighbors with topic distributions")

// TopicInferencer maps free text onto the topic space of the topics artifact.
type TopicInferencer interface {
	InferTopics(ctx context.Context, text string) ([]float64, error)
}

// NeighborTopics infers a query's topic distribution from the papers nearest to it
// by embedding: their topic rows are averaged, weighted by similarity.
// Neighbors with non-positive similarity are ignored.
type NeighborTopics struct {
	searcher *semantic.Searcher
	topics   semantic.MatrixSource
	n        int
}

// NewNeighborTopics creates an inferencer averaging over the n nearest papers.
func NewNeighborTopics(searcher *semantic.Searcher, topics semantic.MatrixSource, n int) *NeighborTopics {
	if n <= 0 {
		n = 20
	}
	return &NeighborTopics{searcher: searcher, topics: topics, n: n}
}

// InferTopics implements TopicInferencer.
func (t *NeighborTopics) InferTopics(ctx context.Context, text string) ([]float64, error) {
	if _, err := t.topics.Get(ctx); err != nil {
		return nil, err
	}
	neighbors, err := t.searcher.Search(ctx, text, t.n)
	if err != nil {
		return nil, err
	}
	return t.average(ctx, neighbors)
}

// FromVector infers topics for an already encoded query.
func (t *NeighborTopics) FromVector(ctx context.Context, vec []float64) ([]float64, error) {
	if _, err := t.topics.Get(ctx); err != nil {
		return nil, err
	}
	neighbors, err := t.searcher.SearchVector(ctx, vec, t.n)
	if err != nil {
		return nil, err
	}
	return t.average(ctx, neighbors)
}

func (t *NeighborTopics) average(ctx context.Context, neighbors []semantic.SearchResult) ([]float64, error) {
	m, err := t.topics.Get(ctx)
	if err != nil {
		return nil, err
	}

	dist := make([]float64, m.Dims())
	var total float64
	for _, nb := range neighbors {
		if nb.Similarity <= 0 {
			continue
		}
		row, ok := m.Vector(nb.PaperID)
		if !ok {
			continue
		}
		for i, x := range row {
			dist[i] += nb.Similarity * x
		}
		total += nb.Similarity
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: searched %d papers", ErrNoTopicNeighbors, len(neighbors))
	}
	for i := range dist {
		dist[i] /= total
	}
	return dist, nil
}
