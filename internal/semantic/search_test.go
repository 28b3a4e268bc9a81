package semantic

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/matsen/paperrank/internal/artifact"
	"github.com/matsen/paperrank/internal/similarity"
)

type fixedEncoder struct {
	vec   []float64
	err   error
	calls int
}

func (e *fixedEncoder) EncodeQuery(ctx context.Context, text string) ([]float64, error) {
	e.calls++
	return e.vec, e.err
}

func TestSearcher_CosineScenario(t *testing.T) {
	enc := &fixedEncoder{vec: []float64{1, 0}}
	s := NewSearcher(&staticSource{m: abcMatrix(t)}, similarity.Cosine{}, enc)

	results, err := s.Search(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].PaperID != "A" || math.Abs(results[0].Similarity-1) > 1e-9 {
		t.Errorf("results[0] = %+v, want (A, 1.0)", results[0])
	}
	if results[1].PaperID != "C" || results[1].Similarity < 0.97 || results[1].Similarity >= 1 {
		t.Errorf("results[1] = %+v, want (C, ~0.98)", results[1])
	}
}

func TestSearcher_SortedAndComplete(t *testing.T) {
	s := NewSearcher(&staticSource{m: abcMatrix(t)}, similarity.Euclidean{}, nil)

	results, err := s.SearchVector(context.Background(), []float64{0.5, 0.5}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("k >= n returned %d results, want 3", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not sorted at %d: %v", i, results)
		}
	}
	// A and B are equidistant from the query; A comes first in row order.
	if results[1].PaperID != "A" || results[2].PaperID != "B" {
		t.Errorf("tie order = %s, %s; want A, B", results[1].PaperID, results[2].PaperID)
	}
}

func TestSearcher_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unavailable before encoding", func(t *testing.T) {
		enc := &fixedEncoder{vec: []float64{1, 0}}
		s := NewSearcher(&staticSource{}, similarity.Cosine{}, enc)
		if _, err := s.Search(ctx, "q", 1); !errors.Is(err, artifact.ErrArtifactUnavailable) {
			t.Errorf("Search() error = %v, want ErrArtifactUnavailable", err)
		}
		if enc.calls != 0 {
			t.Error("encoder called without an artifact")
		}
	})

	t.Run("encoder failure", func(t *testing.T) {
		boom := errors.New("encoder down")
		s := NewSearcher(&staticSource{m: abcMatrix(t)}, similarity.Cosine{}, &fixedEncoder{err: boom})
		if _, err := s.Search(ctx, "q", 1); !errors.Is(err, boom) {
			t.Errorf("Search() error = %v, want wrapped encoder error", err)
		}
	})

	t.Run("no encoder", func(t *testing.T) {
		s := NewSearcher(&staticSource{m: abcMatrix(t)}, similarity.Cosine{}, nil)
		if _, err := s.Search(ctx, "q", 1); !errors.Is(err, ErrNoEncoder) {
			t.Errorf("Search() error = %v, want ErrNoEncoder", err)
		}
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		s := NewSearcher(&staticSource{m: abcMatrix(t)}, similarity.Cosine{}, nil)
		if _, err := s.SearchVector(ctx, []float64{1, 0, 0}, 1); !errors.Is(err, similarity.ErrInvalidMetricInput) {
			t.Errorf("SearchVector() error = %v, want ErrInvalidMetricInput", err)
		}
	})
}
