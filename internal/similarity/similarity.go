// Package similarity scores every row of a paper matrix against a query vector.
package similarity

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/matsen/paperrank/internal/artifact"
)

// Errors returned by metrics.
var (
	ErrInvalidMetricInput = errors.New("invalid metric input")
	ErrUnknownMetric      = errors.New("unknown similarity metric")
)

// Metric names accepted by ByName.
const (
	NameCosine        = "cosine"
	NameEuclidean     = "euclidean"
	NameJensenShannon = "jensen-shannon"
)

// Metric converts a distance into a similarity where larger means more alike.
// The returned slice has one score per matrix row, in row order.
type Metric interface {
	Name() string
	Similarities(m *artifact.PaperMatrix, q []float64) ([]float64, error)
}

// ByName returns the metric registered under name.
func ByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameCosine:
		return Cosine{}, nil
	case NameEuclidean:
		return Euclidean{}, nil
	case NameJensenShannon, "jensenshannon", "js":
		return JensenShannon{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
}

// Names lists the canonical metric names.
func Names() []string {
	return []string{NameCosine, NameEuclidean, NameJensenShannon}
}

func checkQuery(m *artifact.PaperMatrix, q []float64) error {
	if len(q) != m.Dims() {
		return fmt.Errorf("%w: query has %d dimensions, matrix has %d", ErrInvalidMetricInput, len(q), m.Dims())
	}
	for _, x := range q {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: query contains non-finite values", ErrInvalidMetricInput)
		}
	}
	return nil
}

// Cosine scores (2 - cosine distance) / 2, so identical directions score 1 and
// opposite directions score 0. Rows or queries with zero norm score NaN.
type Cosine struct{}

// Name implements Metric.
func (Cosine) Name() string { return NameCosine }

// Similarities implements Metric.
func (Cosine) Similarities(m *artifact.PaperMatrix, q []float64) ([]float64, error) {
	if m.Len() == 0 {
		return []float64{}, nil
	}
	if err := checkQuery(m, q); err != nil {
		return nil, err
	}

	dots := mat.NewVecDense(m.Len(), nil)
	dots.MulVec(m.Dense(), mat.NewVecDense(len(q), q))

	qNorm := floats.Norm(q, 2)
	out := make([]float64, m.Len())
	for i := range out {
		rowNorm := floats.Norm(m.Row(i), 2)
		if qNorm == 0 || rowNorm == 0 {
			out[i] = math.NaN()
			continue
		}
		cos := dots.AtVec(i) / (qNorm * rowNorm)
		cos = math.Max(-1, math.Min(1, cos))
		out[i] = (1 + cos) / 2
	}
	return out, nil
}

// Euclidean scores 1 - ||q - row||. Scores are unbounded below.
type Euclidean struct{}

// Name implements Metric.
func (Euclidean) Name() string { return NameEuclidean }

// Similarities implements Metric.
func (Euclidean) Similarities(m *artifact.PaperMatrix, q []float64) ([]float64, error) {
	if m.Len() == 0 {
		return []float64{}, nil
	}
	if err := checkQuery(m, q); err != nil {
		return nil, err
	}

	out := make([]float64, m.Len())
	for i := range out {
		out[i] = 1 - floats.Distance(q, m.Row(i), 2)
	}
	return out, nil
}

// JensenShannon scores 1 - Jensen-Shannon distance using the natural logarithm.
// Inputs are normalized to sum to 1. A negative, non-finite or all-zero query is
// rejected; such a matrix row scores NaN.
type JensenShannon struct{}

// Name implements Metric.
func (JensenShannon) Name() string { return NameJensenShannon }

// Similarities implements Metric.
func (JensenShannon) Similarities(m *artifact.PaperMatrix, q []float64) ([]float64, error) {
	if m.Len() == 0 {
		return []float64{}, nil
	}
	if err := checkQuery(m, q); err != nil {
		return nil, err
	}

	p, err := distribution(q)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	out := make([]float64, m.Len())
	for i := range out {
		r, err := distribution(m.Row(i))
		if err != nil {
			// Row without a usable distribution; TopK skips NaN.
			out[i] = math.NaN()
			continue
		}
		out[i] = 1 - jsDistance(p, r)
	}
	return out, nil
}

// distribution returns v scaled to sum to 1.
func distribution(v []float64) ([]float64, error) {
	for _, x := range v {
		if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%w: not a probability vector", ErrInvalidMetricInput)
		}
	}
	sum := floats.Sum(v)
	if sum == 0 {
		return nil, fmt.Errorf("%w: probability vector sums to zero", ErrInvalidMetricInput)
	}
	out := make([]float64, len(v))
	floats.ScaleTo(out, 1/sum, v)
	return out, nil
}

func jsDistance(p, q []float64) float64 {
	var div float64
	for i := range p {
		mid := (p[i] + q[i]) / 2
		div += klTerm(p[i], mid) + klTerm(q[i], mid)
	}
	div /= 2
	if div < 0 {
		div = 0
	}
	return math.Sqrt(div)
}

func klTerm(x, mid float64) float64 {
	if x == 0 {
		return 0
	}
	return x * math.Log(x/mid)
}
