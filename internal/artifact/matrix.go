// Package artifact loads and hot-swaps the pre-built paper matrices (embeddings, topic
// distributions) that the ranking signals read.
package artifact

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidMatrix is returned when rows cannot form a PaperMatrix.
var ErrInvalidMatrix = errors.New("invalid paper matrix")

// PaperVector is one paper's vector in an artifact.
type PaperVector struct {
	ID     string
	Vector []float64
}

// PaperMatrix is an immutable set of paper vectors with an id -> row index.
// Row order is fixed for the lifetime of the matrix.
type PaperMatrix struct {
	ids   []string
	index map[string]int
	data  *mat.Dense // nil when the matrix has no rows
	dims  int
}

// NewMatrix builds a matrix from rows. IDs must be unique and all vectors must
// have the same non-zero dimensionality.
func NewMatrix(rows []PaperVector) (*PaperMatrix, error) {
	m := &PaperMatrix{
		ids:   make([]string, len(rows)),
		index: make(map[string]int, len(rows)),
	}
	if len(rows) == 0 {
		return m, nil
	}

	m.dims = len(rows[0].Vector)
	if m.dims == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional vectors", ErrInvalidMatrix)
	}

	data := make([]float64, 0, len(rows)*m.dims)
	for i, r := range rows {
		if len(r.Vector) != m.dims {
			return nil, fmt.Errorf("%w: row %d (%s) has %d dimensions, want %d",
				ErrInvalidMatrix, i, r.ID, len(r.Vector), m.dims)
		}
		if _, dup := m.index[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate paper id %q", ErrInvalidMatrix, r.ID)
		}
		m.ids[i] = r.ID
		m.index[r.ID] = i
		data = append(data, r.Vector...)
	}
	m.data = mat.NewDense(len(rows), m.dims, data)
	return m, nil
}

// Len returns the number of rows.
func (m *PaperMatrix) Len() int {
	return len(m.ids)
}

// Dims returns the vector dimensionality (0 for an empty matrix).
func (m *PaperMatrix) Dims() int {
	return m.dims
}

// ID returns the paper id of row i.
func (m *PaperMatrix) ID(i int) string {
	return m.ids[i]
}

// IDs returns the paper ids in row order. The slice must not be modified.
func (m *PaperMatrix) IDs() []string {
	return m.ids
}

// Row returns a view of row i. The slice must not be modified.
func (m *PaperMatrix) Row(i int) []float64 {
	return m.data.RawRowView(i)
}

// Lookup returns the row of a paper id.
func (m *PaperMatrix) Lookup(id string) (int, bool) {
	i, ok := m.index[id]
	return i, ok
}

// Vector returns a view of the vector for a paper id.
func (m *PaperMatrix) Vector(id string) ([]float64, bool) {
	i, ok := m.index[id]
	if !ok {
		return nil, false
	}
	return m.Row(i), true
}

// Dense returns the underlying matrix, or nil when there are no rows.
func (m *PaperMatrix) Dense() *mat.Dense {
	return m.data
}
