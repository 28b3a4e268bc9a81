// Package embedding turns text into dense vectors through an external encoder.
package embedding

import (
	"errors"
	"time"
)

// ErrEncoderUnavailable means the encoder could not produce a vector in time
// or could not be reached.
var ErrEncoderUnavailable = errors.New("encoder unavailable")

// DefaultTimeout bounds a single encoder call.
const DefaultTimeout = 30 * time.Second

// Embedding represents a vector embedding of text.
type Embedding struct {
	Vector []float32 // e.g. 384 dimensions for all-minilm
}

// Dimensions returns the dimensionality of the embedding.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// Float64s returns the vector widened to float64.
func (e Embedding) Float64s() []float64 {
	out := make([]float64, len(e.Vector))
	for i, x := range e.Vector {
		out[i] = float64(x)
	}
	return out
}
