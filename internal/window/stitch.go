package window

import (
	"errors"
	"fmt"
)

// ErrIndexMismatch is returned when per-window outputs do not line up with a batch index.
var ErrIndexMismatch = errors.New("window outputs do not match index")

// MeanPool averages per-window vectors into one vector per document.
// vectors must be in batch order; index is Batch.Index.
func MeanPool(vectors [][]float32, index []int) ([][]float32, error) {
	if err := checkIndex(len(vectors), index); err != nil {
		return nil, err
	}

	pooled := make([][]float32, len(index))
	start := 0
	for doc, end := range index {
		group := vectors[start:end]
		dims := len(group[0])
		sum := make([]float64, dims)
		for _, v := range group {
			if len(v) != dims {
				return nil, fmt.Errorf("%w: document %d has windows of %d and %d dimensions",
					ErrIndexMismatch, doc, dims, len(v))
			}
			for j, x := range v {
				sum[j] += float64(x)
			}
		}
		mean := make([]float32, dims)
		for j := range sum {
			mean[j] = float32(sum[j] / float64(len(group)))
		}
		pooled[doc] = mean
		start = end
	}
	return pooled, nil
}

// Majority picks the most frequent per-window label for each document.
// Ties go to the label seen first.
func Majority(labels []int, index []int) ([]int, error) {
	if err := checkIndex(len(labels), index); err != nil {
		return nil, err
	}

	out := make([]int, len(index))
	start := 0
	for doc, end := range index {
		counts := make(map[int]int)
		for _, l := range labels[start:end] {
			counts[l]++
		}
		best, bestCount := labels[start], 0
		for _, l := range labels[start:end] {
			if counts[l] > bestCount {
				best, bestCount = l, counts[l]
			}
		}
		out[doc] = best
		start = end
	}
	return out, nil
}

func checkIndex(n int, index []int) error {
	prev := 0
	for doc, end := range index {
		if end <= prev {
			return fmt.Errorf("%w: document %d has no windows", ErrIndexMismatch, doc)
		}
		prev = end
	}
	if prev != n {
		return fmt.Errorf("%w: index covers %d windows, got %d outputs", ErrIndexMismatch, prev, n)
	}
	return nil
}
