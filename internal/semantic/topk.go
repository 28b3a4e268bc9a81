package semantic

import (
	"container/heap"
	"math"
	"sort"
)

// Hit is one selected matrix row.
type Hit struct {
	Row   int
	Score float64
}

// worse reports whether a ranks below b: lower score, or equal score and later row.
func worse(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Row > b.Row
}

// hitHeap is a min-heap with the worst kept hit at the root.
type hitHeap []Hit

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x any)        { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopK returns the k highest scores in descending order, ties broken by lower row first.
// NaN scores are skipped. k <= 0 returns every scored row.
func TopK(scores []float64, k int) []Hit {
	if k <= 0 || k > len(scores) {
		k = len(scores)
	}
	if k == 0 {
		return nil
	}

	h := make(hitHeap, 0, k)
	for row, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		hit := Hit{Row: row, Score: s}
		if len(h) < k {
			heap.Push(&h, hit)
			continue
		}
		if worse(h[0], hit) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	out := []Hit(h)
	sort.Slice(out, func(i, j int) bool { return worse(out[j], out[i]) })
	return out
}
