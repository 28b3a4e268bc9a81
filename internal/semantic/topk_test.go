package semantic

import (
	"math"
	"math/rand"
	"sort"
	"testing"
)

func TestTopK(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		k        int
		wantRows []int
	}{
		{"empty", nil, 3, nil},
		{"k larger than n", []float64{0.1, 0.9, 0.5}, 10, []int{1, 2, 0}},
		{"k zero returns all", []float64{0.1, 0.9, 0.5}, 0, []int{1, 2, 0}},
		{"bounded", []float64{0.1, 0.9, 0.5, 0.7}, 2, []int{1, 3}},
		{"ties by lower row", []float64{0.5, 0.9, 0.5, 0.5}, 3, []int{1, 0, 2}},
		{"NaN skipped", []float64{math.NaN(), 0.2, math.NaN(), 0.3}, 0, []int{3, 1}},
		{"negative scores", []float64{-4, -1, -2}, 2, []int{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits := TopK(tt.scores, tt.k)
			if len(hits) != len(tt.wantRows) {
				t.Fatalf("TopK() returned %d hits, want %d: %v", len(hits), len(tt.wantRows), hits)
			}
			for i, want := range tt.wantRows {
				if hits[i].Row != want {
					t.Errorf("hit[%d].Row = %d, want %d (hits %v)", i, hits[i].Row, want, hits)
				}
				if hits[i].Score != tt.scores[want] {
					t.Errorf("hit[%d].Score = %v, want %v", i, hits[i].Score, tt.scores[want])
				}
			}
		})
	}
}

func TestTopK_MatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	scores := make([]float64, 500)
	for i := range scores {
		// Coarse values so ties are common.
		scores[i] = float64(rng.Intn(50)) / 10
	}

	rows := make([]int, len(scores))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool { return scores[rows[a]] > scores[rows[b]] })

	for _, k := range []int{1, 7, 50, 499, 500, 1000} {
		hits := TopK(scores, k)
		want := rows
		if k < len(rows) {
			want = rows[:k]
		}
		if len(hits) != len(want) {
			t.Fatalf("k=%d: got %d hits, want %d", k, len(hits), len(want))
		}
		for i := range want {
			if hits[i].Row != want[i] {
				t.Fatalf("k=%d: hit[%d].Row = %d, want %d", k, i, hits[i].Row, want[i])
			}
		}
		for i := 1; i < len(hits); i++ {
			if hits[i].Score > hits[i-1].Score {
				t.Fatalf("k=%d: scores increase at %d", k, i)
			}
		}
	}
}
