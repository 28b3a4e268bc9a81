package rank

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Normalization names.
const (
	NormNone   = "none"
	NormMinMax = "minmax"
	NormRank   = "rank"
)

// RRFConstant is the k in reciprocal-rank scoring 1/(k+rank).
const RRFConstant = 60

// Normalizer maps one signal's raw scores onto a common scale. Order is preserved.
type Normalizer func(scores []Score) []Score

// NormalizerByName returns the named normalizer.
func NormalizerByName(name string) (Normalizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NormNone:
		return Identity, nil
	case "", NormMinMax:
		return MinMax, nil
	case NormRank, "rrf":
		return ReciprocalRank, nil
	default:
		return nil, fmt.Errorf("unknown normalization %q", name)
	}
}

// Identity returns scores unchanged, minus non-finite values.
func Identity(scores []Score) []Score {
	return finite(scores)
}

// MinMaxFloor is where MinMax puts a signal's weakest returned score, so that a
// weak match still ranks above a paper the signal did not return.
const MinMaxFloor = 0.1

// MinMax rescales scores to [MinMaxFloor, 1]. When every score is equal they all map to 1.
func MinMax(scores []Score) []Score {
	scores = finite(scores)
	if len(scores) == 0 {
		return scores
	}

	lo, hi := scores[0].Value, scores[0].Value
	for _, s := range scores[1:] {
		lo = math.Min(lo, s.Value)
		hi = math.Max(hi, s.Value)
	}

	out := make([]Score, len(scores))
	for i, s := range scores {
		v := 1.0
		if s.Value < hi {
			v = MinMaxFloor + (1-MinMaxFloor)*(s.Value-lo)/(hi-lo)
		}
		out[i] = Score{PaperID: s.PaperID, Value: v}
	}
	return out
}

// ReciprocalRank replaces each score by 1/(RRFConstant + rank), rank starting at 1.
// Equal scores share the better rank.
func ReciprocalRank(scores []Score) []Score {
	scores = finite(scores)
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]].Value > scores[idx[b]].Value })

	out := make([]Score, len(scores))
	rank := 0
	for pos, i := range idx {
		if pos == 0 || scores[i].Value != scores[idx[pos-1]].Value {
			rank = pos + 1
		}
		out[i] = Score{PaperID: scores[i].PaperID, Value: 1 / float64(RRFConstant+rank)}
	}
	return out
}

func finite(scores []Score) []Score {
	out := make([]Score, 0, len(scores))
	for _, s := range scores {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			continue
		}
		out = append(out, s)
	}
	return out
}
