package rank

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/matsen/paperrank/internal/metrics"
)

func static(name string, s []Score) Signal {
	return NewSignal(name, func(ctx context.Context) ([]Score, error) { return s, nil })
}

func failing(name string, err error) Signal {
	return NewSignal(name, func(ctx context.Context) ([]Score, error) { return nil, err })
}

func TestAggregator_MergesWeighted(t *testing.T) {
	agg, err := NewAggregator(Config{
		Normalization: NormNone,
		Weights:       map[string]float64{"lexical": 2},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	ranking, err := agg.Rank(context.Background(), "test", []Signal{
		static("lexical", []Score{{"b", 0.5}}),
		static("semantic", []Score{{"a", 0.9}, {"b", 0.2}, {"c", 0.1}}),
	}, 0)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	// b = 2*0.5 + 0.2 = 1.2, a = 0.9, c = 0.1
	want := []string{"b", "a", "c"}
	for i, id := range want {
		if ranking.Entries[i].PaperID != id {
			t.Errorf("entries[%d] = %s, want %s", i, ranking.Entries[i].PaperID, id)
		}
	}
	if got := ranking.Entries[0].Total; got < 1.199 || got > 1.201 {
		t.Errorf("b total = %v, want 1.2", got)
	}
	if ranking.Degraded() {
		t.Error("Degraded() = true with no failures")
	}
	if strings.Join(ranking.Signals, ",") != "lexical,semantic" {
		t.Errorf("Signals = %v", ranking.Signals)
	}
}

func TestAggregator_TiesFollowSignalOrder(t *testing.T) {
	agg, _ := NewAggregator(Config{Normalization: NormNone}, nil)

	ranking, err := agg.Rank(context.Background(), "test", []Signal{
		static("first", []Score{{"x", 1}}),
		static("second", []Score{{"y", 1}}),
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ranking.Entries[0].PaperID != "x" || ranking.Entries[1].PaperID != "y" {
		t.Errorf("tie order = %s, %s; want x, y", ranking.Entries[0].PaperID, ranking.Entries[1].PaperID)
	}
}

func TestAggregator_Truncates(t *testing.T) {
	agg, _ := NewAggregator(Config{}, nil)
	ranking, err := agg.Rank(context.Background(), "test", []Signal{
		static("s", []Score{{"a", 3}, {"b", 2}, {"c", 1}}),
	}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(ranking.Entries) != 2 {
		t.Errorf("got %d entries, want 2", len(ranking.Entries))
	}
}

func TestAggregator_PartialFailure(t *testing.T) {
	agg, _ := NewAggregator(Config{}, nil)
	before := testutil.ToFloat64(metrics.SignalFailuresTotal.WithLabelValues("topic"))

	boom := errors.New("topic artifact unavailable")
	ranking, err := agg.Rank(context.Background(), "test", []Signal{
		static("semantic", []Score{{"a", 0.9}, {"b", 0.1}}),
		failing("topic", boom),
	}, 0)
	if err != nil {
		t.Fatalf("Rank() error = %v, want results from healthy signals", err)
	}
	if !ranking.Degraded() || ranking.Failures[0].Signal != "topic" || !errors.Is(ranking.Failures[0].Err, boom) {
		t.Errorf("Failures = %+v", ranking.Failures)
	}
	if len(ranking.Entries) != 2 {
		t.Errorf("got %d entries, want 2", len(ranking.Entries))
	}
	if got := testutil.ToFloat64(metrics.SignalFailuresTotal.WithLabelValues("topic")); got != before+1 {
		t.Errorf("failure counter = %v, want %v", got, before+1)
	}

	data, err := json.Marshal(ranking)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "topic artifact unavailable") {
		t.Errorf("JSON does not include failure text: %s", data)
	}
}

func TestAggregator_AllFail(t *testing.T) {
	agg, _ := NewAggregator(Config{}, nil)
	notIndexed := errors.New("paper not indexed")
	unavailable := errors.New("artifact unavailable")

	_, err := agg.Rank(context.Background(), "test", []Signal{
		failing("semantic", notIndexed),
		failing("topic", unavailable),
	}, 0)
	if !errors.Is(err, ErrNoSignals) {
		t.Errorf("error = %v, want ErrNoSignals", err)
	}
	if !errors.Is(err, notIndexed) || !errors.Is(err, unavailable) {
		t.Errorf("error = %v, want both signal errors joined", err)
	}
}

func TestAggregator_NoSignals(t *testing.T) {
	agg, _ := NewAggregator(Config{}, nil)
	if _, err := agg.Rank(context.Background(), "test", nil, 0); !errors.Is(err, ErrNoSignals) {
		t.Errorf("error = %v, want ErrNoSignals", err)
	}
}

func TestAggregator_EmptySignalStillSucceeds(t *testing.T) {
	agg, _ := NewAggregator(Config{}, nil)
	ranking, err := agg.Rank(context.Background(), "test", []Signal{static("lexical", nil)}, 0)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(ranking.Entries) != 0 {
		t.Errorf("got %d entries, want 0", len(ranking.Entries))
	}
}

func TestAggregator_Canceled(t *testing.T) {
	agg, _ := NewAggregator(Config{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := agg.Rank(ctx, "test", []Signal{static("s", nil)}, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestNewAggregator_Invalid(t *testing.T) {
	if _, err := NewAggregator(Config{Normalization: "zscore"}, nil); err == nil {
		t.Error("unknown normalization accepted")
	}
	if _, err := NewAggregator(Config{Weights: map[string]float64{"x": -1}}, nil); err == nil {
		t.Error("negative weight accepted")
	}
}

func TestAggregator_Weight(t *testing.T) {
	agg, _ := NewAggregator(Config{Weights: map[string]float64{"topic": 0.5}}, nil)
	if agg.Weight("topic") != 0.5 || agg.Weight("semantic") != 1 {
		t.Errorf("Weight() = %v / %v", agg.Weight("topic"), agg.Weight("semantic"))
	}
}

func TestAggregator_Normalization(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", NormMinMax},
		{" Rank ", NormRank},
		{NormNone, NormNone},
	}
	for _, tt := range tests {
		a, err := NewAggregator(Config{Normalization: tt.in}, nil)
		if err != nil {
			t.Fatalf("NewAggregator(%q) error = %v", tt.in, err)
		}
		if got := a.Normalization(); got != tt.want {
			t.Errorf("Normalization() for %q = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAggregator_WeakMatchBeatsNoMatch(t *testing.T) {
	agg, err := NewAggregator(Config{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	// c is the weakest lexical match; d has no title match at all.
	ranking, err := agg.Rank(context.Background(), "test", []Signal{
		static("lexical", []Score{{"a", 1}, {"b", 0.5}, {"c", 0.25}}),
		static("semantic", []Score{{"a", 0.9}, {"c", 0.1}, {"d", 0.1}}),
	}, 0)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}

	var cTotal, dTotal float64
	for _, e := range ranking.Entries {
		switch e.PaperID {
		case "c":
			cTotal = e.Total
		case "d":
			dTotal = e.Total
		}
	}
	if cTotal <= dTotal {
		t.Errorf("c total %v should exceed d total %v", cTotal, dTotal)
	}
	if got := ranking.Entries[0]; got.PaperID != "a" || got.Total != 2 {
		t.Errorf("top = %s %v, want a 2", got.PaperID, got.Total)
	}
}
