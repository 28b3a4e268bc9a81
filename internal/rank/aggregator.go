package rank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matsen/paperrank/internal/metrics"
)

// ErrNoSignals is returned when no signal produced scores for a request.
var ErrNoSignals = errors.New("no ranking signal succeeded")

// Signal produces raw scores for one request.
type Signal interface {
	Name() string
	Scores(ctx context.Context) ([]Score, error)
}

type signalFunc struct {
	name string
	fn   func(ctx context.Context) ([]Score, error)
}

func (s signalFunc) Name() string                                { return s.name }
func (s signalFunc) Scores(ctx context.Context) ([]Score, error) { return s.fn(ctx) }

// NewSignal adapts fn into a Signal called name.
func NewSignal(name string, fn func(ctx context.Context) ([]Score, error)) Signal {
	return signalFunc{name: name, fn: fn}
}

// Config selects normalization and per-signal weights.
type Config struct {
	Normalization string             `yaml:"normalization"` // none | minmax | rank
	Weights       map[string]float64 `yaml:"weights"`       // missing signals weigh 1
}

// Failure records a signal left out of a ranking.
type Failure struct {
	Signal string `json:"signal"`
	Err    error  `json:"-"`
}

// MarshalJSON includes the error text.
func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Signal string `json:"signal"`
		Error  string `json:"error"`
	}{f.Signal, f.Err.Error()})
}

// Ranking is the merged result of one request.
type Ranking struct {
	Entries  []Entry   `json:"results"`
	Signals  []string  `json:"signals"`            // signals that contributed, in merge order
	Failures []Failure `json:"failures,omitempty"` // signals that failed
}

// Degraded reports whether some signal failed.
func (r *Ranking) Degraded() bool {
	return len(r.Failures) > 0
}

// Aggregator merges signal scores into a ranking.
type Aggregator struct {
	normName  string
	normalize Normalizer
	weights   map[string]float64
	logger    *zap.Logger
}

// NewAggregator validates cfg and creates an aggregator.
func NewAggregator(cfg Config, logger *zap.Logger) (*Aggregator, error) {
	norm, err := NormalizerByName(cfg.Normalization)
	if err != nil {
		return nil, err
	}
	weights := make(map[string]float64, len(cfg.Weights))
	for name, w := range cfg.Weights {
		if w < 0 {
			return nil, fmt.Errorf("weight for %s must not be negative, got %v", name, w)
		}
		weights[name] = w
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	name := strings.ToLower(strings.TrimSpace(cfg.Normalization))
	if name == "" {
		name = NormMinMax
	}
	return &Aggregator{
		normName:  name,
		normalize: norm,
		weights:   weights,
		logger:    logger,
	}, nil
}

// Normalization returns the normalization name in use.
func (a *Aggregator) Normalization() string {
	return a.normName
}

// Weight returns the configured weight for signal.
func (a *Aggregator) Weight(signal string) float64 {
	if w, ok := a.weights[signal]; ok {
		return w
	}
	return 1
}

// Rank runs signals in order and merges them. op labels metrics and logs.
// A failing signal is recorded and skipped; the call fails only when every signal fails.
// k <= 0 returns every scored paper.
func (a *Aggregator) Rank(ctx context.Context, op string, signals []Signal, k int) (*Ranking, error) {
	if len(signals) == 0 {
		metrics.RankingsTotal.WithLabelValues(op, "error").Inc()
		return nil, ErrNoSignals
	}

	table := NewScoreTable()
	ranking := &Ranking{}
	var errs []error

	for _, s := range signals {
		if err := ctx.Err(); err != nil {
			metrics.RankingsTotal.WithLabelValues(op, "error").Inc()
			return nil, err
		}

		scores, err := s.Scores(ctx)
		if err != nil {
			metrics.SignalFailuresTotal.WithLabelValues(s.Name()).Inc()
			a.logger.Warn("Ranking signal failed",
				zap.String("op", op),
				zap.String("signal", s.Name()),
				zap.Error(err))
			ranking.Failures = append(ranking.Failures, Failure{Signal: s.Name(), Err: err})
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		w := a.Weight(s.Name())
		for _, sc := range a.normalize(scores) {
			if err := table.Add(s.Name(), sc.PaperID, w*sc.Value); err != nil {
				return nil, err
			}
		}
		ranking.Signals = append(ranking.Signals, s.Name())
	}

	if len(ranking.Signals) == 0 {
		metrics.RankingsTotal.WithLabelValues(op, "error").Inc()
		return nil, errors.Join(append([]error{ErrNoSignals}, errs...)...)
	}

	ranking.Entries = table.Ranked()
	if k > 0 && len(ranking.Entries) > k {
		ranking.Entries = ranking.Entries[:k]
	}

	outcome := "ok"
	if ranking.Degraded() {
		outcome = "degraded"
	}
	metrics.RankingsTotal.WithLabelValues(op, outcome).Inc()
	return ranking, nil
}
