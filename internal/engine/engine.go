// Package engine wires the artifact caches, selectors and ranking signals
// into the paper search and recommendation operations.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/matsen/paperrank/internal/artifact"
	"github.com/matsen/paperrank/internal/config"
	"github.com/matsen/paperrank/internal/lexical"
	"github.com/matsen/paperrank/internal/rank"
	"github.com/matsen/paperrank/internal/semantic"
	"github.com/matsen/paperrank/internal/similarity"
)

// Operation labels for rankings.
const (
	OpSearch  = "search"
	OpSimilar = "similar"
)

// Deps are the collaborators an Engine is built from.
type Deps struct {
	// Store holds the embeddings and topics artifacts. Required.
	Store artifact.Store

	// Titles feeds the lexical signal. Nil leaves lexical out of searches.
	Titles lexical.TitleIndex

	// Encoder embeds queries. Nil leaves semantic out of searches; Similar still works.
	Encoder semantic.QueryEncoder

	// Topics infers a query's topic distribution. Nil averages the topics of the
	// query's nearest papers by embedding.
	Topics TopicInferencer

	Logger *zap.Logger
}

// Engine answers search and similar-paper requests over the current artifacts.
type Engine struct {
	embeddings *artifact.Cache
	topics     *artifact.Cache

	finder        *semantic.Finder
	searcher      *semantic.Searcher
	topicFinder   *semantic.Finder
	topicSearcher *semantic.Searcher

	lexical   *lexical.Contributor
	encoder   semantic.QueryEncoder
	inferrer  TopicInferencer
	neighbors *NeighborTopics
	agg       *rank.Aggregator

	signals    []string
	candidates int
	limit      int
	logger     *zap.Logger
}

// New creates an engine. Metrics and normalization are resolved here, once.
func New(cfg config.Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine: artifact store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	metric, err := similarity.ByName(cfg.Ranking.Metric)
	if err != nil {
		return nil, fmt.Errorf("ranking.metric: %w", err)
	}
	topicMetric, err := similarity.ByName(cfg.Ranking.TopicMetric)
	if err != nil {
		return nil, fmt.Errorf("ranking.topic_metric: %w", err)
	}
	agg, err := rank.NewAggregator(cfg.RankConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}

	opts := []artifact.CacheOption{
		artifact.WithLoadTimeout(cfg.LoadTimeout()),
		artifact.WithLogger(logger),
	}
	embeddings := artifact.NewCache(artifact.KeyEmbeddings, deps.Store, opts...)
	topics := artifact.NewCache(artifact.KeyTopics, deps.Store, opts...)

	e := &Engine{
		embeddings:    embeddings,
		topics:        topics,
		finder:        semantic.NewFinder(embeddings, metric),
		searcher:      semantic.NewSearcher(embeddings, metric, deps.Encoder),
		topicFinder:   semantic.NewFinder(topics, topicMetric),
		topicSearcher: semantic.NewSearcher(topics, topicMetric, nil),
		encoder:       deps.Encoder,
		inferrer:      deps.Topics,
		agg:           agg,
		signals:       cfg.Ranking.Signals,
		candidates:    cfg.Ranking.Candidates,
		limit:         cfg.Ranking.DefaultLimit,
		logger:        logger,
	}
	if deps.Titles != nil {
		e.lexical = lexical.NewContributor(deps.Titles, cfg.Ranking.Lexical)
	}
	e.neighbors = NewNeighborTopics(e.searcher, topics, cfg.Ranking.TopicNeighbors)
	return e, nil
}

// Ready reports whether the embeddings artifact has been loaded at least once.
func (e *Engine) Ready() bool {
	return e.finder.Ready()
}

// Search ranks papers against a free-text query with the configured signals.
// k <= 0 uses the configured default limit.
func (e *Engine) Search(ctx context.Context, query string, k int) (*rank.Ranking, error) {
	q := &queryVector{encoder: e.encoder, text: query}

	var signals []rank.Signal
	for _, name := range e.signals {
		switch name {
		case config.SignalLexical:
			if e.lexical == nil {
				continue
			}
			signals = append(signals, rank.NewSignal(name, func(ctx context.Context) ([]rank.Score, error) {
				return e.lexical.Scores(ctx, query)
			}))
		case config.SignalSemantic:
			if e.encoder == nil {
				continue
			}
			signals = append(signals, rank.NewSignal(name, func(ctx context.Context) ([]rank.Score, error) {
				// Fail on a missing artifact before paying for the encoder call.
				if _, err := e.embeddings.Get(ctx); err != nil {
					return nil, err
				}
				vec, err := q.get(ctx)
				if err != nil {
					return nil, err
				}
				results, err := e.searcher.SearchVector(ctx, vec, e.candidates)
				return toScores(results), err
			}))
		case config.SignalTopic:
			signals = append(signals, rank.NewSignal(name, func(ctx context.Context) ([]rank.Score, error) {
				dist, err := e.inferTopics(ctx, q)
				if err != nil {
					return nil, err
				}
				results, err := e.topicSearcher.SearchVector(ctx, dist, e.candidates)
				return toScores(results), err
			}))
		}
	}

	return e.agg.Rank(ctx, OpSearch, signals, e.k(k))
}

// Similar ranks papers against a paper already in the index, which is never returned.
// k <= 0 uses the configured default limit.
func (e *Engine) Similar(ctx context.Context, paperID string, k int) (*rank.Ranking, error) {
	var signals []rank.Signal
	for _, name := range e.signals {
		var finder *semantic.Finder
		switch name {
		case config.SignalSemantic:
			finder = e.finder
		case config.SignalTopic:
			finder = e.topicFinder
		default:
			continue
		}
		signals = append(signals, rank.NewSignal(name, func(ctx context.Context) ([]rank.Score, error) {
			results, err := finder.FindSimilar(ctx, paperID, e.candidates)
			return toScores(results), err
		}))
	}

	return e.agg.Rank(ctx, OpSimilar, signals, e.k(k))
}

// SemanticSearch ranks papers by embedding similarity alone, with raw similarities.
func (e *Engine) SemanticSearch(ctx context.Context, query string, k int) ([]semantic.SearchResult, error) {
	return e.searcher.Search(ctx, query, e.k(k))
}

// SemanticSimilar finds papers by embedding similarity alone, with raw similarities.
func (e *Engine) SemanticSimilar(ctx context.Context, paperID string, k int) ([]semantic.SearchResult, error) {
	return e.finder.FindSimilar(ctx, paperID, e.k(k))
}

// MissingPapers returns the ids that have no row in the current embeddings matrix.
func (e *Engine) MissingPapers(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	for _, id := range ids {
		ok, err := e.finder.HasPaper(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (e *Engine) inferTopics(ctx context.Context, q *queryVector) ([]float64, error) {
	if e.inferrer != nil {
		return e.inferrer.InferTopics(ctx, q.text)
	}
	vec, err := q.get(ctx)
	if err != nil {
		return nil, err
	}
	return e.neighbors.FromVector(ctx, vec)
}

func (e *Engine) k(k int) int {
	if k <= 0 {
		return e.limit
	}
	return k
}

// queryVector encodes the query at most once per request.
type queryVector struct {
	encoder semantic.QueryEncoder
	text    string
	done    bool
	vec     []float64
	err     error
}

func (q *queryVector) get(ctx context.Context) ([]float64, error) {
	if q.done {
		return q.vec, q.err
	}
	q.done = true
	if q.encoder == nil {
		q.err = semantic.ErrNoEncoder
		return nil, q.err
	}
	q.vec, q.err = q.encoder.EncodeQuery(ctx, q.text)
	if q.err != nil {
		q.err = fmt.Errorf("encoding query: %w", q.err)
	}
	return q.vec, q.err
}

func toScores(results []semantic.SearchResult) []rank.Score {
	scores := make([]rank.Score, len(results))
	for i, r := range results {
		scores[i] = rank.Score{PaperID: r.PaperID, Value: r.Similarity}
	}
	return scores
}
