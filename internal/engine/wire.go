package engine

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/matsen/paperrank/internal/artifact"
	"github.com/matsen/paperrank/internal/config"
	"github.com/matsen/paperrank/internal/embedding"
	"github.com/matsen/paperrank/internal/window"
)

// OpenStore returns the artifact store the configuration points at.
// Both backends can also publish.
func OpenStore(cfg config.Config) (artifact.Publisher, error) {
	switch cfg.Artifacts.Store {
	case config.StoreDir:
		return artifact.NewDirStore(cfg.Artifacts.Dir), nil
	case config.StoreS3:
		s3cfg := cfg.Artifacts.S3
		return artifact.NewS3Store(artifact.NewS3Client(s3cfg), s3cfg.Bucket, s3cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown artifact store %q", cfg.Artifacts.Store)
	}
}

// NewTokenizer builds the windowing tokenizer. With a vocabulary that has them,
// windows are wrapped in [CLS] and [SEP].
func NewTokenizer(cfg config.Config) (*window.VocabTokenizer, error) {
	if cfg.Embedding.Vocab == "" {
		return window.NewVocabTokenizer(nil)
	}

	vocab, err := window.LoadVocab(cfg.Embedding.Vocab)
	if err != nil {
		return nil, err
	}
	var opts []window.TokenizerOption
	_, hasCLS := vocab[window.ClassToken]
	_, hasSEP := vocab[window.SepToken]
	if hasCLS && hasSEP {
		opts = append(opts, window.WithSpecials(window.ClassToken, window.SepToken))
	}
	tok, err := window.NewVocabTokenizer(vocab, opts...)
	if err != nil {
		return nil, fmt.Errorf("vocab %s: %w", cfg.Embedding.Vocab, err)
	}
	return tok, nil
}

// Encoder is the embedding pipeline built from configuration.
type Encoder struct {
	*embedding.Vectorizer
	redis *redis.Client
}

// Close releases the Redis connection, if any.
func (e *Encoder) Close() error {
	if e.redis == nil {
		return nil
	}
	return e.redis.Close()
}

// NewEncoder builds provider -> rate limit -> instrumentation -> optional Redis cache
// -> windowing vectorizer.
func NewEncoder(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Encoder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := embedding.New(cfg.EmbeddingOptions())
	if err != nil {
		return nil, err
	}
	provider = embedding.NewRateLimited(provider, cfg.Embedding.RateLimit, cfg.Embedding.RateBurst)
	provider = embedding.NewInstrumented(provider, cfg.Embedding.Provider, logger)

	enc := &Encoder{}
	if cfg.Cache.RedisAddr != "" {
		client, err := embedding.NewRedisClient(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			// Fall back to uncached encoding.
			logger.Warn("Embedding cache unavailable",
				zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		} else {
			enc.redis = client
			provider = embedding.NewCached(provider, embedding.NewRedisStore(client), cfg.CacheTTL(), logger)
		}
	}

	tok, err := NewTokenizer(cfg)
	if err != nil {
		enc.Close()
		return nil, err
	}
	enc.Vectorizer = embedding.NewVectorizer(provider, tok, cfg.Windowing, cfg.EncoderTimeout())
	return enc, nil
}
