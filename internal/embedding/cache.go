package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/matsen/paperrank/internal/metrics"
)

// DefaultCacheTTL is how long cached embeddings live.
const DefaultCacheTTL = 24 * time.Hour

const cacheKeyPrefix = "paperrank:emb:"

// VectorStore persists embeddings by key.
type VectorStore interface {
	// Get returns the vector for key; ok is false on a miss.
	Get(ctx context.Context, key string) (vec []float32, ok bool, err error)
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}

// Cached serves repeated texts from a VectorStore instead of the encoder.
// Store errors are logged and treated as misses.
type Cached struct {
	Provider
	store  VectorStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewCached wraps p with store. A non-positive ttl uses DefaultCacheTTL.
func NewCached(p Provider, store VectorStore, ttl time.Duration, logger *zap.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{Provider: p, store: store, ttl: ttl, logger: logger}
}

// Embed returns the cached vector for text or computes and stores it.
func (c *Cached) Embed(ctx context.Context, text string) (Embedding, error) {
	key := CacheKey(c.ModelName(), text)

	vec, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	if ok {
		metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return Embedding{Vector: vec}, nil
	}
	metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()

	emb, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return Embedding{}, err
	}
	if err := c.store.Set(ctx, key, emb.Vector, c.ttl); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.Error(err))
	}
	return emb, nil
}

// EmbedBatch serves cached texts from the store and sends only the misses to
// the encoder, in one batch.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	embs := make([]Embedding, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		keys[i] = CacheKey(c.ModelName(), text)
		vec, ok, err := c.store.Get(ctx, keys[i])
		if err != nil {
			c.logger.Warn("Embedding cache read failed", zap.Error(err))
		}
		if ok {
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			embs[i] = Embedding{Vector: vec}
			continue
		}
		metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return embs, nil
	}

	computed, err := EmbedAll(ctx, c.Provider, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		embs[i] = computed[j]
		if err := c.store.Set(ctx, keys[i], computed[j].Vector, c.ttl); err != nil {
			c.logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}
	return embs, nil
}

// CacheKey derives the store key for text embedded by model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + model + ":" + hex.EncodeToString(sum[:])
}

// RedisStore keeps embeddings in Redis as little-endian float32 bytes.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStore creates a store on top of client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements VectorStore.
func (s *RedisStore) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting embedding: %w", err)
	}
	vec, err := decodeVector(data)
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Set implements VectorStore.
func (s *RedisStore) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, encodeVector(vec), ttl).Err(); err != nil {
		return fmt.Errorf("setting embedding: %w", err)
	}
	return nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached embedding: %d bytes", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, nil
}
