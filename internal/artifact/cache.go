package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matsen/paperrank/internal/metrics"
)

// Errors returned by the artifact cache.
var (
	// ErrArtifactUnavailable means no usable artifact exists yet: the marker is missing,
	// the key is absent from it, or the first load never succeeded.
	ErrArtifactUnavailable = errors.New("artifact unavailable")

	// ErrArtifactLoadFailed means a load attempt failed. The cache keeps serving the
	// previous artifact when it has one.
	ErrArtifactLoadFailed = errors.New("artifact load failed")
)

// Well-known artifact keys.
const (
	KeyEmbeddings = "embeddings"
	KeyTopics     = "topics"
)

// DefaultLoadTimeout bounds a single artifact load.
const DefaultLoadTimeout = 30 * time.Second

// Snapshot is one successfully loaded artifact version. Snapshots are never mutated.
type Snapshot struct {
	Matrix   *PaperMatrix
	Version  time.Time // marker timestamp the snapshot was loaded for
	Checksum string
	LoadedAt time.Time
}

// Cache serves the current matrix for one artifact key and reloads it when the
// version marker moves forward.
type Cache struct {
	key     string
	store   Store
	timeout time.Duration
	logger  *zap.Logger

	current atomic.Pointer[Snapshot]
	loadMu  sync.Mutex
	loads   atomic.Int64
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLoadTimeout bounds each artifact load.
func WithLoadTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for load events.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates a cache for key backed by store. Nothing is loaded until Get.
func NewCache(key string, store Store, opts ...CacheOption) *Cache {
	c := &Cache{
		key:     key,
		store:   store,
		timeout: DefaultLoadTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("artifact", key))
	return c
}

// Key returns the artifact key.
func (c *Cache) Key() string {
	return c.key
}

// Ready reports whether an artifact has been loaded at least once.
func (c *Cache) Ready() bool {
	return c.current.Load() != nil
}

// Snapshot returns the currently served snapshot without any I/O, or nil.
func (c *Cache) Snapshot() *Snapshot {
	return c.current.Load()
}

// Loads returns the number of successful underlying loads.
func (c *Cache) Loads() int64 {
	return c.loads.Load()
}

// Get returns the matrix for the newest version recorded in the marker.
// It loads from the store only when the marker is newer than the loaded snapshot.
func (c *Cache) Get(ctx context.Context) (*PaperMatrix, error) {
	cur := c.current.Load()

	version, err := c.markerVersion(ctx)
	if err != nil {
		if errors.Is(err, ErrArtifactUnavailable) {
			return nil, err
		}
		if cur == nil {
			return nil, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
		}
		c.logger.Warn("Version marker unreadable, serving loaded artifact",
			zap.Time("version", cur.Version), zap.Error(err))
		return cur.Matrix, nil
	}

	if cur != nil && !version.After(cur.Version) {
		return cur.Matrix, nil
	}
	return c.reload(ctx, version)
}

// markerVersion reads the marker and returns the timestamp for this key.
// A missing marker or key is ErrArtifactUnavailable; other errors are I/O or parse failures.
func (c *Cache) markerVersion(ctx context.Context) (time.Time, error) {
	raw, err := c.store.ReadMarker(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return time.Time{}, fmt.Errorf("%w: no version marker", ErrArtifactUnavailable)
		}
		return time.Time{}, fmt.Errorf("reading version marker: %w", err)
	}

	marker, err := ParseMarker(raw)
	if err != nil {
		return time.Time{}, err
	}

	v, ok := marker.Lookup(c.key)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q not in version marker", ErrArtifactUnavailable, c.key)
	}
	return v.UpdatedAt, nil
}

func (c *Cache) reload(ctx context.Context, version time.Time) (*PaperMatrix, error) {
	cur := c.current.Load()
	if cur != nil {
		// Someone else is loading; keep serving the previous version meanwhile.
		if !c.loadMu.TryLock() {
			return cur.Matrix, nil
		}
	} else {
		c.loadMu.Lock()
	}
	defer c.loadMu.Unlock()

	cur = c.current.Load()
	if cur != nil && !version.After(cur.Version) {
		return cur.Matrix, nil
	}

	snap, err := c.load(ctx, version)
	if err != nil {
		metrics.ArtifactLoadsTotal.WithLabelValues(c.key, "error").Inc()
		if cur != nil {
			c.logger.Warn("Artifact reload failed, keeping previous version",
				zap.Time("version", version), zap.Time("serving", cur.Version), zap.Error(err))
			return cur.Matrix, nil
		}
		c.logger.Warn("Artifact load failed", zap.Time("version", version), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrArtifactUnavailable, err)
	}

	c.current.Store(snap)
	c.loads.Add(1)
	metrics.ArtifactLoadsTotal.WithLabelValues(c.key, "success").Inc()
	metrics.ArtifactVersionTimestamp.WithLabelValues(c.key).Set(float64(version.Unix()))
	c.logger.Info("Artifact loaded",
		zap.Time("version", version),
		zap.Int("rows", snap.Matrix.Len()),
		zap.Int("dims", snap.Matrix.Dims()),
		zap.String("checksum", snap.Checksum))
	return snap.Matrix, nil
}

func (c *Cache) load(ctx context.Context, version time.Time) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.ArtifactLoadDuration.WithLabelValues(c.key).Observe(time.Since(start).Seconds())
	}()

	data, err := c.store.ReadArtifact(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactLoadFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactLoadFailed, err)
	}

	m, err := DecodeMatrix(bytes.NewReader(data), c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactLoadFailed, err)
	}

	return &Snapshot{
		Matrix:   m,
		Version:  version,
		Checksum: Checksum(data),
		LoadedAt: time.Now(),
	}, nil
}
