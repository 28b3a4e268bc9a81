package artifact

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

// countingStore wraps a Store and counts artifact reads.
type countingStore struct {
	Store
	artifactReads atomic.Int64
	markerReads   atomic.Int64
}

func (s *countingStore) ReadMarker(ctx context.Context) ([]byte, error) {
	s.markerReads.Add(1)
	return s.Store.ReadMarker(ctx)
}

func (s *countingStore) ReadArtifact(ctx context.Context, key string) ([]byte, error) {
	s.artifactReads.Add(1)
	return s.Store.ReadArtifact(ctx, key)
}

func mustMatrix(t *testing.T, rows ...PaperVector) *PaperMatrix {
	t.Helper()
	m, err := NewMatrix(rows)
	if err != nil {
		t.Fatalf("NewMatrix() error = %v", err)
	}
	return m
}

func publish(t *testing.T, store *DirStore, key string, m *PaperMatrix, ts time.Time) {
	t.Helper()
	if err := Publish(context.Background(), store, key, m, Version{Key: key, UpdatedAt: ts}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}
