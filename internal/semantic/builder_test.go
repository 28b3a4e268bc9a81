package semantic

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matsen/paperrank/internal/artifact"
	"github.com/matsen/paperrank/internal/reference"
)

// lengthEncoder embeds a document as [word count, 1].
type lengthEncoder struct {
	docs []string
	err  error
}

func (e *lengthEncoder) EncodeDocuments(ctx context.Context, docs []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	e.docs = append(e.docs, docs...)
	out := make([][]float32, len(docs))
	for i, d := range docs {
		out[i] = []float32{float32(len(strings.Fields(d))), 1}
	}
	return out, nil
}

func (e *lengthEncoder) ModelName() string { return "length" }

func longAbstract(words int) string {
	return strings.Repeat("phylogeny ", words)
}

func TestBuilder_Build(t *testing.T) {
	store := artifact.NewDirStore(t.TempDir())
	enc := &lengthEncoder{}
	b := NewBuilder(enc, store)
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	var progress []int
	b.SetProgressReporter(ProgressFunc(func(current, total int) {
		progress = append(progress, current)
	}))

	refs := []reference.Reference{
		{ID: "Smith2024", Title: "Trees", Abstract: longAbstract(10)},
		{ID: "Short2023", Abstract: "too short"},
		{ID: "Jones2025", Abstract: longAbstract(20)},
	}

	stats, err := b.Build(context.Background(), refs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if stats.PapersIndexed != 2 || stats.PapersSkipped != 1 {
		t.Errorf("stats = %+v, want 2 indexed, 1 skipped", stats)
	}
	if stats.Dimensions != 2 || stats.ModelName != "length" || !stats.Version.Equal(fixed) {
		t.Errorf("stats = %+v", stats)
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("progress = %v, want [1 2 3]", progress)
	}
	if !strings.HasPrefix(enc.docs[0], "Trees. ") {
		t.Errorf("document text = %q, want title prefix", enc.docs[0])
	}

	// The published artifact is what a cache now serves.
	cache := artifact.NewCache(artifact.KeyEmbeddings, store)
	m, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("cache.Get() error = %v", err)
	}
	if m.Len() != 2 || m.ID(0) != "Smith2024" || m.ID(1) != "Jones2025" {
		t.Errorf("published ids = %v", m.IDs())
	}
	if snap := cache.Snapshot(); snap.Checksum != stats.Checksum || !snap.Version.Equal(fixed) {
		t.Errorf("snapshot %+v does not match build stats %+v", snap, stats)
	}
}

func TestBuilder_NothingToIndex(t *testing.T) {
	b := NewBuilder(&lengthEncoder{}, artifact.NewDirStore(t.TempDir()))
	_, err := b.Build(context.Background(), []reference.Reference{{ID: "a", Abstract: "short"}})
	if !errors.Is(err, ErrNothingToIndex) {
		t.Errorf("Build() error = %v, want ErrNothingToIndex", err)
	}
}

func TestBuilder_EncoderError(t *testing.T) {
	boom := errors.New("encoder down")
	store := artifact.NewDirStore(t.TempDir())
	b := NewBuilder(&lengthEncoder{err: boom}, store)

	_, err := b.Build(context.Background(), []reference.Reference{{ID: "a", Abstract: longAbstract(20)}})
	if !errors.Is(err, boom) {
		t.Errorf("Build() error = %v, want encoder error", err)
	}
	if _, err := store.ReadMarker(context.Background()); !errors.Is(err, artifact.ErrNotFound) {
		t.Error("marker written after a failed build")
	}
}

func TestBuilder_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewBuilder(&lengthEncoder{}, artifact.NewDirStore(t.TempDir()))
	if _, err := b.Build(ctx, []reference.Reference{{ID: "a", Abstract: longAbstract(20)}}); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}
