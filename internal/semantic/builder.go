package semantic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matsen/paperrank/internal/artifact"
	"github.com/matsen/paperrank/internal/reference"
)

// MinAbstractLength is the minimum abstract length (in characters) to index.
// ~50 characters is roughly 10 words, the least that carries usable signal.
const MinAbstractLength = 50

// ErrNothingToIndex is returned when no paper has a usable abstract.
var ErrNothingToIndex = errors.New("no papers with abstracts to index")

// ProgressReporter receives progress updates during building.
type ProgressReporter interface {
	// OnProgress is called with the current progress.
	OnProgress(current, total int)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(current, total int)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(current, total int) {
	f(current, total)
}

// DocumentEncoder turns whole documents into vectors. *embedding.Vectorizer implements it.
type DocumentEncoder interface {
	EncodeDocuments(ctx context.Context, docs []string) ([][]float32, error)
	ModelName() string
}

// Builder embeds paper abstracts and publishes them as an artifact.
type Builder struct {
	encoder   DocumentEncoder
	publisher artifact.Publisher
	key       string
	progress  ProgressReporter
	now       func() time.Time
}

// NewBuilder creates a builder that publishes under artifact.KeyEmbeddings.
func NewBuilder(encoder DocumentEncoder, publisher artifact.Publisher) *Builder {
	return &Builder{
		encoder:   encoder,
		publisher: publisher,
		key:       artifact.KeyEmbeddings,
		now:       time.Now,
	}
}

// SetProgressReporter sets the progress reporter for the builder.
func (b *Builder) SetProgressReporter(reporter ProgressReporter) {
	b.progress = reporter
}

// Build embeds every paper with a usable abstract, writes the matrix artifact
// and bumps its version marker so running caches pick it up.
func (b *Builder) Build(ctx context.Context, refs []reference.Reference) (*BuildStats, error) {
	start := time.Now()
	stats := &BuildStats{
		SkippedReason: "no_abstract",
		ModelName:     b.encoder.ModelName(),
	}

	rows := make([]artifact.PaperVector, 0, len(refs))
	for i, ref := range refs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if b.progress != nil {
			b.progress.OnProgress(i+1, len(refs))
		}

		if !ref.HasAbstract(MinAbstractLength) {
			stats.PapersSkipped++
			continue
		}

		vecs, err := b.encoder.EncodeDocuments(ctx, []string{DocumentText(ref)})
		if err != nil {
			return nil, fmt.Errorf("embedding paper %s: %w", ref.ID, err)
		}
		rows = append(rows, artifact.PaperVector{ID: ref.ID, Vector: widen(vecs[0])})
		stats.PapersIndexed++
	}

	if len(rows) == 0 {
		return nil, ErrNothingToIndex
	}

	m, err := artifact.NewMatrix(rows)
	if err != nil {
		return nil, fmt.Errorf("building matrix: %w", err)
	}
	data, err := artifact.MarshalMatrix(b.key, m)
	if err != nil {
		return nil, err
	}

	version := artifact.Version{Key: b.key, UpdatedAt: b.now().UTC()}
	if err := artifact.Publish(ctx, b.publisher, b.key, m, version); err != nil {
		return nil, fmt.Errorf("publishing %s: %w", b.key, err)
	}

	stats.Dimensions = m.Dims()
	stats.Version = version.UpdatedAt
	stats.Checksum = artifact.Checksum(data)
	stats.Duration = time.Since(start)
	return stats, nil
}

// DocumentText is the text embedded for a paper: its title followed by the abstract.
func DocumentText(ref reference.Reference) string {
	title := strings.TrimSpace(ref.Title)
	if title == "" {
		return ref.Abstract
	}
	return title + ". " + ref.Abstract
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
