package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/matsen/paperrank/internal/window"
)

// spaceTokenizer splits on whitespace and uses word lengths as ids.
type spaceTokenizer struct{}

func (spaceTokenizer) Tokenize(text string) ([]window.Token, error) {
	var toks []window.Token
	for _, w := range strings.Fields(text) {
		toks = append(toks, window.Token{ID: len(w), Text: w})
	}
	return toks, nil
}

func (spaceTokenizer) Specials() (prefix, suffix []window.Token) { return nil, nil }

func TestVectorizer_EncodeDocuments(t *testing.T) {
	inner := &fakeProvider{}
	cfg := window.Config{MaxLength: 4, Overlap: 1, MaxWindows: 3}
	v := NewVectorizer(inner, spaceTokenizer{}, cfg, time.Second)

	vecs, err := v.EncodeDocuments(context.Background(), []string{"a b c d e f g", "x yy"})
	if err != nil {
		t.Fatalf("EncodeDocuments() error = %v", err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}

	// Document 0 has windows "a b c d" and "d e f g": each [4, 7].
	if vecs[0][0] != 4 || vecs[0][1] != 7 {
		t.Errorf("vecs[0] = %v, want [4 7]", vecs[0])
	}
	if vecs[1][0] != 2 || vecs[1][1] != 4 {
		t.Errorf("vecs[1] = %v, want [2 4]", vecs[1])
	}
	if inner.callCount() != 3 {
		t.Errorf("provider called %d times, want 3 windows", inner.callCount())
	}
}

func TestVectorizer_MeanPoolsWindows(t *testing.T) {
	inner := &fakeProvider{}
	cfg := window.Config{MaxLength: 2, Overlap: 0, MaxWindows: 8}
	v := NewVectorizer(inner, spaceTokenizer{}, cfg, time.Second)

	// Windows "aa b" (len 4) and "cccc" (len 4, one word): mean [1.5, 4].
	vecs, err := v.EncodeDocuments(context.Background(), []string{"aa b cccc"})
	if err != nil {
		t.Fatal(err)
	}
	if vecs[0][0] != 1.5 || vecs[0][1] != 4 {
		t.Errorf("pooled = %v, want [1.5 4]", vecs[0])
	}
}

func TestVectorizer_EncodeQuery(t *testing.T) {
	v := NewVectorizer(&fakeProvider{}, spaceTokenizer{}, window.DefaultConfig(), 0)
	q, err := v.EncodeQuery(context.Background(), "phylogenetic trees")
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 2 || q[0] != 2 {
		t.Errorf("EncodeQuery() = %v", q)
	}
	if v.ModelName() != "fake" {
		t.Errorf("ModelName() = %q", v.ModelName())
	}
}

// batchingProvider records each batch it receives.
type batchingProvider struct {
	fakeProvider
	batches [][]string
}

func (b *batchingProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	b.batches = append(b.batches, append([]string(nil), texts...))
	embs := make([]Embedding, len(texts))
	for i, text := range texts {
		emb, err := b.fakeProvider.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embs[i] = emb
	}
	return embs, nil
}

func TestVectorizer_SendsWindowBatches(t *testing.T) {
	inner := &batchingProvider{}
	cfg := window.Config{MaxLength: 4, Overlap: 1, MaxWindows: 3}
	v := NewVectorizer(inner, spaceTokenizer{}, cfg, time.Second).WithBatchSize(2)

	// Three windows: "a b c d", "d e f g", "x yy".
	vecs, err := v.EncodeDocuments(context.Background(), []string{"a b c d e f g", "x yy"})
	if err != nil {
		t.Fatalf("EncodeDocuments() error = %v", err)
	}
	if len(inner.batches) != 2 || len(inner.batches[0]) != 2 || inner.batches[1][0] != "x yy" {
		t.Errorf("batches = %q, want [[a b c d, d e f g] [x yy]]", inner.batches)
	}
	if vecs[0][0] != 4 || vecs[0][1] != 7 || vecs[1][1] != 4 {
		t.Errorf("vecs = %v", vecs)
	}
}

// slowProvider blocks until its context ends.
type slowProvider struct{ fakeProvider }

func (s *slowProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	<-ctx.Done()
	return Embedding{}, ctx.Err()
}

func TestVectorizer_TimeoutIsUnavailable(t *testing.T) {
	v := NewVectorizer(&slowProvider{}, spaceTokenizer{}, window.DefaultConfig(), 10*time.Millisecond)

	_, err := v.EncodeQuery(context.Background(), "query")
	if !errors.Is(err, ErrEncoderUnavailable) {
		t.Errorf("EncodeQuery() error = %v, want ErrEncoderUnavailable", err)
	}
}

func TestVectorizer_InvalidConfig(t *testing.T) {
	v := NewVectorizer(&fakeProvider{}, spaceTokenizer{}, window.Config{MaxLength: 4, Overlap: 4, MaxWindows: 1}, 0)
	if _, err := v.EncodeDocuments(context.Background(), []string{"text"}); !errors.Is(err, window.ErrInvalidConfig) {
		t.Errorf("EncodeDocuments() error = %v, want ErrInvalidConfig", err)
	}
}

func TestVectorizer_NoDocuments(t *testing.T) {
	v := NewVectorizer(&fakeProvider{}, spaceTokenizer{}, window.DefaultConfig(), 0)
	vecs, err := v.EncodeDocuments(context.Background(), nil)
	if err != nil || len(vecs) != 0 {
		t.Errorf("EncodeDocuments(nil) = %v, %v", vecs, err)
	}
}
