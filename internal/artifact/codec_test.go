package artifact

import (
	"bytes"
	"encoding/gob"
	"errors"
	"testing"
)

func TestMatrixRoundTrip(t *testing.T) {
	m := mustMatrix(t,
		PaperVector{ID: "10.1/a", Vector: []float64{0.1, 0.2, 0.7}},
		PaperVector{ID: "10.1/b", Vector: []float64{0.5, 0.25, 0.25}},
	)

	data, err := MarshalMatrix(KeyTopics, m)
	if err != nil {
		t.Fatalf("MarshalMatrix() error = %v", err)
	}

	got, err := DecodeMatrix(bytes.NewReader(data), KeyTopics)
	if err != nil {
		t.Fatalf("DecodeMatrix() error = %v", err)
	}
	if got.Len() != 2 || got.Dims() != 3 {
		t.Fatalf("decoded %dx%d, want 2x3", got.Len(), got.Dims())
	}
	if got.ID(1) != "10.1/b" || got.Row(1)[0] != 0.5 {
		t.Errorf("row 1 = %s %v", got.ID(1), got.Row(1))
	}
}

func TestDecodeMatrix_Errors(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		if _, err := DecodeMatrix(bytes.NewReader([]byte("not gob")), KeyTopics); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("unsupported version", func(t *testing.T) {
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(matrixFile{Version: 99, Key: KeyTopics}); err != nil {
			t.Fatal(err)
		}
		_, err := DecodeMatrix(&buf, KeyTopics)
		if !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("error = %v, want ErrUnsupportedVersion", err)
		}
	})

	t.Run("truncated data", func(t *testing.T) {
		var buf bytes.Buffer
		f := matrixFile{Version: CurrentFormatVersion, Key: KeyTopics, Dims: 2, IDs: []string{"a", "b"}, Data: []float64{1, 2, 3}}
		if err := gob.NewEncoder(&buf).Encode(f); err != nil {
			t.Fatal(err)
		}
		_, err := DecodeMatrix(&buf, KeyTopics)
		if !errors.Is(err, ErrInvalidMatrix) {
			t.Errorf("error = %v, want ErrInvalidMatrix", err)
		}
	})
}

func TestDecodeMatrix_KeyMismatch(t *testing.T) {
	m := mustMatrix(t, PaperVector{ID: "a", Vector: []float64{0.5, 0.5}})
	data, err := MarshalMatrix(KeyTopics, m)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeMatrix(bytes.NewReader(data), KeyEmbeddings); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("error = %v, want ErrKeyMismatch", err)
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum([]byte("one"))
	b := Checksum([]byte("two"))
	if a == b {
		t.Error("different inputs produced the same checksum")
	}
	if len(a) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(a))
	}
	if a != Checksum([]byte("one")) {
		t.Error("checksum is not deterministic")
	}
}
