package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/paperrank/internal/reference"
)

func TestReadAll_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.jsonl")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	refs, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(refs) != 0 {
		t.Errorf("ReadAll() returned %d refs, want 0", len(refs))
	}
}

func TestReadAll_NonExistentFile(t *testing.T) {
	refs, err := ReadAll("/nonexistent/path/refs.jsonl")
	if err != nil {
		t.Fatalf("ReadAll() error = %v (should return nil for nonexistent file)", err)
	}
	if len(refs) != 0 {
		t.Errorf("ReadAll() returned %v, want empty", refs)
	}
}

func TestReadAll_SkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.jsonl")
	content := `{"id":"A2026","title":"Paper A","published":{"year":2026},"source":{"type":"manual"}}

{"id":"B2025","title":"Paper B","published":{"year":2025},"source":{"type":"manual"}}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	refs, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(refs) != 2 || refs[0].ID != "A2026" || refs[1].ID != "B2025" {
		t.Errorf("ReadAll() = %+v", refs)
	}
}

func TestReadAll_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad json", `{"id":`, "parsing line 1"},
		{"missing id", `{"title":"No id"}`, "has no id"},
		{"duplicate id", "{\"id\":\"A\"}\n{\"id\":\"A\"}", "duplicate id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "refs.jsonl")
			if err := os.WriteFile(path, []byte(tt.content+"\n"), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := ReadAll(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ReadAll() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteAll_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refs.jsonl")
	refs := []reference.Reference{
		{
			ID:        "Smith2026",
			DOI:       "10.1234/test",
			Title:     "Test Paper",
			Authors:   []reference.Author{{First: "John", Last: "Smith"}},
			Published: reference.PublicationDate{Year: 2026, Month: 2},
			Source:    reference.ImportSource{Type: "manual"},
		},
		{ID: "Doe2025", Title: "Another", Published: reference.PublicationDate{Year: 2025}},
	}

	if err := WriteAll(path, refs); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	got, err := ReadAll(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d refs, want 2", len(got))
	}
	if got[0].Authors[0].Last != "Smith" || got[0].Published.Month != 2 {
		t.Errorf("first ref = %+v", got[0])
	}
}
