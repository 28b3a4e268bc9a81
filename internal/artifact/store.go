package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by a Store when the marker or an artifact file does not exist.
var ErrNotFound = errors.New("artifact object not found")

// Store reads the version marker and artifact files from persistent storage.
type Store interface {
	// ReadMarker returns the raw version marker file.
	ReadMarker(ctx context.Context) ([]byte, error)

	// ReadArtifact returns the raw artifact file for key.
	ReadArtifact(ctx context.Context, key string) ([]byte, error)
}

// Publisher is a Store the offline producer can write to.
type Publisher interface {
	Store
	WriteArtifact(ctx context.Context, key string, data []byte) error
	WriteMarker(ctx context.Context, data []byte) error
}

// DirStore keeps artifacts as files in one directory.
type DirStore struct {
	dir string
}

// NewDirStore creates a store rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the store directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// ReadMarker implements Store.
func (s *DirStore) ReadMarker(ctx context.Context) ([]byte, error) {
	return s.read(ctx, MarkerFileName)
}

// ReadArtifact implements Store.
func (s *DirStore) ReadArtifact(ctx context.Context, key string) ([]byte, error) {
	return s.read(ctx, FileName(key))
}

// WriteArtifact implements Publisher.
func (s *DirStore) WriteArtifact(ctx context.Context, key string, data []byte) error {
	return s.write(ctx, FileName(key), data)
}

// WriteMarker implements Publisher.
func (s *DirStore) WriteMarker(ctx context.Context, data []byte) error {
	return s.write(ctx, MarkerFileName, data)
}

func (s *DirStore) read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return data, nil
}

// write replaces name atomically: readers see the old file or the new one, never a prefix.
func (s *DirStore) write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	path := filepath.Join(s.dir, name)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}

// Publish writes m under key and records version in the marker, keeping other keys.
// The artifact is written before the marker so a reader never sees a marker
// pointing at a missing file.
func Publish(ctx context.Context, p Publisher, key string, m *PaperMatrix, version Version) error {
	data, err := MarshalMatrix(key, m)
	if err != nil {
		return err
	}
	if err := p.WriteArtifact(ctx, key, data); err != nil {
		return err
	}

	marker := Marker{}
	raw, err := p.ReadMarker(ctx)
	switch {
	case err == nil:
		if marker, err = ParseMarker(raw); err != nil {
			return err
		}
	case !errors.Is(err, ErrNotFound):
		return err
	}

	marker[key] = version.UpdatedAt
	encoded, err := marker.Encode()
	if err != nil {
		return err
	}
	return p.WriteMarker(ctx, encoded)
}
