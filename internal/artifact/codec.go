package artifact

import (
	"bytes"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// CurrentFormatVersion is the artifact file format version.
// Increment this when making breaking changes to matrixFile.
const CurrentFormatVersion = 1

// FileExtension is appended to the artifact key to form its file name.
const FileExtension = ".gob"

// Decoding errors.
var (
	// ErrUnsupportedVersion is returned for artifact files written by an incompatible format.
	ErrUnsupportedVersion = errors.New("unsupported artifact format version")

	// ErrKeyMismatch is returned when a file was written for a different artifact key.
	ErrKeyMismatch = errors.New("artifact key mismatch")
)

// matrixFile is the on-disk form of a PaperMatrix.
type matrixFile struct {
	Version int
	Key     string
	Dims    int
	IDs     []string
	Data    []float64 // row-major, len(IDs)*Dims values
}

// FileName returns the artifact file name for a key.
func FileName(key string) string {
	return key + FileExtension
}

// EncodeMatrix writes m to w using GOB encoding.
func EncodeMatrix(w io.Writer, key string, m *PaperMatrix) error {
	f := matrixFile{
		Version: CurrentFormatVersion,
		Key:     key,
		Dims:    m.Dims(),
		IDs:     m.IDs(),
		Data:    make([]float64, 0, m.Len()*m.Dims()),
	}
	for i := 0; i < m.Len(); i++ {
		f.Data = append(f.Data, m.Row(i)...)
	}
	if err := gob.NewEncoder(w).Encode(f); err != nil {
		return fmt.Errorf("encoding matrix: %w", err)
	}
	return nil
}

// DecodeMatrix reads a matrix written by EncodeMatrix for key.
func DecodeMatrix(r io.Reader, key string) (*PaperMatrix, error) {
	var f matrixFile
	if err := gob.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding matrix: %w", err)
	}
	if f.Version != CurrentFormatVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, f.Version, CurrentFormatVersion)
	}
	if f.Key != key {
		return nil, fmt.Errorf("%w: file holds %q, want %q", ErrKeyMismatch, f.Key, key)
	}
	if len(f.Data) != len(f.IDs)*f.Dims {
		return nil, fmt.Errorf("%w: %d values for %d rows of %d dimensions",
			ErrInvalidMatrix, len(f.Data), len(f.IDs), f.Dims)
	}

	rows := make([]PaperVector, len(f.IDs))
	for i, id := range f.IDs {
		rows[i] = PaperVector{ID: id, Vector: f.Data[i*f.Dims : (i+1)*f.Dims]}
	}
	return NewMatrix(rows)
}

// MarshalMatrix returns the encoded bytes of m.
func MarshalMatrix(key string, m *PaperMatrix) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeMatrix(&buf, key, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Checksum returns the hex BLAKE2b-256 digest of an artifact file.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
