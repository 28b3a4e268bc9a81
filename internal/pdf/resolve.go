package pdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoPDF is returned when a reference has no usable PDF.
var ErrNoPDF = errors.New("no pdf available")

// Resolver maps reference PDF paths, stored relative to a library root, to files.
type Resolver struct {
	root string
}

// NewResolver creates a resolver for PDFs under root.
func NewResolver(root string) *Resolver {
	return &Resolver{root: root}
}

// ResolvePath resolves a relative PDF path to an absolute path of an existing file.
func (r *Resolver) ResolvePath(relativePath string) (string, error) {
	if relativePath == "" {
		return "", fmt.Errorf("%w: no path recorded", ErrNoPDF)
	}

	fullPath := relativePath
	if !filepath.IsAbs(fullPath) {
		if r.root == "" {
			return "", fmt.Errorf("%w: pdf_root not configured", ErrNoPDF)
		}
		fullPath = filepath.Join(r.root, relativePath)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s not found", ErrNoPDF, fullPath)
		}
		return "", fmt.Errorf("checking PDF: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNoPDF, fullPath)
	}
	return fullPath, nil
}
