// Package storage holds the paper corpus: a JSONL source of truth and a
// SQLite database rebuilt from it for lookup and full-text title matching.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/matsen/paperrank/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadAll reads all references from a JSONL file. A missing file is an empty corpus.
func ReadAll(path string) ([]reference.Reference, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening refs file: %w", err)
	}
	defer f.Close()

	var refs []reference.Reference
	seen := make(map[string]int)
	scanner := bufio.NewScanner(f)

	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ref reference.Reference
		if err := json.Unmarshal(line, &ref); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		if ref.ID == "" {
			return nil, fmt.Errorf("line %d: reference has no id", lineNum)
		}
		if prev, dup := seen[ref.ID]; dup {
			return nil, fmt.Errorf("line %d: duplicate id %q (first on line %d)", lineNum, ref.ID, prev)
		}
		seen[ref.ID] = lineNum
		refs = append(refs, ref)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading refs file: %w", err)
	}

	return refs, nil
}

// WriteAll writes all references to a JSONL file, replacing existing content.
func WriteAll(path string, refs []reference.Reference) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating refs file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i, ref := range refs {
		if err := enc.Encode(ref); err != nil {
			return fmt.Errorf("writing reference %d: %w", i, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing refs file: %w", err)
	}
	return f.Close()
}
