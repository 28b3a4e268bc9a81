package artifact

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// MarkerFileName is the version marker file next to the artifact files.
const MarkerFileName = "versions.json"

// Version is the last-update time the producer recorded for one artifact key.
type Version struct {
	Key       string
	UpdatedAt time.Time
}

// Marker maps artifact keys to their last-update timestamps.
type Marker map[string]time.Time

// timestampLayouts are the ISO-8601 forms accepted in the marker file.
// Timestamps without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseMarker decodes a marker file: a JSON object of key -> ISO-8601 timestamp.
func ParseMarker(data []byte) (Marker, error) {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing version marker: %w", err)
	}

	m := make(Marker, len(raw))
	for key, value := range raw {
		ts, err := parseTimestamp(value)
		if err != nil {
			return nil, fmt.Errorf("parsing version marker entry %q: %w", key, err)
		}
		m[key] = ts
	}
	return m, nil
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 timestamp %q", s)
}

// Lookup returns the version recorded for key.
func (m Marker) Lookup(key string) (Version, bool) {
	ts, ok := m[key]
	if !ok {
		return Version{}, false
	}
	return Version{Key: key, UpdatedAt: ts}, true
}

// Versions returns every entry sorted by key.
func (m Marker) Versions() []Version {
	out := make([]Version, 0, len(m))
	for k, ts := range m {
		out = append(out, Version{Key: k, UpdatedAt: ts})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

// Encode serializes the marker with RFC 3339 timestamps.
func (m Marker) Encode() ([]byte, error) {
	raw := make(map[string]string, len(m))
	for k, ts := range m {
		raw[k] = ts.UTC().Format(time.RFC3339Nano)
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding version marker: %w", err)
	}
	return data, nil
}
