package engine

import (
	"context"
	"time"

	"github.com/matsen/paperrank/internal/artifact"
)

// ArtifactStatus describes one artifact cache.
type ArtifactStatus struct {
	Key        string     `json:"key"`
	Ready      bool       `json:"ready"`
	Version    *time.Time `json:"version,omitempty"`
	Checksum   string     `json:"checksum,omitempty"`
	Papers     int        `json:"papers"`
	Dimensions int        `json:"dimensions"`
	Loads      int64      `json:"loads"`
	Error      string     `json:"error,omitempty"`
}

// Status summarizes the engine's artifacts and ranking setup.
type Status struct {
	Ready         bool             `json:"ready"`
	Signals       []string         `json:"signals"`
	Metric        string           `json:"metric"`
	TopicMetric   string           `json:"topic_metric"`
	Normalization string           `json:"normalization"`
	Artifacts     []ArtifactStatus `json:"artifacts"`
}

// Status checks each artifact against the version marker, loading newer versions,
// and reports what is being served.
func (e *Engine) Status(ctx context.Context) Status {
	st := Status{
		Signals:       e.signals,
		Metric:        e.finder.Metric().Name(),
		TopicMetric:   e.topicFinder.Metric().Name(),
		Normalization: e.agg.Normalization(),
	}
	for _, c := range []*artifact.Cache{e.embeddings, e.topics} {
		st.Artifacts = append(st.Artifacts, cacheStatus(ctx, c))
	}
	st.Ready = e.Ready()
	return st
}

func cacheStatus(ctx context.Context, c *artifact.Cache) ArtifactStatus {
	as := ArtifactStatus{Key: c.Key()}
	if _, err := c.Get(ctx); err != nil {
		as.Error = err.Error()
	}
	as.Ready = c.Ready()
	as.Loads = c.Loads()
	if snap := c.Snapshot(); snap != nil {
		v := snap.Version
		as.Version = &v
		as.Checksum = snap.Checksum
		as.Papers = snap.Matrix.Len()
		as.Dimensions = snap.Matrix.Dims()
	}
	return as
}
