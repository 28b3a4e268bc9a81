// Package metrics holds the Prometheus collectors for the ranking engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paperrank"

// Artifact cache metrics.
var (
	ArtifactLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_loads_total",
			Help:      "Artifact load attempts by key and status",
		},
		[]string{"key", "status"}, // "success" / "error"
	)

	ArtifactLoadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_load_duration_seconds",
			Help:      "Artifact load duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"key"},
	)

	ArtifactVersionTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_version_timestamp_seconds",
			Help:      "Version marker timestamp of the artifact currently served",
		},
		[]string{"key"},
	)
)

// Encoder metrics.
var (
	EncoderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encoder_requests_total",
			Help:      "Encoder requests by provider and status",
		},
		[]string{"provider", "status"},
	)

	EncoderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encoder_request_duration_seconds",
			Help:      "Encoder request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// Ranking metrics.
var (
	SignalFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_failures_total",
			Help:      "Ranking signals that failed and were left out of a result",
		},
		[]string{"signal"},
	)

	RankingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rankings_total",
			Help:      "Ranking requests by operation and outcome",
		},
		[]string{"op", "outcome"}, // outcome: "ok" / "degraded" / "error"
	)
)

var registerOnce sync.Once

// Register registers every collector with reg. Only the first call has an effect.
func Register(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			ArtifactLoadsTotal,
			ArtifactLoadDuration,
			ArtifactVersionTimestamp,
			EncoderRequestsTotal,
			EncoderRequestDuration,
			EmbeddingCacheTotal,
			SignalFailuresTotal,
			RankingsTotal,
		)
	})
}
