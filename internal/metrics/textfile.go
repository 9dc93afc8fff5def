package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CacheState is the point-in-time view of the index exported alongside the
// event summary.
type CacheState struct {
	EntriesByType map[string]int
	Expired       int
	IndexBytes    int64
	BlobBytes     int64
}

// NewRegistry builds a private registry holding gauges for s and state.
func NewRegistry(s Summary, state CacheState) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	events := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recall_events",
			Help: "Events recorded in the metrics log, by event name",
		},
		[]string{"event"},
	)
	for _, name := range []string{EventStore, EventHit, EventMiss, EventBypass} {
		events.WithLabelValues(name).Set(float64(s.Events[name]))
	}

	hits := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recall_hits",
			Help: "Cache hits recorded in the metrics log, by hit type",
		},
		[]string{"type"},
	)
	for _, kind := range []string{"exact", "semantic"} {
		hits.WithLabelValues(kind).Set(float64(s.HitsByType[kind]))
	}

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "recall_hit_ratio",
		Help: "Hits divided by lookups (hits, misses and bypasses)",
	}).Set(s.HitRate)

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "recall_tokens_avoided_stored",
		Help: "Sum of tokens_avoided_est over store events",
	}).Set(float64(s.TokensAvoidedStored))

	entries := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recall_cache_entries",
			Help: "Entries currently in the index, by kind",
		},
		[]string{"type"},
	)
	for _, kind := range []string{"exact", "semantic"} {
		entries.WithLabelValues(kind).Set(float64(state.EntriesByType[kind]))
	}

	factory.NewGauge(prometheus.GaugeOpts{
		Name: "recall_cache_expired_entries",
		Help: "Entries in the index whose expiry has passed",
	}).Set(float64(state.Expired))

	size := factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recall_cache_size_bytes",
			Help: "On-disk size of the cache, by file class",
		},
		[]string{"file"},
	)
	size.WithLabelValues("index").Set(float64(state.IndexBytes))
	size.WithLabelValues("blobs").Set(float64(state.BlobBytes))

	return reg
}

// WriteTextfile writes the gauges in node-exporter textfile format.
func WriteTextfile(path string, s Summary, state CacheState) error {
	if err := prometheus.WriteToTextfile(path, NewRegistry(s, state)); err != nil {
		return fmt.Errorf("writing textfile %s: %w", path, err)
	}
	return nil
}
