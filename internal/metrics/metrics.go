// Package metrics holds the ingest pipeline's business metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Thumbnail and batch outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// IngestMetrics is safe to use as a nil pointer; every method is then a no-op.
type IngestMetrics struct {
	files         *prometheus.CounterVec
	bytes         prometheus.Counter
	thumbnails    *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchDuration prometheus.Histogram
}

// NewIngestMetrics creates the collectors and registers them with reg.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	m := &IngestMetrics{
		files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_ingest_files_total",
				Help: "Number of files stored, by asset kind.",
			},
			[]string{"kind"},
		),
		bytes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "asset_ingest_bytes_total",
				Help: "Bytes of original content stored.",
			},
		),
		thumbnails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_ingest_thumbnails_total",
				Help: "Thumbnail renders, by outcome.",
			},
			[]string{"outcome"},
		),
		batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "asset_ingest_batches_total",
				Help: "Upload batches, by outcome.",
			},
			[]string{"outcome"},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "asset_ingest_batch_duration_seconds",
				Help:    "Time spent ingesting one upload batch.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
	reg.MustRegister(m.files, m.bytes, m.thumbnails, m.batches, m.batchDuration)
	return m
}

func (m *IngestMetrics) FileStored(kind string, size int64) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(kind).Inc()
	m.bytes.Add(float64(size))
}

func (m *IngestMetrics) Thumbnail(outcome string) {
	if m == nil {
		return
	}
	m.thumbnails.WithLabelValues(outcome).Inc()
}

func (m *IngestMetrics) Batch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
	m.batchDuration.Observe(d.Seconds())
}
