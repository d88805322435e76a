// Package metrics defines the Prometheus collectors exported by
// recorderd: package-level promauto vars, labeled by the dimension
// that matters for each signal, referenced directly from the call
// sites that observe the event.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordersActive tracks the number of recorder goroutines currently
	// holding a registry slot.
	RecordersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recorderd_recorders_active",
		Help: "Number of recorder goroutines currently running.",
	})

	// SegmentsInsertedTotal counts completed segments persisted to the
	// catalog, labeled by stream so a dashboard can spot a stream that
	// stopped rotating.
	SegmentsInsertedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_segments_inserted_total",
		Help: "Total number of segment rows inserted into the catalog.",
	}, []string{"stream"})

	// WriterCloseTotal counts writer Close calls made by the registry's
	// CloseAll safety net and by normal rotation/stop paths, labeled by
	// outcome so repeated finalize failures are visible without grepping
	// logs.
	WriterCloseTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_writer_close_total",
		Help: "Total number of MP4 writer Close calls, by outcome.",
	}, []string{"outcome"})

	// DedupRejectionsTotal counts playback requests rejected by the
	// deduplicator, labeled by reason (duplicate vs overflow) to
	// distinguish hot-recording contention from capacity exhaustion.
	DedupRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recorderd_dedup_rejections_total",
		Help: "Total number of playback requests rejected by the dedup table.",
	}, []string{"reason"})

	// RetentionSweepDeletedTotal counts segment rows removed by the
	// retention sweep.
	RetentionSweepDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recorderd_retention_sweep_deleted_total",
		Help: "Total number of segment rows removed by the retention sweep.",
	})
)
