package main

import "github.com/prometheus/client_golang/prometheus"

// - bytes served by Copy vs embedded as Literal
// - extents discovered per file
// - image block index size
// - per-file discovery duration

func init() {
	prometheus.MustRegister(metrics_bytesBySegmentKind)
	prometheus.MustRegister(metrics_extentsDiscovered)
	prometheus.MustRegister(metrics_imageIndexEntries)
	prometheus.MustRegister(metrics_filesProcessed)
	prometheus.MustRegister(metrics_discoveryDurationHistogram)
}

var metrics_bytesBySegmentKind = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plan_bytes_by_segment_kind",
		Help: "Bytes of the reconstruction plan by segment kind",
	},
	[]string{"kind"},
)

var metrics_extentsDiscovered = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "extents_discovered_total",
		Help: "Verified extents discovered, by extracted file",
	},
	[]string{"path"},
)

var metrics_imageIndexEntries = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "image_block_index_entries",
		Help: "Number of (hash, offset) records in the image block index",
	},
)

var metrics_filesProcessed = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "extracted_files_processed_total",
		Help: "Extracted files that have completed extent discovery",
	},
)

var metrics_discoveryDurationHistogram = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "extent_discovery_duration_seconds",
		Help: "Per-file extent discovery duration",
	},
	[]string{"path"},
)
