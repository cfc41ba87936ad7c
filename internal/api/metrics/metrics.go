// Package metrics defines and registers all custom Prometheus metrics for the
// parcel intake API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics register with the default Prometheus registry at package init;
// RegisterQueueDepth must be called once the dispatcher exists.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "intake"

// ── Extraction metrics ───────────────────────────────────────────────────────

// CandidatesTotal counts tracking number candidates found by the extractor.
// Labels:
//   - carrier: e.g. "UPS", "UNKNOWN"
//   - confidence: "HIGH" or "MEDIUM"
var CandidatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "candidates_total",
		Help:      "Total number of tracking number candidates extracted, by carrier and confidence.",
	},
	[]string{"carrier", "confidence"},
)

// ExtractDuration measures one extractor call.
// Label:
//   - operation: "extract", "scan" or "label"
var ExtractDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extract_duration_seconds",
		Help:      "Duration of extraction requests, including the batch merge for scans.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// ── Batch metrics ────────────────────────────────────────────────────────────

// ScansTotal counts scan events applied to batches.
// Labels:
//   - source: KEYBOARD, CAMERA or LABEL
//   - result: "added", "duplicates_only", "none_detected" or "error"
var ScansTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "Total number of scan events, by capture source and outcome.",
	},
	[]string{"source", "result"},
)

// DuplicatesTotal counts tracking numbers skipped because the batch already
// held them.
var DuplicatesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicates_total",
		Help:      "Total number of scanned tracking numbers skipped as duplicates.",
	},
)

// SubmissionsTotal counts batch submissions to the receiving service.
// Label:
//   - result: "ok" or "error"
var SubmissionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Total number of batch submissions, by outcome.",
	},
	[]string{"result"},
)

// RegisterQueueDepth exposes the number of batch mutations queued or running
// in the dispatcher.
func RegisterQueueDepth(pending func() int) prometheus.GaugeFunc {
	return promauto.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dispatcher_pending_jobs",
			Help:      "Current number of batch mutations queued or running in the dispatcher.",
		},
		func() float64 { return float64(pending()) },
	)
}
