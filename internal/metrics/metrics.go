// Package metrics exposes the daemon's Prometheus metrics, generalized
// directly from the teacher's quidnug_* metric family in metrics.go onto
// this daemon's operations: trust mutations instead of transactions, score
// recomputation instead of block generation, hint queue depth instead of
// pending transactions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TrustMutationsTotal counts setTrust/removeTrust calls by outcome,
	// generalizing the teacher's transactionsTotal.
	TrustMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wot_trust_mutations_total",
		Help: "Total number of setTrust/removeTrust calls",
	}, []string{"operation", "status"})

	// IdentityEventsTotal counts identity lifecycle events by kind,
	// generalizing the teacher's blocksTotal.
	IdentityEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wot_identity_events_total",
		Help: "Total number of identity lifecycle events",
	}, []string{"kind"})

	// ScoreRecomputationDuration is a histogram for one owner's score
	// recomputation pass, generalizing the teacher's
	// trustComputationDuration. It is registered here; the Score Engine
	// does not observe it.
	ScoreRecomputationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wot_score_recomputation_duration_seconds",
		Help:    "Duration of one owner's score recomputation pass",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})

	// HintQueueDepthGauge reports the current EditionHint priority queue
	// length, generalizing the teacher's pendingTransactionsGauge.
	HintQueueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wot_hint_queue_depth",
		Help: "Current number of queued edition hints awaiting fetch",
	})

	// FastPartitionSizeGauge reports how many identities the Fast
	// Downloader currently holds an open subscription for, generalizing
	// the teacher's connectedNodesGauge.
	FastPartitionSizeGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wot_fast_partition_size",
		Help: "Current number of identities with an open fast-download subscription",
	})

	// HTTPRequestsTotal and HTTPRequestDuration are unchanged in shape from
	// the teacher's httpRequestsTotal/httpRequestDuration.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wot_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wot_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// RecordTrustMutation records a setTrust/removeTrust outcome.
func RecordTrustMutation(operation string, accepted bool) {
	status := "accepted"
	if !accepted {
		status = "rejected"
	}
	TrustMutationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordIdentityEvent records an identity lifecycle event, e.g.
// "create_own", "delete", "restore_own".
func RecordIdentityEvent(kind string) {
	IdentityEventsTotal.WithLabelValues(kind).Inc()
}

// UpdateHintQueueDepthGauge updates the edition hint queue depth gauge.
func UpdateHintQueueDepthGauge(count int) {
	HintQueueDepthGauge.Set(float64(count))
}

// UpdateFastPartitionSizeGauge updates the fast-partition size gauge.
func UpdateFastPartitionSizeGauge(count int) {
	FastPartitionSizeGauge.Set(float64(count))
}
