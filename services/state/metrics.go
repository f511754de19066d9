package state

import (
	"sync"

	"github.com/niklaslong/zebra/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusStateCommitBlock      prometheus.Histogram
	prometheusStateRejectedBlocks   *prometheus.CounterVec
	prometheusStateFinalizedBlocks  prometheus.Counter
	prometheusStatePrunedChains     prometheus.Counter
	prometheusStateChains           prometheus.Gauge
	prometheusStateBestHeight       prometheus.Gauge
	prometheusStateFinalizedHeight  prometheus.Gauge
	prometheusStateAwaitUtxoWaiters prometheus.Gauge
	prometheusStateRead             *prometheus.HistogramVec
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusStateCommitBlock = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "state",
			Name:      "commit_block",
			Help:      "Histogram of committing a block to the chain state",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusStateRejectedBlocks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "state",
			Name:      "rejected_blocks",
			Help:      "Number of blocks rejected by the chain state, by error category",
		},
		[]string{
			"category",
		},
	)

	prometheusStateFinalizedBlocks = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "state",
			Name:      "finalized_blocks",
			Help:      "Number of blocks moved to finalized storage",
		},
	)

	prometheusStatePrunedChains = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "state",
			Name:      "pruned_chains",
			Help:      "Number of non-finalized chains dropped as losers",
		},
	)

	prometheusStateChains = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "state",
			Name:      "chains",
			Help:      "Number of non-finalized chains",
		},
	)

	prometheusStateBestHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "state",
			Name:      "best_height",
			Help:      "Height of the best chain tip",
		},
	)

	prometheusStateFinalizedHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "state",
			Name:      "finalized_height",
			Help:      "Height of the finalized tip",
		},
	)

	prometheusStateAwaitUtxoWaiters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "state",
			Name:      "await_utxo_waiters",
			Help:      "Number of requests waiting for an output",
		},
	)

	prometheusStateRead = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "state",
			Name:      "read",
			Help:      "Histogram of read requests",
			Buckets:   util.MetricsBucketsMicroSeconds,
		},
		[]string{"request"},
	)
}
