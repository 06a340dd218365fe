package metrics

import "github.com/prometheus/client_golang/prometheus"

// Shard outcome labels.
const (
	ShardOK      = "ok"
	ShardError   = "error"
	ShardSkipped = "skipped"
)

// Hybrid search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridex",
			Name:      "search_requests_total",
			Help:      "Total number of hybrid search requests",
		},
		[]string{"technique", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hybridex",
			Name:      "search_duration_seconds",
			Help:      "Hybrid search duration in seconds, including embedding and shard fan-out",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"technique"},
	)

	ShardResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hybridex",
			Name:      "shard_responses_total",
			Help:      "Shard responses by outcome",
		},
		[]string{"shard", "outcome"}, // ok / error / skipped
	)

	StreamDecodeErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hybridex",
			Name:      "stream_decode_errors_total",
			Help:      "Shard streams rejected by the decoder",
		},
	)

	MergedEntries = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hybridex",
			Name:      "merged_entries",
			Help:      "Unique documents after cross-shard combination",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(ShardResponsesTotal)
	prometheus.MustRegister(StreamDecodeErrorsTotal)
	prometheus.MustRegister(MergedEntries)
	searchMetricsRegistered = true
}
