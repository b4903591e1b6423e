package metrics

import "github.com/prometheus/client_golang/prometheus"

// Indexing and search Prometheus metrics.
var (
	DatasetsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "datasets_indexed_total",
			Help:      "Total number of datasets written to the store",
		},
		[]string{"product"},
	)

	IndexEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "index_entries_total",
			Help:      "Total search index entries extracted from dataset documents",
		},
		[]string{"product", "kind"},
	)

	UnindexableValuesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "unindexable_values_total",
			Help:      "Extracted values skipped because they have no index representation",
		},
		[]string{"product", "field"},
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "geodex",
			Name:      "searches_total",
			Help:      "Total number of search and count operations",
		},
		[]string{"product", "operation", "status"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "geodex",
			Name:      "search_duration_seconds",
			Help:      "Search operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"product", "operation"},
	)
)

var indexingMetricsRegistered bool

// RegisterIndexingMetrics registers indexing and search metrics. Must be called once from main.
func RegisterIndexingMetrics() {
	if indexingMetricsRegistered {
		return
	}
	prometheus.MustRegister(DatasetsIndexedTotal)
	prometheus.MustRegister(IndexEntriesTotal)
	prometheus.MustRegister(UnindexableValuesTotal)
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	indexingMetricsRegistered = true
}
