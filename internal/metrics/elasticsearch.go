package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Elasticsearch metrics for monitoring backend performance and health
var (
	ElasticsearchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elasticsearch_query_duration_seconds",
			Help:    "Duration of Elasticsearch requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"index", "operation", "status"},
	)

	ElasticsearchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasticsearch_errors_total",
			Help: "Total number of Elasticsearch errors",
		},
		[]string{"index", "operation", "error_type"},
	)

	ElasticsearchDocumentCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elasticsearch_document_count",
			Help: "Number of documents in each index",
		},
		[]string{"index"},
	)

	ElasticsearchRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasticsearch_index_rebuilds_total",
			Help: "Index rebuilds by outcome",
		},
		[]string{"index", "result"},
	)

	ElasticsearchSyncedDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasticsearch_synced_documents_total",
			Help: "Documents written by the batch sync, by path",
		},
		[]string{"path", "result"},
	)
)
