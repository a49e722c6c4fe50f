package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query types used as the "type" label
const (
	QueryTypeSearch   = "search"
	QueryTypeAdvanced = "advanced"
	QueryTypeSimilar  = "similar"
	QueryTypeSuggest  = "suggest"
)

// Search metrics exported to Prometheus
var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Total number of search queries",
		},
		[]string{"type"},
	)

	SearchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_query_duration_seconds",
			Help:    "Search query duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"type"},
	)

	SearchResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_results_total",
			Help: "Total number of search results returned",
		},
		[]string{"type"},
	)

	SearchZeroResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_zero_results_total",
			Help: "Total number of searches that matched nothing",
		},
		[]string{"type"},
	)

	SearchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_errors_total",
			Help: "Total number of search errors",
		},
		[]string{"type", "error_type"},
	)

	SuggestionFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_suggestion_fallbacks_total",
			Help: "Suggestion sub-lookups that degraded to an empty result",
		},
		[]string{"source"},
	)

	AnalyticsWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_analytics_write_failures_total",
			Help: "Analytics writes that failed and were swallowed",
		},
		[]string{"operation"},
	)
)

// SearchMetrics tracks in-process performance figures surfaced by the
// health endpoint. Prometheus carries the same data for dashboards.
type SearchMetrics struct {
	QueryCount       int64
	PetSearches      int64
	AdvancedSearches int64
	SimilarSearches  int64

	// Milliseconds
	TotalQueryTime int64
	MaxQueryTime   int64
	MinQueryTime   int64

	ErrorCount       int64
	ZeroResultCount  int64
	TotalResults     int64

	mu             sync.RWMutex
	queryTimings   []int64
	maxTimingsSize int
}

// QueryMetric represents a single search query's metrics
type QueryMetric struct {
	Type        string
	ResultCount int
	Duration    time.Duration
	Error       bool
}

// NewSearchMetrics creates a new search metrics tracker
func NewSearchMetrics() *SearchMetrics {
	return &SearchMetrics{
		queryTimings:   make([]int64, 0, 1024),
		maxTimingsSize: 10000,
	}
}

// RecordQuery records a search query metric
func (sm *SearchMetrics) RecordQuery(metric QueryMetric) {
	atomic.AddInt64(&sm.QueryCount, 1)

	switch metric.Type {
	case QueryTypeSearch:
		atomic.AddInt64(&sm.PetSearches, 1)
	case QueryTypeAdvanced:
		atomic.AddInt64(&sm.AdvancedSearches, 1)
	case QueryTypeSimilar:
		atomic.AddInt64(&sm.SimilarSearches, 1)
	}

	durationMs := metric.Duration.Milliseconds()
	atomic.AddInt64(&sm.TotalQueryTime, durationMs)
	sm.updateMinMax(durationMs)

	sm.mu.Lock()
	if len(sm.queryTimings) < sm.maxTimingsSize {
		sm.queryTimings = append(sm.queryTimings, durationMs)
	}
	sm.mu.Unlock()

	SearchQueriesTotal.WithLabelValues(metric.Type).Inc()
	SearchQueryDuration.WithLabelValues(metric.Type).Observe(metric.Duration.Seconds())

	if metric.Error {
		atomic.AddInt64(&sm.ErrorCount, 1)
		SearchErrorsTotal.WithLabelValues(metric.Type, "query_failed").Inc()
		return
	}

	atomic.AddInt64(&sm.TotalResults, int64(metric.ResultCount))
	SearchResultsTotal.WithLabelValues(metric.Type).Add(float64(metric.ResultCount))
	if metric.ResultCount == 0 {
		atomic.AddInt64(&sm.ZeroResultCount, 1)
		SearchZeroResultsTotal.WithLabelValues(metric.Type).Inc()
	}
}

// updateMinMax updates min and max query times
func (sm *SearchMetrics) updateMinMax(duration int64) {
	for {
		oldMin := atomic.LoadInt64(&sm.MinQueryTime)
		if oldMin != 0 && duration >= oldMin {
			break
		}
		if atomic.CompareAndSwapInt64(&sm.MinQueryTime, oldMin, duration) {
			break
		}
	}

	for {
		oldMax := atomic.LoadInt64(&sm.MaxQueryTime)
		if duration <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt64(&sm.MaxQueryTime, oldMax, duration) {
			break
		}
	}
}

// GetStats returns current metrics as a map
func (sm *SearchMetrics) GetStats() map[string]interface{} {
	queryCount := atomic.LoadInt64(&sm.QueryCount)
	totalTime := atomic.LoadInt64(&sm.TotalQueryTime)
	errorCount := atomic.LoadInt64(&sm.ErrorCount)

	var avgTime, errorRate float64
	if queryCount > 0 {
		avgTime = float64(totalTime) / float64(queryCount)
		errorRate = float64(errorCount) / float64(queryCount) * 100
	}

	sm.mu.RLock()
	p50, p95, p99 := sm.calculatePercentiles()
	sm.mu.RUnlock()

	return map[string]interface{}{
		"total_queries":      queryCount,
		"pet_searches":       atomic.LoadInt64(&sm.PetSearches),
		"advanced_searches":  atomic.LoadInt64(&sm.AdvancedSearches),
		"similar_searches":   atomic.LoadInt64(&sm.SimilarSearches),
		"total_results":      atomic.LoadInt64(&sm.TotalResults),
		"zero_result_count":  atomic.LoadInt64(&sm.ZeroResultCount),
		"error_count":        errorCount,
		"error_rate":         errorRate,
		"avg_query_time_ms":  avgTime,
		"min_query_time_ms":  atomic.LoadInt64(&sm.MinQueryTime),
		"max_query_time_ms":  atomic.LoadInt64(&sm.MaxQueryTime),
		"p50_query_time_ms":  p50,
		"p95_query_time_ms":  p95,
		"p99_query_time_ms":  p99,
	}
}

// calculatePercentiles expects mu to be held
func (sm *SearchMetrics) calculatePercentiles() (p50, p95, p99 int64) {
	if len(sm.queryTimings) == 0 {
		return 0, 0, 0
	}

	timings := make([]int64, len(sm.queryTimings))
	copy(timings, sm.queryTimings)
	sort.Slice(timings, func(i, j int) bool { return timings[i] < timings[j] })

	n := len(timings)
	p50 = timings[(n*50)/100]
	p95 = timings[(n*95)/100]
	p99 = timings[(n*99)/100]
	return
}

// Reset clears all metrics
func (sm *SearchMetrics) Reset() {
	atomic.StoreInt64(&sm.QueryCount, 0)
	atomic.StoreInt64(&sm.PetSearches, 0)
	atomic.StoreInt64(&sm.AdvancedSearches, 0)
	atomic.StoreInt64(&sm.SimilarSearches, 0)
	atomic.StoreInt64(&sm.TotalQueryTime, 0)
	atomic.StoreInt64(&sm.MaxQueryTime, 0)
	atomic.StoreInt64(&sm.MinQueryTime, 0)
	atomic.StoreInt64(&sm.ErrorCount, 0)
	atomic.StoreInt64(&sm.ZeroResultCount, 0)
	atomic.StoreInt64(&sm.TotalResults, 0)

	sm.mu.Lock()
	sm.queryTimings = sm.queryTimings[:0]
	sm.mu.Unlock()
}
