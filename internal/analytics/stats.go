package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/zfogg/petfinder/internal/errors"
)

// Trend periods
const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

var periodIntervals = map[string]string{
	PeriodDay:   "1d",
	PeriodWeek:  "1w",
	PeriodMonth: "1M",
}

// TermCount is a value and how many events carried it
type TermCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// TrendPoint is one daily bucket of the stats trend
type TrendPoint struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}

// Stats aggregates all events in a window
type Stats struct {
	TotalSearches  int64        `json:"totalSearches"`
	UniqueUsers    int64        `json:"uniqueUsers"`
	AvgResultCount float64      `json:"avgResultCount"`
	TopQueries     []TermCount  `json:"topQueries"`
	TopTypes       []TermCount  `json:"topTypes"`
	TopLocations   []TermCount  `json:"topLocations"`
	TopBreeds      []TermCount  `json:"topBreeds"`
	DailyTrend     []TrendPoint `json:"dailyTrend"`
}

// UserStats aggregates one user's events
type UserStats struct {
	UserID         string      `json:"userId"`
	TotalSearches  int64       `json:"totalSearches"`
	UniqueQueries  int64       `json:"uniqueQueries"`
	TopQueries     []TermCount `json:"topQueries"`
	RecentSearches []Event     `json:"recentSearches"`
}

// TrendBucket is one period of the trend series
type TrendBucket struct {
	Start       time.Time   `json:"start"`
	Count       int64       `json:"count"`
	UniqueUsers int64       `json:"uniqueUsers"`
	AvgResults  float64     `json:"avgResults"`
	TopQueries  []TermCount `json:"topQueries"`
}

type bucket struct {
	Key         json.RawMessage `json:"key"`
	KeyAsString string          `json:"key_as_string"`
	DocCount    int64           `json:"doc_count"`
	UniqueUsers valueAgg        `json:"unique_users"`
	AvgResults  valueAgg        `json:"avg_results"`
	TopQueries  bucketsAgg      `json:"top_queries"`
}

type bucketsAgg struct {
	Buckets []bucket `json:"buckets"`
}

type valueAgg struct {
	Value *float64 `json:"value"`
}

func (v valueAgg) float() float64 {
	if v.Value == nil {
		return 0
	}
	return *v.Value
}

func (b bucket) stringKey() string {
	var s string
	if err := json.Unmarshal(b.Key, &s); err == nil {
		return s
	}
	return b.KeyAsString
}

// startTime decodes a date_histogram key given in epoch millis
func (b bucket) startTime() time.Time {
	var ms int64
	if err := json.Unmarshal(b.Key, &ms); err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func termCounts(agg bucketsAgg) []TermCount {
	out := make([]TermCount, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		key := b.stringKey()
		if key == "" {
			continue
		}
		out = append(out, TermCount{Value: key, Count: b.DocCount})
	}
	return out
}

// GetStats aggregates totals, top values and a daily trend
func (e *Engine) GetStats(ctx context.Context, tr TimeRange) (*Stats, error) {
	body := map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"query":            rangeQuery(tr),
		"aggs": map[string]interface{}{
			"unique_users":  map[string]interface{}{"cardinality": map[string]interface{}{"field": "user_id"}},
			"avg_results":   map[string]interface{}{"avg": map[string]interface{}{"field": "result_count"}},
			"top_queries":   termsAgg("query.keyword", 10),
			"top_types":     termsAgg("filters.type", 10),
			"top_locations": termsAgg("filters.location", 10),
			"top_breeds":    termsAgg("filters.breed", 10),
			"daily": map[string]interface{}{
				"date_histogram": map[string]interface{}{"field": "timestamp", "calendar_interval": "1d"},
			},
		},
	}

	res, err := e.backend.Search(ctx, e.index, body)
	if err != nil {
		return nil, fmt.Errorf("failed to get search stats: %w", err)
	}

	var aggs struct {
		UniqueUsers  valueAgg   `json:"unique_users"`
		AvgResults   valueAgg   `json:"avg_results"`
		TopQueries   bucketsAgg `json:"top_queries"`
		TopTypes     bucketsAgg `json:"top_types"`
		TopLocations bucketsAgg `json:"top_locations"`
		TopBreeds    bucketsAgg `json:"top_breeds"`
		Daily        bucketsAgg `json:"daily"`
	}
	if err := res.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("failed to decode search stats: %w", err)
	}

	stats := &Stats{
		TotalSearches:  res.Hits.Total.Value,
		UniqueUsers:    int64(aggs.UniqueUsers.float()),
		AvgResultCount: aggs.AvgResults.float(),
		TopQueries:     termCounts(aggs.TopQueries),
		TopTypes:       termCounts(aggs.TopTypes),
		TopLocations:   termCounts(aggs.TopLocations),
		TopBreeds:      termCounts(aggs.TopBreeds),
		DailyTrend:     make([]TrendPoint, 0, len(aggs.Daily.Buckets)),
	}
	for _, b := range aggs.Daily.Buckets {
		stats.DailyTrend = append(stats.DailyTrend, TrendPoint{Date: b.startTime(), Count: b.DocCount})
	}
	return stats, nil
}

// GetUserStats aggregates one user's searches and returns the 100 most recent
func (e *Engine) GetUserStats(ctx context.Context, userID string, tr TimeRange) (*UserStats, error) {
	if userID == "" {
		return nil, apperrors.NewInvalidRequest("user_id", "is required")
	}

	body := map[string]interface{}{
		"size":             100,
		"track_total_hits": true,
		"query": rangeQuery(tr, map[string]interface{}{
			"term": map[string]interface{}{"user_id": userID},
		}),
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]interface{}{"order": "desc"}},
		},
		"aggs": map[string]interface{}{
			"unique_queries": map[string]interface{}{"cardinality": map[string]interface{}{"field": "query.keyword"}},
			"top_queries":    termsAgg("query.keyword", 10),
		},
	}

	res, err := e.backend.Search(ctx, e.index, body)
	if err != nil {
		return nil, fmt.Errorf("failed to get user search stats: %w", err)
	}

	var aggs struct {
		UniqueQueries valueAgg   `json:"unique_queries"`
		TopQueries    bucketsAgg `json:"top_queries"`
	}
	if err := res.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("failed to decode user search stats: %w", err)
	}

	stats := &UserStats{
		UserID:         userID,
		TotalSearches:  res.Hits.Total.Value,
		UniqueQueries:  int64(aggs.UniqueQueries.float()),
		TopQueries:     termCounts(aggs.TopQueries),
		RecentSearches: make([]Event, 0, len(res.Hits.Hits)),
	}
	for _, hit := range res.Hits.Hits {
		var ev Event
		if err := json.Unmarshal(hit.Source, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode search event %s: %w", hit.ID, err)
		}
		stats.RecentSearches = append(stats.RecentSearches, ev)
	}
	return stats, nil
}

// TrendInterval maps a period onto a calendar interval; unknown periods
// fall back to daily.
func TrendInterval(period string) string {
	if iv, ok := periodIntervals[period]; ok {
		return iv
	}
	return periodIntervals[PeriodDay]
}

// GetTrends returns a bucketed series for the given period
func (e *Engine) GetTrends(ctx context.Context, period string, tr TimeRange) ([]TrendBucket, error) {
	body := map[string]interface{}{
		"size":  0,
		"query": rangeQuery(tr),
		"aggs": map[string]interface{}{
			"trend": map[string]interface{}{
				"date_histogram": map[string]interface{}{
					"field":             "timestamp",
					"calendar_interval": TrendInterval(period),
				},
				"aggs": map[string]interface{}{
					"unique_users": map[string]interface{}{"cardinality": map[string]interface{}{"field": "user_id"}},
					"avg_results":  map[string]interface{}{"avg": map[string]interface{}{"field": "result_count"}},
					"top_queries":  termsAgg("query.keyword", 5),
				},
			},
		},
	}

	res, err := e.backend.Search(ctx, e.index, body)
	if err != nil {
		return nil, fmt.Errorf("failed to get search trends: %w", err)
	}

	var aggs struct {
		Trend bucketsAgg `json:"trend"`
	}
	if err := res.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("failed to decode search trends: %w", err)
	}

	out := make([]TrendBucket, 0, len(aggs.Trend.Buckets))
	for _, b := range aggs.Trend.Buckets {
		out = append(out, TrendBucket{
			Start:       b.startTime(),
			Count:       b.DocCount,
			UniqueUsers: int64(b.UniqueUsers.float()),
			AvgResults:  b.AvgResults.float(),
			TopQueries:  termCounts(b.TopQueries),
		})
	}
	return out, nil
}
