package analytics

import (
	"context"
	"fmt"
	"sort"
)

const (
	highPerformingCTR   = 0.1
	highPerformingLimit = 10
	effectivenessTerms  = 100
)

// QueryPerformance is the click-through of one distinct query
type QueryPerformance struct {
	Query    string  `json:"query"`
	Searches int64   `json:"searches"`
	Clicked  int64   `json:"clicked"`
	CTR      float64 `json:"ctr"`
}

// Effectiveness summarises how often searches lead to clicks.
// ClickThroughRate is a fraction in [0, 1].
type Effectiveness struct {
	TotalSearches         int64              `json:"totalSearches"`
	SearchesWithClicks    int64              `json:"searchesWithClicks"`
	ClickThroughRate      float64            `json:"clickThroughRate"`
	AverageClickPosition  float64            `json:"averageClickPosition"`
	ZeroResultQueries     []string           `json:"zeroResultQueries"`
	HighPerformingQueries []QueryPerformance `json:"highPerformingQueries"`
}

// QueryBucket is the per-query aggregate effectiveness is derived from
type QueryBucket struct {
	Query      string
	Searches   int64
	Clicked    int64
	MaxResults float64
}

// ComputeEffectiveness derives click-through figures from raw counts.
// A query is zero-result only if every event for it returned nothing.
func ComputeEffectiveness(total, withClicks int64, avgPosition float64, buckets []QueryBucket) Effectiveness {
	eff := Effectiveness{
		TotalSearches:         total,
		SearchesWithClicks:    withClicks,
		AverageClickPosition:  avgPosition,
		ZeroResultQueries:     []string{},
		HighPerformingQueries: []QueryPerformance{},
	}
	if total > 0 {
		eff.ClickThroughRate = float64(withClicks) / float64(total)
	}

	for _, b := range buckets {
		if b.Query == "" || b.Searches == 0 {
			continue
		}
		if b.MaxResults == 0 {
			eff.ZeroResultQueries = append(eff.ZeroResultQueries, b.Query)
		}
		ctr := float64(b.Clicked) / float64(b.Searches)
		if ctr > highPerformingCTR {
			eff.HighPerformingQueries = append(eff.HighPerformingQueries, QueryPerformance{
				Query:    b.Query,
				Searches: b.Searches,
				Clicked:  b.Clicked,
				CTR:      ctr,
			})
		}
	}

	sort.SliceStable(eff.HighPerformingQueries, func(i, j int) bool {
		return eff.HighPerformingQueries[i].CTR > eff.HighPerformingQueries[j].CTR
	})
	if len(eff.HighPerformingQueries) > highPerformingLimit {
		eff.HighPerformingQueries = eff.HighPerformingQueries[:highPerformingLimit]
	}
	return eff
}

// GetEffectiveness computes click-through rate, average click position,
// zero-result queries and high-performing queries in one request.
func (e *Engine) GetEffectiveness(ctx context.Context, tr TimeRange) (*Effectiveness, error) {
	clicked := map[string]interface{}{
		"filter": map[string]interface{}{
			"range": map[string]interface{}{"click_count": map[string]interface{}{"gte": 1}},
		},
	}
	queries := termsAgg("query.keyword", effectivenessTerms)
	queries["aggs"] = map[string]interface{}{
		"max_results": map[string]interface{}{"max": map[string]interface{}{"field": "result_count"}},
		"clicked":     clicked,
	}

	body := map[string]interface{}{
		"size":             0,
		"track_total_hits": true,
		"query":            rangeQuery(tr),
		"aggs": map[string]interface{}{
			"with_clicks": clicked,
			"clicks": map[string]interface{}{
				"nested": map[string]interface{}{"path": "clicks"},
				"aggs": map[string]interface{}{
					"avg_position": map[string]interface{}{"avg": map[string]interface{}{"field": "clicks.position"}},
				},
			},
			"queries": queries,
		},
	}

	res, err := e.backend.Search(ctx, e.index, body)
	if err != nil {
		return nil, fmt.Errorf("failed to get search effectiveness: %w", err)
	}

	var aggs struct {
		WithClicks struct {
			DocCount int64 `json:"doc_count"`
		} `json:"with_clicks"`
		Clicks struct {
			AvgPosition valueAgg `json:"avg_position"`
		} `json:"clicks"`
		Queries struct {
			Buckets []struct {
				Key        string   `json:"key"`
				DocCount   int64    `json:"doc_count"`
				MaxResults valueAgg `json:"max_results"`
				Clicked    struct {
					DocCount int64 `json:"doc_count"`
				} `json:"clicked"`
			} `json:"buckets"`
		} `json:"queries"`
	}
	if err := res.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("failed to decode search effectiveness: %w", err)
	}

	buckets := make([]QueryBucket, 0, len(aggs.Queries.Buckets))
	for _, b := range aggs.Queries.Buckets {
		buckets = append(buckets, QueryBucket{
			Query:      b.Key,
			Searches:   b.DocCount,
			Clicked:    b.Clicked.DocCount,
			MaxResults: b.MaxResults.float(),
		})
	}

	eff := ComputeEffectiveness(res.Hits.Total.Value, aggs.WithClicks.DocCount, aggs.Clicks.AvgPosition.float(), buckets)
	return &eff, nil
}
