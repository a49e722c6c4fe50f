package suggestions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/zfogg/petfinder/internal/errors"
	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/metrics"
	"github.com/zfogg/petfinder/internal/search"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Suggestion sources
const (
	SourceName     = "name"
	SourceBreed    = "breed"
	SourceLocation = "location"
	SourceType     = "type"
	SourcePopular  = "popular"
	SourceRelated  = "related"
	SourceHistory  = "history"
)

const suggesterName = "pet-suggest"

// categoryFields maps a suggestion category to its completion field
var categoryFields = map[string]string{
	SourceName:     "name.suggest",
	SourceBreed:    "breed.suggest",
	SourceLocation: "last_seen_location.suggest",
	SourceType:     "type.suggest",
}

// prefixSources are queried by Prefix, in merge order
var prefixSources = []string{SourceName, SourceBreed, SourceLocation}

// Suggestion is one ranked completion. Suggestions are never persisted.
type Suggestion struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// SmartSuggestions keeps each source separate so callers can render
// them in their own sections. History is nil when no user was given.
type SmartSuggestions struct {
	AutoComplete []Suggestion `json:"autoComplete"`
	Popular      []Suggestion `json:"popular"`
	Related      []Suggestion `json:"related"`
	History      []Suggestion `json:"history,omitempty"`
}

// Searcher runs raw queries against an index
type Searcher interface {
	Search(ctx context.Context, index string, body interface{}) (*search.Response, error)
}

// Engine computes suggestions from the pets and analytics indices
type Engine struct {
	backend        Searcher
	petsIndex      string
	analyticsIndex string
	timeout        time.Duration
}

// NewEngine creates a suggestion engine. timeout bounds each concurrent
// sub-lookup; zero disables the bound.
func NewEngine(backend Searcher, petsIndex, analyticsIndex string, timeout time.Duration) *Engine {
	return &Engine{
		backend:        backend,
		petsIndex:      petsIndex,
		analyticsIndex: analyticsIndex,
		timeout:        timeout,
	}
}

// IsCategory reports whether category has a completion field
func IsCategory(category string) bool {
	_, ok := categoryFields[category]
	return ok
}

// Prefix merges completions from name, breed and location. A failing field
// contributes nothing; the merged list is de-duplicated by text.
func (e *Engine) Prefix(ctx context.Context, text string, limit int) []Suggestion {
	text = strings.TrimSpace(text)
	if text == "" || limit < 1 {
		return []Suggestion{}
	}
	metrics.SearchQueriesTotal.WithLabelValues(metrics.QueryTypeSuggest).Inc()

	results := make([][]Suggestion, len(prefixSources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range prefixSources {
		g.Go(func() error {
			bctx, cancel := e.branchContext(gctx)
			defer cancel()

			list, err := e.complete(bctx, source, text, limit)
			if err != nil {
				e.degrade(source, text, err)
				return nil
			}
			results[i] = list
			return nil
		})
	}
	_ = g.Wait()

	return MergeSuggestions(limit, results...)
}

// Category returns completions from a single category's field
func (e *Engine) Category(ctx context.Context, category, text string, limit int) ([]Suggestion, error) {
	if !IsCategory(category) {
		return nil, apperrors.NewInvalidRequest("category", fmt.Sprintf("unknown suggestion category %q", category))
	}
	text = strings.TrimSpace(text)
	if text == "" || limit < 1 {
		return []Suggestion{}, nil
	}
	return e.complete(ctx, category, text, limit)
}

// Popular returns the most frequent past queries, optionally only those
// starting with prefix or those that used the given filter category.
func (e *Engine) Popular(ctx context.Context, prefix, category string, limit int) ([]Suggestion, error) {
	if limit < 1 {
		return []Suggestion{}, nil
	}

	filters := []interface{}{}
	if p := strings.TrimSpace(prefix); p != "" {
		filters = append(filters, map[string]interface{}{
			"prefix": map[string]interface{}{
				"query.keyword": map[string]interface{}{"value": p, "case_insensitive": true},
			},
		})
	}
	if category != "" {
		filters = append(filters, map[string]interface{}{
			"exists": map[string]interface{}{"field": "filters." + category},
		})
	}

	body := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter":   filters,
				"must_not": emptyQueryClause(),
			},
		},
		"aggs": map[string]interface{}{
			"queries": map[string]interface{}{
				"terms": map[string]interface{}{"field": "query.keyword", "size": limit},
			},
		},
	}
	return e.termSuggestions(ctx, body, SourcePopular, false)
}

// Related finds past queries textually close to text, excluding text itself
func (e *Engine) Related(ctx context.Context, text string, limit int) ([]Suggestion, error) {
	text = strings.TrimSpace(text)
	if text == "" || limit < 1 {
		return []Suggestion{}, nil
	}

	body := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"more_like_this": map[string]interface{}{
							"fields":        []string{"query"},
							"like":          text,
							"min_term_freq": 1,
							"min_doc_freq":  1,
						},
					},
				},
				"must_not": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"query.keyword": text}},
					map[string]interface{}{"term": map[string]interface{}{"query.keyword": ""}},
				},
			},
		},
		"aggs": map[string]interface{}{
			"queries": map[string]interface{}{
				"terms": map[string]interface{}{"field": "query.keyword", "size": limit},
			},
		},
	}
	return e.termSuggestions(ctx, body, SourceRelated, false)
}

// History returns a user's distinct past queries, most recent first
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]Suggestion, error) {
	if userID == "" || limit < 1 {
		return []Suggestion{}, nil
	}

	body := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter":   []interface{}{map[string]interface{}{"term": map[string]interface{}{"user_id": userID}}},
				"must_not": emptyQueryClause(),
			},
		},
		"aggs": map[string]interface{}{
			"queries": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": "query.keyword",
					"size":  limit,
					"order": map[string]interface{}{"last_searched": "desc"},
				},
				"aggs": map[string]interface{}{
					"last_searched": map[string]interface{}{"max": map[string]interface{}{"field": "timestamp"}},
				},
			},
		},
	}
	return e.termSuggestions(ctx, body, SourceHistory, true)
}

// Smart fans out to every source concurrently. Each branch has its own
// timeout and resolves to an empty list on failure.
func (e *Engine) Smart(ctx context.Context, text, userID string, limit int) SmartSuggestions {
	if limit < 1 {
		limit = 1
	}
	out := SmartSuggestions{
		AutoComplete: []Suggestion{},
		Popular:      []Suggestion{},
		Related:      []Suggestion{},
	}
	if userID != "" {
		out.History = []Suggestion{}
	}

	g, gctx := errgroup.WithContext(ctx)
	run := func(source string, dst *[]Suggestion, fn func(context.Context) ([]Suggestion, error)) {
		g.Go(func() error {
			bctx, cancel := e.branchContext(gctx)
			defer cancel()

			list, err := fn(bctx)
			if err != nil {
				e.degrade(source, text, err)
				return nil
			}
			*dst = list
			return nil
		})
	}

	run("prefix", &out.AutoComplete, func(ctx context.Context) ([]Suggestion, error) {
		return e.Prefix(ctx, text, budget(limit, 2)), nil
	})
	run(SourcePopular, &out.Popular, func(ctx context.Context) ([]Suggestion, error) {
		return e.Popular(ctx, text, "", budget(limit, 3))
	})
	run(SourceRelated, &out.Related, func(ctx context.Context) ([]Suggestion, error) {
		return e.Related(ctx, text, budget(limit, 3))
	})
	if userID != "" {
		run(SourceHistory, &out.History, func(ctx context.Context) ([]Suggestion, error) {
			return e.History(ctx, userID, budget(limit, 4))
		})
	}
	_ = g.Wait()

	return out
}

// MergeSuggestions concatenates lists in order, keeps the first occurrence
// of each text, sorts by score descending and truncates to limit.
func MergeSuggestions(limit int, lists ...[]Suggestion) []Suggestion {
	seen := make(map[string]struct{})
	merged := []Suggestion{}
	for _, list := range lists {
		for _, s := range list {
			if _, ok := seen[s.Text]; ok {
				continue
			}
			seen[s.Text] = struct{}{}
			merged = append(merged, s)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func budget(limit, divisor int) int {
	if n := limit / divisor; n > 1 {
		return n
	}
	return 1
}

func (e *Engine) branchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Engine) degrade(source, text string, err error) {
	metrics.SuggestionFallbacksTotal.WithLabelValues(source).Inc()
	logger.WarnWithFields("Suggestion lookup failed, returning empty list", err,
		zap.String("source", source),
		logger.WithQuery(text),
	)
}

func (e *Engine) complete(ctx context.Context, source, text string, limit int) ([]Suggestion, error) {
	body := map[string]interface{}{
		"_source": false,
		"suggest": map[string]interface{}{
			suggesterName: map[string]interface{}{
				"prefix": text,
				"completion": map[string]interface{}{
					"field":           categoryFields[source],
					"size":            limit,
					"skip_duplicates": true,
				},
			},
		},
	}

	res, err := e.backend.Search(ctx, e.petsIndex, body)
	if err != nil {
		return nil, fmt.Errorf("%s completion failed: %w", source, err)
	}

	options := res.SuggestOptions(suggesterName)
	out := make([]Suggestion, 0, len(options))
	for _, opt := range options {
		out = append(out, Suggestion{Text: opt.Text, Score: opt.Score, Source: source})
	}
	return out, nil
}

type termsAggregation struct {
	Queries struct {
		Buckets []struct {
			Key          string `json:"key"`
			DocCount     int64  `json:"doc_count"`
			LastSearched struct {
				Value *float64 `json:"value"`
			} `json:"last_searched"`
		} `json:"buckets"`
	} `json:"queries"`
}

// termSuggestions runs an aggregation over past queries. When byRecency is
// set the score is the last-searched epoch millis, otherwise the frequency.
func (e *Engine) termSuggestions(ctx context.Context, body map[string]interface{}, source string, byRecency bool) ([]Suggestion, error) {
	res, err := e.backend.Search(ctx, e.analyticsIndex, body)
	if err != nil {
		return nil, fmt.Errorf("%s suggestions failed: %w", source, err)
	}

	var aggs termsAggregation
	if err := res.DecodeAggregations(&aggs); err != nil {
		return nil, fmt.Errorf("failed to decode %s aggregation: %w", source, err)
	}

	out := make([]Suggestion, 0, len(aggs.Queries.Buckets))
	for _, b := range aggs.Queries.Buckets {
		if b.Key == "" {
			continue
		}
		score := float64(b.DocCount)
		if byRecency && b.LastSearched.Value != nil {
			score = *b.LastSearched.Value
		}
		out = append(out, Suggestion{Text: b.Key, Score: score, Source: source})
	}
	return out, nil
}

func emptyQueryClause() []interface{} {
	return []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"query.keyword": ""}},
	}
}
