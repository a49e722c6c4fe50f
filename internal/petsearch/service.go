// Package petsearch composes the query, suggestion and analytics engines
// into the operations the HTTP layer exposes.
package petsearch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zfogg/petfinder/internal/analytics"
	"github.com/zfogg/petfinder/internal/cache"
	apperrors "github.com/zfogg/petfinder/internal/errors"
	"github.com/zfogg/petfinder/internal/indexer"
	"github.com/zfogg/petfinder/internal/logger"
	"github.com/zfogg/petfinder/internal/metrics"
	"github.com/zfogg/petfinder/internal/search"
	"github.com/zfogg/petfinder/internal/suggestions"
	"github.com/zfogg/petfinder/internal/telemetry"
	"github.com/zfogg/petfinder/internal/validation"
	"go.uber.org/zap"
)

const (
	rebuildLockTTL      = 10 * time.Minute
	analyticsTimeout    = 5 * time.Second
	defaultSuggestLimit = 10
)

// QueryEngine runs pet queries against the pets index
type QueryEngine interface {
	SearchPets(ctx context.Context, req search.SearchRequest) (*search.SearchResponse, error)
	AdvancedSearch(ctx context.Context, req search.AdvancedSearchRequest) (*search.SearchResponse, error)
	SimilarPets(ctx context.Context, petID string, limit int) (*search.SearchResponse, error)
}

// SchemaManager owns index lifecycle
type SchemaManager interface {
	PetsIndex() string
	AnalyticsIndex() string
	PetsDescriptor() search.IndexDescriptor
	IndexExists(ctx context.Context, name string) (bool, error)
	GetStats(ctx context.Context, name string) (*search.IndexStats, error)
	RebuildIndex(ctx context.Context, d search.IndexDescriptor) error
	CheckIndexVersion(ctx context.Context, name string) (bool, error)
}

// Suggester produces search suggestions
type Suggester interface {
	Prefix(ctx context.Context, text string, limit int) []suggestions.Suggestion
	Category(ctx context.Context, category, text string, limit int) ([]suggestions.Suggestion, error)
	Smart(ctx context.Context, text, userID string, limit int) suggestions.SmartSuggestions
}

// Analytics records and aggregates search events
type Analytics interface {
	Record(ctx context.Context, event *analytics.Event) error
	RecordClick(ctx context.Context, eventID, petID string, position int) error
	GetStats(ctx context.Context, tr analytics.TimeRange) (*analytics.Stats, error)
	GetUserStats(ctx context.Context, userID string, tr analytics.TimeRange) (*analytics.UserStats, error)
	GetTrends(ctx context.Context, period string, tr analytics.TimeRange) ([]analytics.TrendBucket, error)
	GetEffectiveness(ctx context.Context, tr analytics.TimeRange) (*analytics.Effectiveness, error)
	Cleanup(ctx context.Context, daysToKeep int) (int64, error)
}

// Locker serializes index rebuilds across processes
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
}

// Reindexer copies canonical records into the pets index
type Reindexer interface {
	Sync(ctx context.Context) (*indexer.Result, error)
}

// Deps are the collaborators of a Service. Locker and Reindexer are optional.
type Deps struct {
	Query       QueryEngine
	Schema      SchemaManager
	Suggestions Suggester
	Analytics   Analytics
	Locker      Locker
	Reindexer   Reindexer
	Limits      validation.Limits
}

// Service is the search facade used by handlers and tools
type Service struct {
	query     QueryEngine
	schema    SchemaManager
	suggest   Suggester
	analytics Analytics
	locker    Locker
	reindexer Reindexer
	limits    validation.Limits
	stats     *metrics.SearchMetrics

	pending    sync.WaitGroup
	inflight   sync.Map // event ID -> chan struct{} closed once the write settles
	rebuilding sync.Mutex
}

// NewService wires a Service from its collaborators
func NewService(d Deps) *Service {
	limits := d.Limits
	if limits == (validation.Limits{}) {
		limits = validation.DefaultLimits()
	}
	return &Service{
		query:     d.Query,
		schema:    d.Schema,
		suggest:   d.Suggestions,
		analytics: d.Analytics,
		locker:    d.Locker,
		reindexer: d.Reindexer,
		limits:    limits,
		stats:     metrics.GetManager().Search,
	}
}

// SearchResult is a page of pets plus the analytics event it was logged as.
// EventID is empty when the request carried no criteria. The event is
// written after the response; clicks sent to this process wait for that
// write, clicks sent to another replica may see NOT_FOUND until it lands.
type SearchResult struct {
	*search.SearchResponse
	EventID string `json:"eventId,omitempty"`
}

// SearchContext carries caller details recorded with the analytics event
type SearchContext struct {
	UserID    string
	SessionID string
	UserAgent string
	IP        string
}

// SearchPets validates and runs a search, then records it for analytics
// without waiting on the write. Requests with neither text nor filters are
// not recorded.
func (s *Service) SearchPets(ctx context.Context, req search.SearchRequest, sc SearchContext) (*SearchResult, error) {
	if err := s.limits.SearchRequest(&req); err != nil {
		return nil, err
	}

	ctx, span := telemetry.TraceSearchCall(ctx, "search.pets", telemetry.SpanAttrs{
		"query":   req.Query,
		"user_id": sc.UserID,
		"page":    req.Page,
		"limit":   req.Limit,
	})
	defer span.End()

	start := time.Now()
	res, err := s.query.SearchPets(ctx, req)
	elapsed := time.Since(start)
	s.observe(metrics.QueryTypeSearch, res, elapsed, err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span, len(res.Hits))

	out := &SearchResult{SearchResponse: res}
	if !req.HasCriteria() {
		return out, nil
	}

	event := &analytics.Event{
		ID:               uuid.New().String(),
		Query:            req.Query,
		Filters:          analytics.FiltersFromRequest(req),
		UserID:           sc.UserID,
		ResultCount:      int(res.Total),
		SessionID:        sc.SessionID,
		UserAgent:        sc.UserAgent,
		IP:               sc.IP,
		SearchDurationMs: elapsed.Milliseconds(),
	}
	out.EventID = event.ID
	s.recordAsync(ctx, event)
	return out, nil
}

// recordAsync writes the event after the response is ready. Failures are
// logged and counted, never returned.
func (s *Service) recordAsync(ctx context.Context, event *analytics.Event) {
	done := make(chan struct{})
	s.inflight.Store(event.ID, done)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer func() {
			s.inflight.Delete(event.ID)
			close(done)
		}()
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), analyticsTimeout)
		defer cancel()

		if err := s.analytics.Record(writeCtx, event); err != nil {
			metrics.AnalyticsWriteFailuresTotal.WithLabelValues("record").Inc()
			logger.WarnWithFields("Failed to record search analytics", err,
				logger.WithEventID(event.ID), logger.WithQuery(event.Query))
		}
	}()
}

// Wait blocks until in-flight analytics writes finish
func (s *Service) Wait() {
	s.pending.Wait()
}

// AdvancedSearch runs an advanced search. Analytics are not recorded.
func (s *Service) AdvancedSearch(ctx context.Context, req search.AdvancedSearchRequest) (*search.SearchResponse, error) {
	if err := s.limits.AdvancedRequest(&req); err != nil {
		return nil, err
	}

	ctx, span := telemetry.TraceSearchCall(ctx, "search.advanced", telemetry.SpanAttrs{
		"query": req.Query,
		"page":  req.Page,
		"limit": req.Limit,
	})
	defer span.End()

	start := time.Now()
	res, err := s.query.AdvancedSearch(ctx, req)
	s.observe(metrics.QueryTypeAdvanced, res, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span, len(res.Hits))
	return res, nil
}

// SimilarPets finds pets resembling petID
func (s *Service) SimilarPets(ctx context.Context, petID string, limit int) (*search.SearchResponse, error) {
	if petID == "" {
		return nil, apperrors.NewInvalidRequest("id", "pet id is required")
	}
	limit, err := s.limits.SimilarLimit(limit)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.query.SimilarPets(ctx, petID, limit)
	s.observe(metrics.QueryTypeSimilar, res, time.Since(start), err)
	return res, err
}

// GetSearchSuggestions returns merged prefix suggestions. It never fails;
// an empty prefix yields an empty list.
func (s *Service) GetSearchSuggestions(ctx context.Context, text string, limit int) []suggestions.Suggestion {
	start := time.Now()
	out := s.suggest.Prefix(ctx, text, validation.SuggestionLimit(limit, defaultSuggestLimit))
	s.observeSuggest(len(out), time.Since(start))
	return out
}

// GetSmartSuggestions returns the four independent suggestion lists
func (s *Service) GetSmartSuggestions(ctx context.Context, text, userID string, limit int) suggestions.SmartSuggestions {
	start := time.Now()
	out := s.suggest.Smart(ctx, text, userID, validation.SuggestionLimit(limit, defaultSuggestLimit))
	s.observeSuggest(len(out.AutoComplete)+len(out.Popular)+len(out.Related)+len(out.History), time.Since(start))
	return out
}

// CategorySuggestions completes text within one category. An unknown
// category is an invalid request; backend failures degrade to empty.
func (s *Service) CategorySuggestions(ctx context.Context, category, text string, limit int) ([]suggestions.Suggestion, error) {
	if !suggestions.IsCategory(category) {
		return nil, apperrors.NewInvalidRequest("category", fmt.Sprintf("unknown suggestion category %q", category))
	}
	start := time.Now()
	out, err := s.suggest.Category(ctx, category, text, validation.SuggestionLimit(limit, defaultSuggestLimit))
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidRequest) {
			return nil, err
		}
		metrics.SuggestionFallbacksTotal.WithLabelValues(category).Inc()
		logger.WarnWithFields("Category suggestions failed", err, zap.String("category", category))
		out = []suggestions.Suggestion{}
	}
	s.observeSuggest(len(out), time.Since(start))
	return out, nil
}

// RecordSearchClick appends a click to a logged search event
func (s *Service) RecordSearchClick(ctx context.Context, eventID, petID string, position int) error {
	if v, ok := s.inflight.Load(eventID); ok {
		select {
		case <-v.(chan struct{}):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := s.analytics.RecordClick(ctx, eventID, petID, position); err != nil {
		if !errors.Is(err, apperrors.ErrInvalidRequest) && !errors.Is(err, apperrors.ErrDocumentNotFound) {
			metrics.AnalyticsWriteFailuresTotal.WithLabelValues("click").Inc()
		}
		return err
	}
	return nil
}

// GetSearchStats returns aggregate analytics. Backend failures degrade to
// an empty report.
func (s *Service) GetSearchStats(ctx context.Context, tr analytics.TimeRange) *analytics.Stats {
	stats, err := s.analytics.GetStats(ctx, tr)
	if err != nil {
		logger.WarnWithFields("Failed to get search stats", err)
		return &analytics.Stats{
			TopQueries:   []analytics.TermCount{},
			TopTypes:     []analytics.TermCount{},
			TopLocations: []analytics.TermCount{},
			TopBreeds:    []analytics.TermCount{},
			DailyTrend:   []analytics.TrendPoint{},
		}
	}
	return stats
}

// GetUserStats returns one user's search history
func (s *Service) GetUserStats(ctx context.Context, userID string, tr analytics.TimeRange) (*analytics.UserStats, error) {
	stats, err := s.analytics.GetUserStats(ctx, userID, tr)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidRequest) {
			return nil, err
		}
		logger.WarnWithFields("Failed to get user search stats", err, logger.WithUserID(userID))
		return &analytics.UserStats{
			UserID:         userID,
			TopQueries:     []analytics.TermCount{},
			RecentSearches: []analytics.Event{},
		}, nil
	}
	return stats, nil
}

// GetSearchTrends returns bucketed search volume
func (s *Service) GetSearchTrends(ctx context.Context, period string, tr analytics.TimeRange) []analytics.TrendBucket {
	trends, err := s.analytics.GetTrends(ctx, period, tr)
	if err != nil {
		logger.WarnWithFields("Failed to get search trends", err, zap.String("period", period))
		return []analytics.TrendBucket{}
	}
	return trends
}

// GetSearchEffectiveness returns click-through figures
func (s *Service) GetSearchEffectiveness(ctx context.Context, tr analytics.TimeRange) *analytics.Effectiveness {
	eff, err := s.analytics.GetEffectiveness(ctx, tr)
	if err != nil {
		logger.WarnWithFields("Failed to get search effectiveness", err)
		empty := analytics.ComputeEffectiveness(0, 0, 0, nil)
		return &empty
	}
	return eff
}

// CleanupAnalytics deletes events older than daysToKeep days
func (s *Service) CleanupAnalytics(ctx context.Context, daysToKeep int) (int64, error) {
	return s.analytics.Cleanup(ctx, daysToKeep)
}

// RebuildResult reports a completed rebuild
type RebuildResult struct {
	Index    string          `json:"index"`
	Sync     *indexer.Result `json:"sync,omitempty"`
	Duration time.Duration   `json:"duration"`
}

// RebuildIndex drops and recreates the pets index, then reindexes from the
// canonical store. Concurrent rebuilds are rejected with
// ErrRebuildInProgress, within this process and, given a Locker, across
// processes.
func (s *Service) RebuildIndex(ctx context.Context) (*RebuildResult, error) {
	start := time.Now()
	desc := s.schema.PetsDescriptor()

	if !s.rebuilding.TryLock() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRebuildInProgress, desc.Name)
	}
	defer s.rebuilding.Unlock()

	if s.locker != nil {
		lock, err := s.locker.AcquireLock(ctx, "lock:rebuild:"+desc.Name, rebuildLockTTL)
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrRebuildInProgress, desc.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to acquire rebuild lock: %w", err)
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				logger.WarnWithFields("Failed to release rebuild lock", err, logger.WithIndex(desc.Name))
			}
		}()
	}

	logger.Log.Info("Rebuilding search index", logger.WithIndex(desc.Name))
	if err := s.schema.RebuildIndex(ctx, desc); err != nil {
		return nil, fmt.Errorf("failed to rebuild %s: %w", desc.Name, err)
	}

	result := &RebuildResult{Index: desc.Name}
	if s.reindexer != nil {
		sync, err := s.reindexer.Sync(ctx)
		result.Sync = sync
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("index %s rebuilt but reindex failed: %w", desc.Name, err)
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

// Reindex copies every canonical record into the existing pets index
func (s *Service) Reindex(ctx context.Context) (*indexer.Result, error) {
	if s.reindexer == nil {
		return nil, errors.New("reindexing is not configured")
	}
	return s.reindexer.Sync(ctx)
}

func (s *Service) observe(queryType string, res *search.SearchResponse, d time.Duration, err error) {
	m := metrics.QueryMetric{Type: queryType, Duration: d, Error: err != nil}
	if res != nil {
		m.ResultCount = int(res.Total)
	}
	s.stats.RecordQuery(m)
}

func (s *Service) observeSuggest(count int, d time.Duration) {
	s.stats.RecordQuery(metrics.QueryMetric{Type: metrics.QueryTypeSuggest, ResultCount: count, Duration: d})
}
