package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/petfinder/internal/analytics"
	"github.com/zfogg/petfinder/internal/indexer"
	"github.com/zfogg/petfinder/internal/petsearch"
	"github.com/zfogg/petfinder/internal/search"
	"github.com/zfogg/petfinder/internal/suggestions"
)

// SearchService is the search facade the handlers call
type SearchService interface {
	SearchPets(ctx context.Context, req search.SearchRequest, sc petsearch.SearchContext) (*petsearch.SearchResult, error)
	AdvancedSearch(ctx context.Context, req search.AdvancedSearchRequest) (*search.SearchResponse, error)
	SimilarPets(ctx context.Context, petID string, limit int) (*search.SearchResponse, error)

	GetSearchSuggestions(ctx context.Context, text string, limit int) []suggestions.Suggestion
	GetSmartSuggestions(ctx context.Context, text, userID string, limit int) suggestions.SmartSuggestions
	CategorySuggestions(ctx context.Context, category, text string, limit int) ([]suggestions.Suggestion, error)

	RecordSearchClick(ctx context.Context, eventID, petID string, position int) error
	GetSearchStats(ctx context.Context, tr analytics.TimeRange) *analytics.Stats
	GetUserStats(ctx context.Context, userID string, tr analytics.TimeRange) (*analytics.UserStats, error)
	GetSearchTrends(ctx context.Context, period string, tr analytics.TimeRange) []analytics.TrendBucket
	GetSearchEffectiveness(ctx context.Context, tr analytics.TimeRange) *analytics.Effectiveness
	CleanupAnalytics(ctx context.Context, daysToKeep int) (int64, error)

	RebuildIndex(ctx context.Context) (*petsearch.RebuildResult, error)
	Reindex(ctx context.Context) (*indexer.Result, error)
	GetHealthStatus(ctx context.Context) *petsearch.HealthStatus
}

// Handlers contains the HTTP handlers for the search API
type Handlers struct {
	search        SearchService
	retentionDays int
}

// NewHandlers creates a new handlers instance. retentionDays is the
// cleanup window used when a cleanup request names none.
func NewHandlers(svc SearchService, retentionDays int) *Handlers {
	return &Handlers{search: svc, retentionDays: retentionDays}
}

// RegisterRoutes mounts the search API under rg
func (h *Handlers) RegisterRoutes(rg *gin.RouterGroup) {
	s := rg.Group("/search")
	{
		s.GET("/pets", h.SearchPets)
		s.POST("/advanced", h.AdvancedSearch)
		s.GET("/pets/:id/similar", h.SimilarPets)

		s.GET("/suggestions", h.GetSuggestions)
		s.GET("/suggestions/smart", h.GetSmartSuggestions)
		s.GET("/suggestions/:category", h.GetCategorySuggestions)

		s.POST("/events/:id/clicks", h.RecordClick)

		s.GET("/analytics/stats", h.GetStats)
		s.GET("/analytics/users/:id", h.GetUserStats)
		s.GET("/analytics/trends", h.GetTrends)
		s.GET("/analytics/effectiveness", h.GetEffectiveness)

		s.POST("/admin/rebuild", h.RebuildIndex)
		s.POST("/admin/reindex", h.Reindex)
		s.POST("/admin/cleanup", h.CleanupAnalytics)

		s.GET("/health", h.Health)
	}
}

// userID identifies the caller for analytics. Authentication is handled
// upstream; the gateway forwards the user in X-User-ID.
func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return c.Query("user_id")
}
