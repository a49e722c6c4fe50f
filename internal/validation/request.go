package validation

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/zfogg/petfinder/internal/errors"
	"github.com/zfogg/petfinder/internal/search"
)

const (
	DefaultMaxLimit        = 100
	DefaultMaxResultWindow = 10000
	DefaultMaxRadiusKm     = 500
	MaxSuggestionLimit     = 50
)

// Limits bounds what a caller may ask of the query engine
type Limits struct {
	DefaultLimit    int
	MaxLimit        int
	MaxResultWindow int
	MaxRadiusKm     float64
}

// DefaultLimits returns the stock request bounds
func DefaultLimits() Limits {
	return Limits{
		DefaultLimit:    search.DefaultLimit,
		MaxLimit:        DefaultMaxLimit,
		MaxResultWindow: DefaultMaxResultWindow,
		MaxRadiusKm:     DefaultMaxRadiusKm,
	}
}

// SearchRequest fills defaults into req and rejects out-of-bounds values.
// A limit above MaxLimit is clamped rather than rejected.
func (l Limits) SearchRequest(req *search.SearchRequest) error {
	page, limit, err := l.page(req.Page, req.Limit)
	if err != nil {
		return err
	}
	req.Page, req.Limit = page, limit

	req.Query = strings.TrimSpace(req.Query)
	if req.SortBy == "" {
		req.SortBy = search.SortCreatedAt
	}
	if !search.IsSortKey(req.SortBy) {
		return apperrors.NewInvalidRequest("sort_by", fmt.Sprintf("unknown sort key %q", req.SortBy))
	}
	if req.SortOrder, err = sortOrder(req.SortOrder); err != nil {
		return err
	}
	return l.geo(req.Geo)
}

// AdvancedRequest applies the same bounds to an advanced search
func (l Limits) AdvancedRequest(req *search.AdvancedSearchRequest) error {
	page, limit, err := l.page(req.Page, req.Limit)
	if err != nil {
		return err
	}
	req.Page, req.Limit = page, limit

	if req.SortBy != "" && !search.IsSortKey(req.SortBy) {
		return apperrors.NewInvalidRequest("sort_by", fmt.Sprintf("unknown sort key %q", req.SortBy))
	}
	if req.SortOrder, err = sortOrder(req.SortOrder); err != nil {
		return err
	}
	if dr := req.DateRange; dr != nil {
		if dr.Field == "" {
			return apperrors.NewInvalidRequest("date_range.field", "field is required")
		}
		if dr.From != nil && dr.To != nil && dr.From.After(*dr.To) {
			return apperrors.NewInvalidRequest("date_range", "from must not be after to")
		}
	}
	return l.geo(req.Geo)
}

// SimilarLimit bounds the result count of a similar-pets lookup
func (l Limits) SimilarLimit(limit int) (int, error) {
	switch {
	case limit == 0:
		return l.defaultLimit(), nil
	case limit < 0:
		return 0, apperrors.NewInvalidRequest("limit", "must be positive")
	case limit > l.MaxLimit:
		return l.MaxLimit, nil
	}
	return limit, nil
}

// SuggestionLimit clamps a suggestion budget into [1, MaxSuggestionLimit]
func SuggestionLimit(limit, fallback int) int {
	if limit < 1 {
		limit = fallback
	}
	if limit > MaxSuggestionLimit {
		limit = MaxSuggestionLimit
	}
	return limit
}

func (l Limits) defaultLimit() int {
	if l.DefaultLimit > 0 {
		return l.DefaultLimit
	}
	return search.DefaultLimit
}

func (l Limits) page(page, limit int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return 0, 0, apperrors.NewInvalidRequest("page", "must be at least 1")
	}

	switch {
	case limit == 0:
		limit = l.defaultLimit()
	case limit < 0:
		return 0, 0, apperrors.NewInvalidRequest("limit", "must be positive")
	case l.MaxLimit > 0 && limit > l.MaxLimit:
		limit = l.MaxLimit
	}

	// page > window/limit avoids overflowing page*limit
	if l.MaxResultWindow > 0 && page > l.MaxResultWindow/limit {
		return 0, 0, apperrors.NewInvalidRequest("page",
			fmt.Sprintf("result window page*limit must not exceed %d", l.MaxResultWindow))
	}
	return page, limit, nil
}

func (l Limits) geo(g *search.GeoFilter) error {
	if g == nil {
		return nil
	}
	if !finite(g.Latitude) || g.Latitude < -90 || g.Latitude > 90 {
		return apperrors.NewInvalidRequest("lat", "must be between -90 and 90")
	}
	if !finite(g.Longitude) || g.Longitude < -180 || g.Longitude > 180 {
		return apperrors.NewInvalidRequest("lon", "must be between -180 and 180")
	}
	if !finite(g.RadiusKm) || g.RadiusKm <= 0 {
		return apperrors.NewInvalidRequest("radius_km", "must be positive")
	}
	if l.MaxRadiusKm > 0 && g.RadiusKm > l.MaxRadiusKm {
		return apperrors.NewInvalidRequest("radius_km", fmt.Sprintf("must not exceed %g", l.MaxRadiusKm))
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func sortOrder(order string) (string, error) {
	switch strings.ToLower(order) {
	case "":
		return search.SortDesc, nil
	case search.SortAsc:
		return search.SortAsc, nil
	case search.SortDesc:
		return search.SortDesc, nil
	}
	return "", apperrors.NewInvalidRequest("sort_order", "must be asc or desc")
}
