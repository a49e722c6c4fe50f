package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/zfogg/petfinder/internal/errors"
	"github.com/zfogg/petfinder/internal/petsearch"
	"github.com/zfogg/petfinder/internal/search"
	"github.com/zfogg/petfinder/internal/util"
)

// SearchPets runs a structured pet search
// GET /api/v1/search/pets?q=&type=&status=&breed=&location=&size=&gender=&color=
//
//	&page=&limit=&sort_by=&sort_order=&fuzzy=&lat=&lon=&radius_km=
func (h *Handlers) SearchPets(c *gin.Context) {
	req, err := searchRequestFromQuery(c)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}

	res, err := h.search.SearchPets(c.Request.Context(), req, petsearch.SearchContext{
		UserID:    userID(c),
		SessionID: c.GetHeader("X-Session-ID"),
		UserAgent: c.Request.UserAgent(),
		IP:        c.ClientIP(),
	})
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"hits":      res.Hits,
		"total":     res.Total,
		"max_score": res.MaxScore,
		"took":      res.Took,
		"page":      req.Page,
		"eventId":   res.EventID,
	})
}

// AdvancedSearch runs a search with arbitrary filters and aggregations
// POST /api/v1/search/advanced
func (h *Handlers) AdvancedSearch(c *gin.Context) {
	var req search.AdvancedSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid advanced search body: "+err.Error())
		return
	}

	res, err := h.search.AdvancedSearch(c.Request.Context(), req)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// SimilarPets finds pets resembling the given one
// GET /api/v1/search/pets/:id/similar?limit=
func (h *Handlers) SimilarPets(c *gin.Context) {
	limit, err := util.ParseIntParam("limit", c.Query("limit"), 0)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}

	res, err := h.search.SimilarPets(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func searchRequestFromQuery(c *gin.Context) (search.SearchRequest, error) {
	req := search.SearchRequest{
		Query: c.Query("q"),
		Filters: search.PetFilters{
			Type:     c.Query("type"),
			Status:   c.Query("status"),
			Breed:    c.Query("breed"),
			Location: c.Query("location"),
			Size:     c.Query("size"),
			Gender:   c.Query("gender"),
			Color:    c.Query("color"),
		},
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Fuzzy:     util.ParseBool(c.Query("fuzzy")),
	}

	var err error
	if req.Page, err = util.ParseIntParam("page", c.Query("page"), 1); err != nil {
		return req, err
	}
	if req.Limit, err = util.ParseIntParam("limit", c.Query("limit"), 0); err != nil {
		return req, err
	}

	lat, err := util.ParseFloatParam("lat", c.Query("lat"))
	if err != nil {
		return req, err
	}
	lon, err := util.ParseFloatParam("lon", c.Query("lon"))
	if err != nil {
		return req, err
	}
	radius, err := util.ParseFloatParam("radius_km", c.Query("radius_km"))
	if err != nil {
		return req, err
	}

	switch {
	case lat == nil && lon == nil && radius == nil:
	case lat == nil || lon == nil || radius == nil:
		var missing []string
		for _, p := range []struct {
			name string
			v    *float64
		}{{"lat", lat}, {"lon", lon}, {"radius_km", radius}} {
			if p.v == nil {
				missing = append(missing, p.name)
			}
		}
		return req, apperrors.NewInvalidRequest("geo", "lat, lon and radius_km must be given together; missing "+strings.Join(missing, ", "))
	default:
		req.Geo = &search.GeoFilter{Latitude: *lat, Longitude: *lon, RadiusKm: *radius}
	}
	return req, nil
}
