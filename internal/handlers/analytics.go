package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/petfinder/internal/analytics"
	"github.com/zfogg/petfinder/internal/util"
)

// RecordClickRequest is the body of a click report
type RecordClickRequest struct {
	PetID    string `json:"petId" binding:"required"`
	Position *int   `json:"position" binding:"required"`
}

// RecordClick appends a click to a search event
// POST /api/v1/search/events/:id/clicks
func (h *Handlers) RecordClick(c *gin.Context) {
	var req RecordClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "petId and position are required")
		return
	}

	if err := h.search.RecordSearchClick(c.Request.Context(), c.Param("id"), req.PetID, *req.Position); err != nil {
		util.RespondSearchError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recorded": true})
}

// GetStats returns aggregate search analytics
// GET /api/v1/search/analytics/stats?from=&to=
func (h *Handlers) GetStats(c *gin.Context) {
	tr, ok := timeRange(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.search.GetSearchStats(c.Request.Context(), tr))
}

// GetUserStats returns one user's search history
// GET /api/v1/search/analytics/users/:id?from=&to=
func (h *Handlers) GetUserStats(c *gin.Context) {
	tr, ok := timeRange(c)
	if !ok {
		return
	}
	stats, err := h.search.GetUserStats(c.Request.Context(), c.Param("id"), tr)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetTrends returns bucketed search volume
// GET /api/v1/search/analytics/trends?period=day|week|month&from=&to=
func (h *Handlers) GetTrends(c *gin.Context) {
	tr, ok := timeRange(c)
	if !ok {
		return
	}
	period := c.DefaultQuery("period", analytics.PeriodDay)
	trends := h.search.GetSearchTrends(c.Request.Context(), period, tr)
	c.JSON(http.StatusOK, gin.H{"period": period, "trends": trends})
}

// GetEffectiveness returns click-through figures
// GET /api/v1/search/analytics/effectiveness?from=&to=
func (h *Handlers) GetEffectiveness(c *gin.Context) {
	tr, ok := timeRange(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.search.GetSearchEffectiveness(c.Request.Context(), tr))
}

// timeRange parses from/to and writes the error response on failure
func timeRange(c *gin.Context) (analytics.TimeRange, bool) {
	from, err := util.ParseTimeParam("from", c.Query("from"))
	if err != nil {
		util.RespondSearchError(c, err)
		return analytics.TimeRange{}, false
	}
	to, err := util.ParseTimeParam("to", c.Query("to"))
	if err != nil {
		util.RespondSearchError(c, err)
		return analytics.TimeRange{}, false
	}
	return analytics.TimeRange{From: from, To: to}, true
}
