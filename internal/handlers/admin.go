package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/petfinder/internal/petsearch"
	"github.com/zfogg/petfinder/internal/util"
)

// RebuildIndex drops, recreates and reindexes the pets index
// POST /api/v1/search/admin/rebuild
func (h *Handlers) RebuildIndex(c *gin.Context) {
	res, err := h.search.RebuildIndex(c.Request.Context())
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Reindex copies every canonical pet into the existing index
// POST /api/v1/search/admin/reindex
func (h *Handlers) Reindex(c *gin.Context) {
	res, err := h.search.Reindex(c.Request.Context())
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CleanupAnalytics deletes old analytics events
// POST /api/v1/search/admin/cleanup?days=
func (h *Handlers) CleanupAnalytics(c *gin.Context) {
	days, err := util.ParseIntParam("days", c.Query("days"), h.retentionDays)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}

	deleted, err := h.search.CleanupAnalytics(c.Request.Context(), days)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "daysToKeep": days})
}

// Health reports index presence and query metrics. Unhealthy answers 503.
// GET /api/v1/search/health
func (h *Handlers) Health(c *gin.Context) {
	status := h.search.GetHealthStatus(c.Request.Context())
	code := http.StatusOK
	if status.Status == petsearch.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
