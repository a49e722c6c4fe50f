package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/petfinder/internal/util"
)

// GetSuggestions returns merged autocomplete suggestions
// GET /api/v1/search/suggestions?q=&limit=
func (h *Handlers) GetSuggestions(c *gin.Context) {
	limit, err := util.ParseIntParam("limit", c.Query("limit"), 0)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	out := h.search.GetSearchSuggestions(c.Request.Context(), c.Query("q"), limit)
	c.JSON(http.StatusOK, gin.H{"suggestions": out})
}

// GetSmartSuggestions returns autocomplete, popular, related and history lists
// GET /api/v1/search/suggestions/smart?q=&limit=
func (h *Handlers) GetSmartSuggestions(c *gin.Context) {
	limit, err := util.ParseIntParam("limit", c.Query("limit"), 0)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	out := h.search.GetSmartSuggestions(c.Request.Context(), c.Query("q"), userID(c), limit)
	c.JSON(http.StatusOK, out)
}

// GetCategorySuggestions completes text within one category
// GET /api/v1/search/suggestions/:category?q=&limit=
func (h *Handlers) GetCategorySuggestions(c *gin.Context) {
	limit, err := util.ParseIntParam("limit", c.Query("limit"), 0)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	out, err := h.search.CategorySuggestions(c.Request.Context(), c.Param("category"), c.Query("q"), limit)
	if err != nil {
		util.RespondSearchError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": c.Param("category"), "suggestions": out})
}
