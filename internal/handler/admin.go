package handler

import (
	"net/http"

	"marketinsights/internal/cache"
	"marketinsights/internal/model"

	"github.com/gin-gonic/gin"
)

// UsageReporter reports generation provider usage
type UsageReporter interface {
	RateLimitStatus() model.RateLimitStatus
}

// DataCache is the market data layer's memo table
type DataCache interface {
	CacheStats() cache.Stats
	ClearCache()
}

// AdminHandler handles cache and usage HTTP requests
type AdminHandler struct {
	router QueryRouter
	data   DataCache
	usage  UsageReporter
}

// NewAdminHandler creates a new admin handler. data and usage may be nil.
func NewAdminHandler(router QueryRouter, data DataCache, usage UsageReporter) *AdminHandler {
	return &AdminHandler{
		router: router,
		data:   data,
		usage:  usage,
	}
}

// CacheStats handles GET /api/v1/cache/stats
func (h *AdminHandler) CacheStats(c *gin.Context) {
	response := gin.H{"router": h.router.CacheStats()}
	if h.data != nil {
		response["data"] = h.data.CacheStats()
	}

	c.JSON(http.StatusOK, response)
}

// ClearCache handles DELETE /api/v1/cache
func (h *AdminHandler) ClearCache(c *gin.Context) {
	h.router.ClearCache()
	if h.data != nil {
		h.data.ClearCache()
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Caches cleared"})
}

// Usage handles GET /api/v1/usage
func (h *AdminHandler) Usage(c *gin.Context) {
	if h.usage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Generation provider is not configured"})
		return
	}

	c.JSON(http.StatusOK, h.usage.RateLimitStatus())
}
