package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the API under /api/v1
func RegisterRoutes(r gin.IRouter, query *QueryHandler, admin *AdminHandler) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/query", query.Query)
		v1.POST("/query/stream", query.QueryStream)
		v1.GET("/parse", query.Parse)

		v1.GET("/cache/stats", admin.CacheStats)
		v1.DELETE("/cache", admin.ClearCache)
		v1.GET("/usage", admin.Usage)
	}
}
