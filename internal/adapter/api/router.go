package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine for the query API.
func NewRouter(reader SnapshotReader, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	h := NewRadarHandler(reader, logger)
	v1 := r.Group("/api/v1/radar")
	v1.GET("/latest", h.Latest)
	v1.GET("/bounds", h.Bounds)
	v1.GET("/snapshot", h.Snapshot)

	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("api request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
