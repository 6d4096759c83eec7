package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-accident-alerts/internal/ingestion"
)

// ReporterHeader carries the reporter reference set by an upstream auth proxy.
const ReporterHeader = "X-Reporter-Ref"

func ReporterMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ref := strings.TrimSpace(c.GetHeader(ReporterHeader)); ref != "" {
			c.Request = c.Request.WithContext(ingestion.WithReporter(c.Request.Context(), ref))
		}
		c.Next()
	}
}
