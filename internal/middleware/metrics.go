package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/service"
)

// UnmatchedRoute is the path label of requests that match no route.
const UnmatchedRoute = "unmatched"

// DefaultMetricsSkipPaths are the operational endpoints left out of request
// metrics.
var DefaultMetricsSkipPaths = []string{"/metrics", "/health", "/ready"}

// Metrics records request duration and status per route template. Requests to
// skipPaths are served but not observed. Responses carrying the X-Cache
// header also count towards the per-route cache outcome.
func Metrics(metricsSvc *service.MetricsService, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, path := range skipPaths {
		skip[path] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, ok := skip[route]; ok {
			c.Next()
			return
		}
		if route == "" {
			route = UnmatchedRoute
		}

		start := time.Now()
		c.Next()
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))

		switch c.Writer.Header().Get(CacheHeader) {
		case "HIT":
			metricsSvc.RecordResponseCache(route, true)
		case "MISS":
			metricsSvc.RecordResponseCache(route, false)
		}
	}
}
