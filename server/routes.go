package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes registers every endpoint on router.
//
// Session endpoints:
//
//	GET  /api/session                    - the session result as JSON output
//	GET  /api/tree?root=&depth=          - forest (or a subtree) to a depth
//	GET  /api/nodes/:id                  - one node with detail text and nogood links
//	GET  /api/aggregates?key=&second=&leftOnly=
//	GET  /api/timeline?percent=
//	GET  /api/grids/:group?restart=
//	POST /api/select                     - forward a selection to the host
//
// Other endpoints:
//
//	GET  /charts   - go-echarts overview page
//	GET  /metrics  - Prometheus metrics
//	GET  /health   - health check
func RegisterRoutes(router gin.IRouter, s *Server) {
	api := router.Group("/api")
	{
		api.GET("/session", s.HandleSession)
		api.GET("/tree", s.HandleTree)
		api.GET("/nodes/:id", s.HandleNode)
		api.GET("/aggregates", s.HandleAggregates)
		api.GET("/timeline", s.HandleTimeline)
		api.GET("/grids/:group", s.HandleGrid)
		api.POST("/select", s.HandleSelect)
	}

	router.GET("/charts", s.HandleCharts)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", s.HandleHealth)
}
