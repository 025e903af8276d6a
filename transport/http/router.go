package http

import (
	"github.com/gin-gonic/gin"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/finvoke/finvoke"

	mcpE "github.com/finvoke/finvoke/mcp"
)

func AddRouters(r *gin.Engine, endpoints finvoke.EndpointSet) {
	r.GET("/health", HealthHandler())

	// RESTful API routes
	api := r.Group("/api")
	{
		api.POST("/tools/dispatch", DispatchHandler(endpoints.Dispatch))
		api.GET("/tools", ListToolsHandler(endpoints.ListTools))
		api.POST("/knowledge/ingest", IngestHandler(endpoints.Ingest))
		api.GET("/knowledge/stats", StatsHandler(endpoints.Stats))
		api.DELETE("/conversations/:conversation_id/budget", ResetBudgetHandler(endpoints.ResetBudget))
	}
}

func AddStreamableRouters(r *gin.Engine, endpoints map[mcp.MCPMethod]mcpE.MCPEndpoint) {
	mcp := r.Group("/mcp")
	{
		mcp.POST("/", MCPStreamableHandler(endpoints))
	}
}
