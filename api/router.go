package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/nicedowns-go/api/handlers"
	"github.com/yourusername/nicedowns-go/api/middleware"
	"github.com/yourusername/nicedowns-go/internal/app"
	"github.com/yourusername/nicedowns-go/pkg/logger"
)

// RouterOptions carries the settings the handlers need beyond the pipeline
type RouterOptions struct {
	LogsDir         string
	ProxyClient     *http.Client
	MaxPayloadBytes int64
	// ProxyAllowPrivate lets /api/v1/proxy fetch loopback and private addresses
	ProxyAllowPrivate bool
}

// SetupRouter wires the HTTP API around the orchestrator
func SetupRouter(
	orchestrator *app.Orchestrator,
	catalog handlers.PlatformCatalog,
	logAdapter *logger.LoggerAdapter,
	opts RouterOptions,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.Logger(logAdapter))
	router.Use(middleware.Recovery(logAdapter))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(orchestrator, catalog)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		submissionHandler := handlers.NewSubmissionHandler(orchestrator, catalog, logAdapter.Delivery())
		submissions := v1.Group("/submissions")
		{
			submissions.POST("", submissionHandler.Submit)
			submissions.GET("/current", submissionHandler.Current)
			submissions.DELETE("/current", submissionHandler.Reset)
			submissions.POST("/current/assets/:assetId/deliver", submissionHandler.Deliver)
		}

		v1.GET("/deliveries/in-flight", submissionHandler.InFlight)

		history := v1.Group("/history")
		{
			history.GET("", submissionHandler.History)
			history.GET("/stats", submissionHandler.Stats)
			history.GET("/:id/attempts", submissionHandler.Attempts)
		}

		v1.GET("/platforms", submissionHandler.Platforms)
		v1.GET("/providers/status", submissionHandler.ProviderStatus)

		proxyHandler := handlers.NewProxyHandler(opts.ProxyClient, opts.MaxPayloadBytes, opts.ProxyAllowPrivate, logAdapter.Delivery())
		v1.GET("/proxy", proxyHandler.Serve)

		logHandler := handlers.NewLogHandler(opts.LogsDir)
		wsHandler := handlers.NewLogWebSocketHandler(opts.LogsDir, logAdapter.General())
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/ws", wsHandler.HandleWebSocket)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
