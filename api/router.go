package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/vidgrab-go/api/handlers"
	"github.com/yourusername/vidgrab-go/api/middleware"
	"github.com/yourusername/vidgrab-go/internal/app"
	"github.com/yourusername/vidgrab-go/internal/plugin"
	"github.com/yourusername/vidgrab-go/internal/pool"
	"github.com/yourusername/vidgrab-go/internal/portable"
	"github.com/yourusername/vidgrab-go/pkg/logger"
)

// Deps are the services the HTTP API is built on
type Deps struct {
	QueueMgr    *app.QueueManager
	DownloadMgr *app.DownloadManager
	Plugins     *plugin.Manager
	Pool        *pool.Manager
	Paths       *portable.Manager
	Hub         *app.ProgressHub
	Logger      *zap.Logger
	MultiLogger *logger.MultiLogger

	// FilenameTemplate is the active template reported by /system/templates
	FilenameTemplate string
	// Debug keeps gin in debug mode
	Debug bool
}

// SetupRouter sets up the HTTP router
func SetupRouter(deps Deps) *gin.Engine {
	if deps.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log, deps.MultiLogger))
	router.Use(middleware.Recovery(log, deps.MultiLogger))
	router.Use(middleware.CORS())

	healthHandler := handlers.NewHealthHandler(deps.QueueMgr, deps.Pool)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(deps.QueueMgr, deps.DownloadMgr, log)
		downloads := v1.Group("/downloads")
		{
			downloads.POST("", downloadHandler.AddDownload)
			downloads.GET("", downloadHandler.ListDownloads)
			downloads.GET("/stats", downloadHandler.GetStats)
			downloads.GET("/:id", downloadHandler.GetDownload)
			downloads.POST("/:id/cancel", downloadHandler.CancelDownload)
			downloads.POST("/:id/retry", downloadHandler.RetryDownload)
			downloads.DELETE("/:id", downloadHandler.DeleteDownload)
		}

		extractorHandler := handlers.NewExtractorHandler(deps.Plugins, log)
		extractors := v1.Group("/extractors")
		{
			extractors.GET("", extractorHandler.ListExtractors)
			extractors.POST("/probe", extractorHandler.Probe)
			extractors.POST("/:name/enable", extractorHandler.EnableExtractor)
			extractors.POST("/:name/disable", extractorHandler.DisableExtractor)
		}

		poolHandler := handlers.NewPoolHandler(deps.Pool)
		pools := v1.Group("/pool")
		{
			pools.GET("/stats", poolHandler.GetStats)
			pools.GET("/stats/:host", poolHandler.GetHostStats)
			pools.POST("/reset", poolHandler.ResetStats)
		}

		systemHandler := handlers.NewSystemHandler(deps.Paths, deps.FilenameTemplate)
		system := v1.Group("/system")
		{
			system.GET("/paths", systemHandler.GetPaths)
			system.GET("/templates", systemHandler.GetTemplates)
		}

		if deps.MultiLogger != nil {
			logsDir := deps.MultiLogger.GetLogsDir()
			logHandler := handlers.NewLogHandler(logsDir)
			logs := v1.Group("/logs")
			{
				logs.GET("/categories", logHandler.GetCategories)
				logs.GET("/:category", logHandler.GetLogs)
				logs.GET("/:category/dates", logHandler.GetDates)
				logs.GET("/:category/search", logHandler.SearchLogs)
				logs.GET("/:category/export", logHandler.ExportLogs)
			}
			v1.GET("/ws/logs", handlers.NewLogWebSocketHandler(logsDir, log).HandleWebSocket)
		}

		v1.GET("/ws/progress", handlers.NewProgressWebSocketHandler(deps.Hub, log).HandleWebSocket)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
