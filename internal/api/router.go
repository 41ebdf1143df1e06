package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/timmy/promptmart/internal/api/handler"
	"github.com/timmy/promptmart/internal/api/middleware"
	"github.com/timmy/promptmart/internal/config"
	"github.com/timmy/promptmart/internal/logger"
	"github.com/timmy/promptmart/internal/metrics"
	"github.com/timmy/promptmart/internal/service"
)

// Services are the collaborators behind the routes. Only Search is required.
type Services struct {
	Search       *service.SearchService
	Categories   handler.CategoryLister
	Catalog      handler.CatalogAdmin
	Importer     *service.ImportService
	Sources      handler.SourceResolver
	HealthChecks map[string]handler.HealthCheck
}

// RouterConfig holds the HTTP-level settings.
type RouterConfig struct {
	Mode        string
	AdminToken  string
	CORS        config.CORSConfig
	Logger      *logger.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer // nil disables the metrics endpoint
	MetricsPath string
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc Services, cfg RouterConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(middleware.LoggerMiddleware(cfg.Logger))
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	healthHandler := handler.NewHealthHandler(svc.HealthChecks)
	promptHandler := handler.NewPromptHandler(svc.Search, svc.Categories)
	adminHandler := handler.NewAdminHandler(svc.Search, svc.Catalog, svc.Importer, svc.Sources)

	r.GET("/health", healthHandler.Health)

	if cfg.Gatherer != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		// Catalog
		v1.GET("/prompts", promptHandler.ListPrompts)
		v1.GET("/prompts/presets/:name", promptHandler.Preset)
		v1.GET("/prompts/:id", promptHandler.GetPrompt)
		v1.POST("/prompts/:id/views", promptHandler.TrackView)
		v1.POST("/prompts/:id/downloads", promptHandler.TrackDownload)

		// Search
		v1.POST("/search", promptHandler.SearchPrompts)

		// Categories
		v1.GET("/categories", promptHandler.GetCategories)

		admin := v1.Group("/admin", middleware.AdminAuth(cfg.AdminToken))
		{
			admin.GET("/prompts", adminHandler.ListPrompts)
			admin.POST("/prompts/:id/approve", adminHandler.Approve)
			admin.POST("/prompts/:id/unpublish", adminHandler.Unpublish)
			admin.DELETE("/prompts/:id", adminHandler.DeletePrompt)
			admin.POST("/import", adminHandler.TriggerImport)
			admin.GET("/import/status", adminHandler.GetImportStatus)
		}
	}

	return r
}
