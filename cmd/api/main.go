package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/timmy/promptmart/internal/api"
	"github.com/timmy/promptmart/internal/api/handler"
	"github.com/timmy/promptmart/internal/app"
	"github.com/timmy/promptmart/internal/config"
	"github.com/timmy/promptmart/internal/logger"
)

func main() {
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, appLogger, app.Options{Cache: true, Tracing: true})
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}

	services := api.Services{
		Search:       a.Search,
		HealthChecks: map[string]handler.HealthCheck{},
	}
	if a.Repo != nil {
		services.Categories = a.Repo
		services.Catalog = a.Repo
		services.Importer = a.Importer
		services.Sources = a.OpenSource
		services.HealthChecks["database"] = a.DB.PingContext
	}

	routerCfg := api.RouterConfig{
		Mode:        cfg.Server.Mode,
		AdminToken:  cfg.Server.AdminToken,
		CORS:        cfg.Server.CORS,
		Logger:      appLogger,
		Metrics:     a.Metrics,
		MetricsPath: cfg.Metrics.Path,
	}
	if a.Metrics != nil {
		routerCfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Server.AdminToken == "" {
		appLogger.Warn("ADMIN_TOKEN not set, admin API disabled")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.SetupRouter(services, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.WithFields(logger.Fields{
			"port":  cfg.Server.Port,
			"mode":  cfg.Server.Mode,
			"store": cfg.Store.Driver,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	// flush pending view/download increments before closing the store
	a.Close(shutdownCtx)

	appLogger.Info("Server exited")
}
