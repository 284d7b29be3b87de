package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kyvra-tech/geoipmap-backend/internal/config"
	"github.com/kyvra-tech/geoipmap-backend/internal/database"
	"github.com/kyvra-tech/geoipmap-backend/internal/handlers"
	"github.com/kyvra-tech/geoipmap-backend/internal/middleware"
	"github.com/kyvra-tech/geoipmap-backend/internal/repositories"
	"github.com/kyvra-tech/geoipmap-backend/internal/scheduler"
	"github.com/kyvra-tech/geoipmap-backend/internal/services"
	"github.com/kyvra-tech/geoipmap-backend/pkg/logger"
	"github.com/kyvra-tech/geoipmap-backend/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.Logger.Level, cfg.Logger.Format)
	appMetrics := metrics.NewMetrics()

	// Connect to database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, appLogger); err != nil {
			appLogger.WithError(err).Fatal("Failed to run migrations")
		}
	}

	// Initialize repositories
	siteRepo, err := repositories.NewCachedSiteRepository(repositories.NewSiteRepository(db), cfg.Cache, appMetrics)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to create site cache")
	}
	defer siteRepo.Close()

	accessRepo := repositories.NewAccessRepository(db)
	archiveRepo := repositories.NewArchiveRepository(db, appMetrics)
	logRepo := repositories.NewLogRepository(db, appMetrics)

	// Initialize services
	accessControl := services.NewAccessControl(accessRepo, appLogger)
	geoVisits := services.NewGeoVisitsService(accessControl, archiveRepo, logRepo, siteRepo, cfg.Live, appLogger, appMetrics)
	archiver := services.NewArchiver(siteRepo, logRepo, archiveRepo, appLogger, appMetrics)

	locator, err := services.OpenGeoIPLocator(cfg.GeoIP.DBPath)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open GeoIP database")
	}
	var enricher scheduler.VisitEnricher
	if locator != nil {
		defer locator.Close()
		enricher = services.NewLocationEnricher(logRepo, locator, cfg.GeoIP, appLogger, appMetrics)
	}

	// Initialize scheduler
	var cronScheduler *scheduler.CronScheduler
	if cfg.Scheduler.Enabled {
		cronScheduler = scheduler.NewCronScheduler(archiver, enricher, db, cfg.Scheduler, appLogger, appMetrics)
		if err := cronScheduler.Start(); err != nil {
			appLogger.WithError(err).Fatal("Failed to start scheduler")
		}
		defer cronScheduler.Stop()
	}

	// Initialize HTTP handlers
	geoHandler := handlers.NewGeoVisitsHandler(geoVisits, cfg.Live, appLogger)
	var statusProvider handlers.SchedulerStatusProvider
	if cronScheduler != nil {
		statusProvider = cronScheduler
	}
	healthHandler := handlers.NewHealthHandler(db, statusProvider, appLogger, version)

	// Setup Gin router
	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow, appLogger, appMetrics)
	defer rateLimiter.Stop()

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.StructuredLogger(appLogger),
		middleware.Recovery(appLogger),
		middleware.Security(),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins)),
		middleware.Metrics(appMetrics),
	)

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	limited := router.Group("/")
	limited.Use(
		rateLimiter.Middleware(),
		middleware.Timeout(cfg.Server.RequestTimeout, appLogger),
		middleware.Auth(),
	)

	// Reporting API entry point
	limited.GET("/index.php", geoHandler.Dispatch)

	// API routes
	api := limited.Group("/api/v1")
	{
		api.GET("/scheduler/status", healthHandler.SchedulerStatus)

		geo := api.Group("/sites/:idSite/geo")
		geo.GET("/visits", geoHandler.GetVisits)
		geo.GET("/live", geoHandler.GetLiveVisits)
	}

	// Start server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.WithField("addr", serverAddr).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
