// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/clicktrail-go/internal/application/container"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/caching/cleanup"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/clicktrail-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/clicktrail-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/clicktrail-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal arrives.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  clicktrail` + "\033[97m" + ` attribution capture service
` + "\033[0m")

	// Step 1: Load configuration
	log.Println("Loading configuration...")
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Step 2: Create the channeled logger
	logger, err := NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Configuration loaded - switching to channeled logging",
		"requireConsent", cfg.Attribution.RequireConsent,
		"cookieName", cfg.Attribution.CookieName,
		"platforms", cfg.Forms.Platforms)

	// Step 3: Open the lead log and ensure its schema
	startDBTime := time.Now()
	db, err := OpenDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	logger.LogStartupPhase("database", time.Since(startDBTime), true, map[string]any{"driver": cfg.Database.Driver})

	// Step 4: Create dependency injection container
	appContainer, err := container.NewContainer(cfg, logger, db)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create container: %w", err)
	}
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 5: Start background workers
	go appContainer.Stream.Run(ctx)

	cleanupWorker := cleanup.NewWorker(appContainer.PageStore, cleanup.NewConfig(cfg.Pages), logger)
	cleanupWorker.OnPurge(func(removed int) {
		appContainer.Metrics.PagesEvicted.Add(float64(removed))
	})
	go cleanupWorker.Start(ctx)
	logger.Startup().Info("Background workers started", "cleanupInterval", cfg.Pages.CleanupInterval)

	// Step 6: Start HTTP server
	httpServer := server.New(cfg.Server, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+cfg.Server.Port)
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", cfg.Server.Port)

	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	if err := appContainer.Close(); err != nil {
		logger.Shutdown().Error("Error closing container", "error", err.Error())
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// NewLogger builds the channeled logger from the log settings.
func NewLogger(cfg config.Log) (*logging.ChanneledLogger, error) {
	loggerConfig := logging.DefaultLoggerConfig()
	loggerConfig.JSONFormat = cfg.JSON
	loggerConfig.DefaultLevel = logging.ParseLevel(cfg.Level)
	if cfg.Dir != "" {
		loggerConfig.OutputToFile = true
		loggerConfig.LogDirectory = cfg.Dir
	}
	if cfg.Stream {
		loggerConfig.Broadcaster = logging.NewLogBroadcaster()
	}
	return logging.NewChanneledLogger(loggerConfig)
}

// OpenDatabase connects to the lead log and creates its tables.
func OpenDatabase(cfg config.Database, logger *logging.ChanneledLogger) (*database.DB, error) {
	db, err := database.NewConnectionWithLogger(database.Options{
		Driver:             cfg.Driver,
		DSN:                cfg.DSN,
		AuthToken:          cfg.AuthToken,
		MaxOpenConns:       cfg.MaxOpenConns,
		MaxIdleConns:       cfg.MaxIdleConns,
		ConnMaxLifetime:    cfg.ConnMaxLifetime,
		SlowQueryThreshold: cfg.SlowQueryThreshold,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.NewTableCreator().CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
