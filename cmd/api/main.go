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

	"github.com/martin/carsight/internal/api"
	"github.com/martin/carsight/internal/api/middleware"
	"github.com/martin/carsight/internal/config"
	"github.com/martin/carsight/internal/dataset"
	"github.com/martin/carsight/internal/logger"
	"github.com/martin/carsight/internal/queue"
	"github.com/martin/carsight/internal/repository"
	"github.com/martin/carsight/internal/service"
	"github.com/martin/carsight/internal/worker"
)

func main() {
	// Load configuration
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	appLogger := logger.NewDefault()
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Initialize database
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize repositories
	taskRepo := repository.NewTaskRepository(db)
	recordRepo := repository.NewRecordRepository(db, cfg.Worker.BatchSize)

	// Initialize dataset source (local file, HTTP, or S3)
	source, err := dataset.NewSource(&cfg.Dataset)
	if err != nil {
		appLogger.Fatalf("Failed to initialize dataset source: %v", err)
	}
	appLogger.WithField(logger.FieldSource, source.Location()).Info("Dataset source ready")

	// Initialize work queue and the single consumer worker
	workQueue := queue.New(cfg.Queue.Size)
	taskWorker := worker.New(taskRepo, recordRepo, source, workQueue, appLogger, &worker.Config{
		DequeueTimeout: cfg.Queue.DequeueTimeout,
		ProcessTimeout: cfg.Worker.ProcessTimeout,
	})
	taskWorker.Start()

	// Initialize services
	taskService := service.NewTaskService(taskRepo, recordRepo, workQueue, taskWorker, appLogger)

	// Setup router
	router := api.SetupRouter(taskService, middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}, cfg.Server.Mode, appLogger)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		appLogger.Infof("Starting API server: port=%d, mode=%s", cfg.Server.Port, cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatalf("Server forced to shutdown: %v", err)
	}

	// Stop accepting queue work and drain the in-flight task
	taskWorker.Stop()

	appLogger.Info("Server exited")
}
