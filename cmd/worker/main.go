package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"productimport/internal/config"
	"productimport/internal/database"
	"productimport/internal/progress"
	"productimport/internal/repository"
	"productimport/internal/service"
	"productimport/internal/watcher"
	"productimport/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	zap.L().Info("Database connected successfully")

	// Run migrations
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	zap.L().Info("Migrations completed successfully")

	sqlDB, err := database.SQLDB(db)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	// Redis progress publisher (optional)
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
	}
	publisher := progress.NewPublisher(rdb)

	// Initialize repositories
	importJobRepo := repository.NewImportJobRepository(sqlDB)
	deletionJobRepo := repository.NewDeletionJobRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	bulkLoader := repository.NewBulkLoader(sqlDB)
	webhookRepo := repository.NewWebhookRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)

	// Initialize services
	dispatcher := service.NewWebhookDispatcher(webhookRepo, deliveryRepo)
	importProc := service.NewImportProcessor(importJobRepo, bulkLoader, publisher, dispatcher, cfg.ImportBatchSize)
	deleteProc := service.NewDeleteProcessor(deletionJobRepo, productRepo, publisher, cfg.DeleteBatchSize, cfg.TruncateThreshold)
	deliveryProc := service.NewDeliveryProcessor(deliveryRepo, webhookRepo, time.Duration(cfg.WebhookTimeout)*time.Second)

	// Initialize watcher with a bounded pool for deliveries
	pool := worker.NewPool(cfg.DeliveryWorkers, cfg.DeliveryWorkers*4)
	w := watcher.New(cfg, importJobRepo, deletionJobRepo, deliveryRepo, importProc, deleteProc, deliveryProc, pool)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Start(ctx)
	}()

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
		defer shutdownCancel()

		select {
		case <-shutdownCtx.Done():
			zap.L().Warn("Shutdown timeout exceeded")
		case err := <-errChan:
			if err != nil && err != context.Canceled {
				zap.L().Error("Watcher error", zap.Error(err))
			}
		}

		zap.L().Info("Worker stopped")
		return nil

	case err := <-errChan:
		return err
	}
}
