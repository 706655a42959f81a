package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"productimport/internal/api"
	"productimport/internal/config"
	"productimport/internal/database"
	"productimport/internal/repository"
	"productimport/internal/service"
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

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	zap.L().Info("Database connected successfully")

	if err := database.RunMigrations(db); err != nil {
		return err
	}

	sqlDB, err := database.SQLDB(db)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	importJobRepo := repository.NewImportJobRepository(sqlDB)
	deletionJobRepo := repository.NewDeletionJobRepository(sqlDB)
	productRepo := repository.NewProductRepository(sqlDB)
	webhookRepo := repository.NewWebhookRepository(db)
	deliveryRepo := repository.NewDeliveryRepository(db)
	dispatcher := service.NewWebhookDispatcher(webhookRepo, deliveryRepo)

	handlers := api.NewHandlers(cfg, importJobRepo, deletionJobRepo, productRepo, webhookRepo, deliveryRepo, dispatcher)
	router := api.NewRouter(handlers)

	srv := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	errChan := make(chan error, 1)
	go func() {
		zap.L().Info("API server starting", zap.String("port", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		zap.L().Info("Shutting down API server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	zap.L().Info("API server stopped gracefully")
	return nil
}
