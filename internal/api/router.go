// Package api exposes the REST surface: CSV upload, progress polling, bulk
// delete, and webhook subscription management.
package api

import (
	"github.com/gin-gonic/gin"

	"productimport/internal/config"
	"productimport/internal/repository"
	"productimport/internal/service"
)

type Handlers struct {
	cfg          *config.Config
	importJobs   *repository.ImportJobRepository
	deletionJobs *repository.DeletionJobRepository
	products     *repository.ProductRepository
	webhooks     *repository.WebhookRepository
	deliveries   *repository.DeliveryRepository
	dispatcher   *service.WebhookDispatcher
	validator    *RequestValidator
}

func NewHandlers(
	cfg *config.Config,
	importJobs *repository.ImportJobRepository,
	deletionJobs *repository.DeletionJobRepository,
	products *repository.ProductRepository,
	webhooks *repository.WebhookRepository,
	deliveries *repository.DeliveryRepository,
	dispatcher *service.WebhookDispatcher,
) *Handlers {
	return &Handlers{
		cfg:          cfg,
		importJobs:   importJobs,
		deletionJobs: deletionJobs,
		products:     products,
		webhooks:     webhooks,
		deliveries:   deliveries,
		dispatcher:   dispatcher,
		validator:    NewRequestValidator(),
	}
}

// NewRouter wires all routes.
func NewRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	apiGroup := r.Group("/api")
	{
		products := apiGroup.Group("/products")
		{
			products.POST("/upload", h.UploadCSV)
			products.GET("/upload/:taskID/progress", h.ImportProgress)
			products.DELETE("", h.BulkDelete)
			products.GET("/deletions/:id/progress", h.DeletionProgress)
		}

		webhooks := apiGroup.Group("/webhooks")
		{
			webhooks.GET("", h.ListWebhooks)
			webhooks.POST("", h.CreateWebhook)
			webhooks.GET("/:id", h.GetWebhook)
			webhooks.PUT("/:id", h.UpdateWebhook)
			webhooks.DELETE("/:id", h.DeleteWebhook)
			webhooks.GET("/:id/deliveries", h.ListDeliveries)
			webhooks.POST("/:id/test", h.TestWebhook)
		}
	}

	return r
}
