package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"productimport/internal/events"
	"productimport/internal/models"
	"productimport/internal/repository"
)

type webhookRequest struct {
	Name      string `json:"name" validate:"required"`
	URL       string `json:"url" validate:"required,url"`
	EventType string `json:"event_type" validate:"required"`
	Enabled   *bool  `json:"enabled"`
}

func (h *Handlers) ListWebhooks(c *gin.Context) {
	webhooks, err := h.webhooks.List(c.Request.Context())
	if err != nil {
		zap.L().Error("Failed to list webhooks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list webhooks."})
		return
	}
	c.JSON(http.StatusOK, webhooks)
}

func (h *Handlers) CreateWebhook(c *gin.Context) {
	req, ok := h.bindWebhookRequest(c)
	if !ok {
		return
	}

	webhook := &models.Webhook{
		Name:      req.Name,
		URL:       req.URL,
		EventType: req.EventType,
		Enabled:   true,
	}
	if req.Enabled != nil {
		webhook.Enabled = *req.Enabled
	}

	if err := h.webhooks.Create(c.Request.Context(), webhook); err != nil {
		zap.L().Error("Failed to create webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create webhook."})
		return
	}
	c.JSON(http.StatusCreated, webhook)
}

func (h *Handlers) GetWebhook(c *gin.Context) {
	webhook, ok := h.loadWebhook(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, webhook)
}

func (h *Handlers) UpdateWebhook(c *gin.Context) {
	webhook, ok := h.loadWebhook(c)
	if !ok {
		return
	}

	req, ok := h.bindWebhookRequest(c)
	if !ok {
		return
	}

	webhook.Name = req.Name
	webhook.URL = req.URL
	webhook.EventType = req.EventType
	if req.Enabled != nil {
		webhook.Enabled = *req.Enabled
	}

	if err := h.webhooks.Update(c.Request.Context(), webhook); err != nil {
		zap.L().Error("Failed to update webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to update webhook."})
		return
	}
	c.JSON(http.StatusOK, webhook)
}

func (h *Handlers) DeleteWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}

	if err := h.webhooks.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Webhook not found."})
			return
		}
		zap.L().Error("Failed to delete webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete webhook."})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) ListDeliveries(c *gin.Context) {
	webhook, ok := h.loadWebhook(c)
	if !ok {
		return
	}

	deliveries, err := h.deliveries.ListForWebhook(c.Request.Context(), webhook.ID, 50)
	if err != nil {
		zap.L().Error("Failed to list deliveries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to list deliveries."})
		return
	}
	c.JSON(http.StatusOK, deliveries)
}

// TestWebhook queues a single-attempt test delivery for one webhook.
func (h *Handlers) TestWebhook(c *gin.Context) {
	webhook, ok := h.loadWebhook(c)
	if !ok {
		return
	}

	payload := events.TestEvent{
		Event:     events.EventWebhookTest,
		WebhookID: webhook.ID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   "This is a test webhook payload.",
	}

	delivery, err := h.dispatcher.QueueWebhook(c.Request.Context(), webhook, events.EventWebhookTest, payload, true)
	if err != nil {
		zap.L().Error("Failed to queue test delivery", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to queue test delivery."})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"delivery_id": delivery.ID})
}

func (h *Handlers) bindWebhookRequest(c *gin.Context) (*webhookRequest, bool) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body."})
		return nil, false
	}
	if err := h.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return nil, false
	}
	if !events.ValidEventType(req.EventType) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown event type."})
		return nil, false
	}
	return &req, true
}

func (h *Handlers) loadWebhook(c *gin.Context) (*models.Webhook, bool) {
	id, ok := webhookID(c)
	if !ok {
		return nil, false
	}

	webhook, err := h.webhooks.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Webhook not found."})
			return nil, false
		}
		zap.L().Error("Failed to load webhook", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to load webhook."})
		return nil, false
	}
	return webhook, true
}

func webhookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid webhook id."})
		return 0, false
	}
	return id, true
}
