package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"productimport/internal/models"
)

// WebhookStore lists subscriptions for the dispatcher.
type WebhookStore interface {
	ListEnabledForEvent(ctx context.Context, eventType string) ([]models.Webhook, error)
}

// DeliveryCreator persists new delivery attempts. Creating the pending row
// is the enqueue: the watcher picks it up on its next poll.
type DeliveryCreator interface {
	Create(ctx context.Context, delivery *models.WebhookDelivery) error
}

// WebhookDispatcher fans domain events out into per-subscription delivery
// records.
type WebhookDispatcher struct {
	webhooks   WebhookStore
	deliveries DeliveryCreator
}

func NewWebhookDispatcher(webhooks WebhookStore, deliveries DeliveryCreator) *WebhookDispatcher {
	return &WebhookDispatcher{webhooks: webhooks, deliveries: deliveries}
}

// QueueEvent creates one pending delivery per enabled subscription matching
// eventType and returns how many were dispatched.
func (d *WebhookDispatcher) QueueEvent(ctx context.Context, eventType string, payload interface{}) (int, error) {
	webhooks, err := d.webhooks.ListEnabledForEvent(ctx, eventType)
	if err != nil {
		return 0, err
	}
	if len(webhooks) == 0 {
		return 0, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	count := 0
	for i := range webhooks {
		delivery := newDelivery(webhooks[i].ID, eventType, data, false)
		if err := d.deliveries.Create(ctx, delivery); err != nil {
			return count, err
		}
		count++
	}

	zap.L().Info("Queued webhook event",
		zap.String("event", eventType),
		zap.Int("deliveries", count),
	)
	return count, nil
}

// QueueWebhook creates one delivery for an explicit subscription, used by
// manual test triggers. Test deliveries get a single attempt.
func (d *WebhookDispatcher) QueueWebhook(ctx context.Context, webhook *models.Webhook, eventType string, payload interface{}, isTest bool) (*models.WebhookDelivery, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	delivery := newDelivery(webhook.ID, eventType, data, isTest)
	if err := d.deliveries.Create(ctx, delivery); err != nil {
		return nil, err
	}
	return delivery, nil
}

func newDelivery(webhookID int64, eventType string, payload []byte, isTest bool) *models.WebhookDelivery {
	maxAttempts := models.DefaultMaxDeliveryAttempts
	if isTest {
		maxAttempts = 1
	}
	return &models.WebhookDelivery{
		WebhookID:   webhookID,
		EventType:   eventType,
		Payload:     models.JSONPayload(payload),
		Status:      models.DeliveryStatusPending,
		MaxAttempts: maxAttempts,
		IsTest:      isTest,
	}
}
