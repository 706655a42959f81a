package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"productimport/internal/models"
	"productimport/internal/repository"
)

const maxBackoff = 60 * time.Second

// DeliveryStore is the persistence surface for delivery attempts.
type DeliveryStore interface {
	GetWithWebhook(ctx context.Context, id int64) (*models.WebhookDelivery, error)
	Update(ctx context.Context, delivery *models.WebhookDelivery) error
}

// WebhookOutcomeStore mirrors attempt outcomes onto the subscription.
type WebhookOutcomeStore interface {
	UpdateLastOutcome(ctx context.Context, id int64, statusCode *int, responseTimeMs *int, lastError string) error
}

// DeliveryProcessor executes one HTTP delivery attempt and advances the
// delivery's state machine: success, retry with capped exponential backoff,
// or terminal failure once attempts are exhausted. A network error and an
// HTTP error status count the same toward the attempt counter.
type DeliveryProcessor struct {
	deliveries DeliveryStore
	webhooks   WebhookOutcomeStore
	client     *http.Client
	now        func() time.Time
}

func NewDeliveryProcessor(deliveries DeliveryStore, webhooks WebhookOutcomeStore, timeout time.Duration) *DeliveryProcessor {
	return &DeliveryProcessor{
		deliveries: deliveries,
		webhooks:   webhooks,
		client:     &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// Process runs one delivery attempt. Delivery failures are contained in the
// delivery's own state; only persistence errors surface to the caller.
func (p *DeliveryProcessor) Process(ctx context.Context, deliveryID int64) error {
	delivery, err := p.deliveries.GetWithWebhook(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			zap.L().Warn("Webhook delivery not found", zap.Int64("delivery_id", deliveryID))
			return nil
		}
		return fmt.Errorf("failed to load webhook delivery: %w", err)
	}

	webhook := delivery.Webhook
	if webhook == nil {
		return fmt.Errorf("delivery %d has no parent webhook", deliveryID)
	}

	if !webhook.Enabled {
		delivery.Status = models.DeliveryStatusFailed
		delivery.ErrorMessage = "Webhook disabled"
		delivery.NextRetryAt = nil
		return p.deliveries.Update(ctx, delivery)
	}

	delivery.Attempt++
	delivery.Status = models.DeliveryStatusInProgress
	delivery.ErrorMessage = ""
	if err := p.deliveries.Update(ctx, delivery); err != nil {
		return err
	}

	statusCode, durationMs, callErr := p.post(ctx, webhook.URL, delivery.Payload)

	delivery.ResponseCode = statusCode
	delivery.ResponseTimeMs = &durationMs

	if callErr != nil {
		delivery.ErrorMessage = callErr.Error()
		if delivery.Attempt < delivery.MaxAttempts {
			delivery.Status = models.DeliveryStatusRetry
			next := p.now().UTC().Add(backoffDelay(delivery.Attempt))
			delivery.NextRetryAt = &next
		} else {
			delivery.Status = models.DeliveryStatusFailed
			delivery.NextRetryAt = nil
		}
		zap.L().Warn("Webhook delivery attempt failed",
			zap.Int64("delivery_id", delivery.ID),
			zap.Int("attempt", delivery.Attempt),
			zap.String("status", string(delivery.Status)),
			zap.Error(callErr),
		)
	} else {
		delivery.Status = models.DeliveryStatusSuccess
		delivery.ErrorMessage = ""
		delivery.NextRetryAt = nil
	}

	if err := p.deliveries.Update(ctx, delivery); err != nil {
		return err
	}
	if err := p.webhooks.UpdateLastOutcome(ctx, webhook.ID, delivery.ResponseCode, delivery.ResponseTimeMs, delivery.ErrorMessage); err != nil {
		return err
	}
	return nil
}

// post issues the delivery POST and classifies the outcome. Any response
// status >= 400 is an error, same as a transport failure.
func (p *DeliveryProcessor) post(ctx context.Context, url string, payload []byte) (*int, int, error) {
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	start := p.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, int(p.now().Sub(start).Milliseconds()), fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, int(p.now().Sub(start).Milliseconds()), err
	}
	defer resp.Body.Close()

	durationMs := int(p.now().Sub(start).Milliseconds())
	statusCode := resp.StatusCode

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return &statusCode, durationMs, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	return &statusCode, durationMs, nil
}

// backoffDelay returns min(60s, 2^attempt seconds).
func backoffDelay(attempt int) time.Duration {
	if attempt >= 6 { // 2^6 = 64s, already past the cap
		return maxBackoff
	}
	delay := time.Duration(1<<uint(attempt)) * time.Second
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}
