package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"productimport/internal/models"
)

type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(ctx context.Context, delivery *models.WebhookDelivery) error {
	if err := r.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return fmt.Errorf("failed to create webhook delivery: %w", err)
	}
	return nil
}

// GetWithWebhook fetches one delivery with its parent webhook, or ErrNotFound.
func (r *DeliveryRepository) GetWithWebhook(ctx context.Context, id int64) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	err := r.db.WithContext(ctx).Preload("Webhook").First(&delivery, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook delivery: %w", err)
	}
	return &delivery, nil
}

// ListForWebhook returns deliveries for one webhook, newest first.
func (r *DeliveryRepository) ListForWebhook(ctx context.Context, webhookID int64, limit int) ([]models.WebhookDelivery, error) {
	var deliveries []models.WebhookDelivery
	err := r.db.WithContext(ctx).
		Where("webhook_id = ?", webhookID).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	return deliveries, nil
}

// ClaimDue atomically claims deliveries ready to attempt: pending ones,
// retries whose backoff delay has elapsed, and in_progress rows older than
// staleAfter (abandoned by a crashed worker). Claiming flips the row to
// in_progress in the same statement, so a delivery still executing when the
// next poll fires is never fetched twice. This query is the retry scheduler.
func (r *DeliveryRepository) ClaimDue(ctx context.Context, limit int, staleAfter time.Duration) ([]int64, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	var ids []int64
	err := r.db.WithContext(ctx).Raw(`
		UPDATE webhook_deliveries
		SET status = ?, updated_at = now()
		WHERE id IN (
			SELECT id FROM webhook_deliveries
			WHERE status = ?
			   OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= now())
			   OR (status = ? AND updated_at < ?)
			ORDER BY created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`,
		models.DeliveryStatusInProgress,
		models.DeliveryStatusPending,
		models.DeliveryStatusRetry,
		models.DeliveryStatusInProgress, cutoff,
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to claim due deliveries: %w", err)
	}
	return ids, nil
}

// Update persists the delivery's mutable attempt state.
func (r *DeliveryRepository) Update(ctx context.Context, delivery *models.WebhookDelivery) error {
	err := r.db.WithContext(ctx).
		Model(delivery).
		Select("status", "attempt", "response_code", "response_time_ms", "error_message", "next_retry_at", "updated_at").
		Updates(map[string]interface{}{
			"status":           delivery.Status,
			"attempt":          delivery.Attempt,
			"response_code":    delivery.ResponseCode,
			"response_time_ms": delivery.ResponseTimeMs,
			"error_message":    delivery.ErrorMessage,
			"next_retry_at":    delivery.NextRetryAt,
			"updated_at":       time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update webhook delivery: %w", err)
	}
	return nil
}
