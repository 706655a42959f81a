package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"productimport/internal/models"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// List returns all webhooks, newest first.
func (r *WebhookRepository) List(ctx context.Context) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&webhooks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	return webhooks, nil
}

// GetByID fetches one webhook, or ErrNotFound.
func (r *WebhookRepository) GetByID(ctx context.Context, id int64) (*models.Webhook, error) {
	var webhook models.Webhook
	err := r.db.WithContext(ctx).First(&webhook, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return &webhook, nil
}

// ListEnabledForEvent returns enabled webhooks subscribed to eventType.
func (r *WebhookRepository) ListEnabledForEvent(ctx context.Context, eventType string) ([]models.Webhook, error) {
	var webhooks []models.Webhook
	err := r.db.WithContext(ctx).
		Where("enabled = ? AND event_type = ?", true, eventType).
		Find(&webhooks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for event %s: %w", eventType, err)
	}
	return webhooks, nil
}

func (r *WebhookRepository) Create(ctx context.Context, webhook *models.Webhook) error {
	if err := r.db.WithContext(ctx).Create(webhook).Error; err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Update(ctx context.Context, webhook *models.Webhook) error {
	if err := r.db.WithContext(ctx).Save(webhook).Error; err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}

func (r *WebhookRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Webhook{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete webhook: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastOutcome mirrors the result of the most recent delivery attempt
// onto the webhook's cache columns.
func (r *WebhookRepository) UpdateLastOutcome(ctx context.Context, id int64, statusCode *int, responseTimeMs *int, lastError string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Webhook{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_status_code":      statusCode,
			"last_response_time_ms": responseTimeMs,
			"last_error":            lastError,
			"updated_at":            time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update webhook last outcome: %w", err)
	}
	return nil
}
