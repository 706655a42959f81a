package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type DeliveryStatus string

const (
	DeliveryStatusPending    DeliveryStatus = "pending"     // Created, not yet attempted
	DeliveryStatusInProgress DeliveryStatus = "in_progress" // HTTP call in flight
	DeliveryStatusSuccess    DeliveryStatus = "success"     // 2xx/3xx response received
	DeliveryStatusRetry      DeliveryStatus = "retry"       // Failed, scheduled for another attempt
	DeliveryStatusFailed     DeliveryStatus = "failed"      // Failed with no attempts left
)

const DefaultMaxDeliveryAttempts = 5

// JSONPayload is stored as a jsonb column.
type JSONPayload json.RawMessage

func (p JSONPayload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	return string(p), nil
}

func (p *JSONPayload) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case []byte:
		*p = append((*p)[0:0], v...)
	case string:
		*p = JSONPayload(v)
	default:
		return fmt.Errorf("unsupported source type %T for json payload", src)
	}
	return nil
}

func (p JSONPayload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

func (p *JSONPayload) UnmarshalJSON(data []byte) error {
	*p = append((*p)[0:0], data...)
	return nil
}

// WebhookDelivery tracks one event delivery to one webhook across retries.
type WebhookDelivery struct {
	ID             int64          `gorm:"column:id;primaryKey" json:"id"`
	WebhookID      int64          `gorm:"column:webhook_id;index" json:"webhook_id"`
	Webhook        *Webhook       `gorm:"foreignKey:WebhookID" json:"-"`
	EventType      string         `gorm:"column:event_type" json:"event_type"`
	Payload        JSONPayload    `gorm:"column:payload;type:jsonb" json:"payload"`
	Status         DeliveryStatus `gorm:"column:status;index" json:"status"`
	Attempt        int            `gorm:"column:attempt" json:"attempt"`
	MaxAttempts    int            `gorm:"column:max_attempts" json:"max_attempts"`
	ResponseCode   *int           `gorm:"column:response_code" json:"response_code"`
	ResponseTimeMs *int           `gorm:"column:response_time_ms" json:"response_time_ms"`
	ErrorMessage   string         `gorm:"column:error_message" json:"error_message"`
	NextRetryAt    *time.Time     `gorm:"column:next_retry_at" json:"next_retry_at"`
	IsTest         bool           `gorm:"column:is_test" json:"is_test"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
