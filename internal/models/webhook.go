package models

import "time"

// Webhook is a subscription of one endpoint URL to one event type. The
// last_* columns cache the outcome of the most recent delivery attempt.
type Webhook struct {
	ID                 int64     `gorm:"column:id;primaryKey" json:"id"`
	Name               string    `gorm:"column:name" json:"name"`
	URL                string    `gorm:"column:url" json:"url"`
	EventType          string    `gorm:"column:event_type;index" json:"event_type"`
	Enabled            bool      `gorm:"column:enabled" json:"enabled"`
	LastStatusCode     *int      `gorm:"column:last_status_code" json:"last_status_code"`
	LastResponseTimeMs *int      `gorm:"column:last_response_time_ms" json:"last_response_time_ms"`
	LastError          string    `gorm:"column:last_error" json:"last_error"`
	CreatedAt          time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Webhook) TableName() string {
	return "webhooks"
}
