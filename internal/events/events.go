// Package events defines the webhook event types and the payload shapes
// published for them. Payloads are typed structs serialized only at the
// delivery boundary.
package events

const (
	EventProductCreated  = "product.created"
	EventProductUpdated  = "product.updated"
	EventProductDeleted  = "product.deleted"
	EventImportProgress  = "product.import_progress"
	EventImportCompleted = "product.import_completed"
	EventWebhookTest     = "webhook.test"
)

// EventTypes lists every event a webhook can subscribe to.
var EventTypes = []string{
	EventProductCreated,
	EventProductUpdated,
	EventProductDeleted,
	EventImportProgress,
	EventImportCompleted,
	EventWebhookTest,
}

// ValidEventType reports whether s is a known event type.
func ValidEventType(s string) bool {
	for _, t := range EventTypes {
		if t == s {
			return true
		}
	}
	return false
}

// ImportEvent is the payload for product.import_progress and
// product.import_completed events.
type ImportEvent struct {
	Event      string `json:"event"`
	TaskID     string `json:"task_id"`
	Status     string `json:"status,omitempty"`
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Errors     int    `json:"errors"`
	BatchIndex int    `json:"batch_index,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// TestEvent is the payload fired by a manual webhook test.
type TestEvent struct {
	Event     string `json:"event"`
	WebhookID int64  `json:"webhook_id"`
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}
