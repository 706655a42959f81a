package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"productimport/internal/models"
	"productimport/internal/repository"
)

type mockDeliveryStore struct {
	delivery *models.WebhookDelivery
	err      error
	updates  []models.WebhookDelivery
}

func (m *mockDeliveryStore) GetWithWebhook(ctx context.Context, id int64) (*models.WebhookDelivery, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.delivery, nil
}

func (m *mockDeliveryStore) Update(ctx context.Context, delivery *models.WebhookDelivery) error {
	m.updates = append(m.updates, *delivery)
	return nil
}

type mockWebhookOutcomeStore struct {
	statusCode     *int
	responseTimeMs *int
	lastError      string
	calls          int
}

func (m *mockWebhookOutcomeStore) UpdateLastOutcome(ctx context.Context, id int64, statusCode *int, responseTimeMs *int, lastError string) error {
	m.statusCode = statusCode
	m.responseTimeMs = responseTimeMs
	m.lastError = lastError
	m.calls++
	return nil
}

func newTestDelivery(url string) *models.WebhookDelivery {
	return &models.WebhookDelivery{
		ID:          1,
		WebhookID:   10,
		Webhook:     &models.Webhook{ID: 10, URL: url, Enabled: true},
		EventType:   "product.import_completed",
		Payload:     models.JSONPayload(`{"task_id":"t1"}`),
		Status:      models.DeliveryStatusPending,
		MaxAttempts: models.DefaultMaxDeliveryAttempts,
	}
}

func newTestProcessor(store *mockDeliveryStore, outcomes *mockWebhookOutcomeStore, now time.Time) *DeliveryProcessor {
	proc := NewDeliveryProcessor(store, outcomes, 5*time.Second)
	proc.now = func() time.Time { return now }
	return proc
}

func TestDeliveryProcessor_Success(t *testing.T) {
	var receivedContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := &mockDeliveryStore{delivery: newTestDelivery(server.URL)}
	outcomes := &mockWebhookOutcomeStore{}
	proc := newTestProcessor(store, outcomes, time.Now())

	if err := proc.Process(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if receivedContentType != "application/json" {
		t.Errorf("expected json content type, got %q", receivedContentType)
	}

	final := store.updates[len(store.updates)-1]
	if final.Status != models.DeliveryStatusSuccess {
		t.Errorf("expected success, got %s", final.Status)
	}
	if final.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", final.Attempt)
	}
	if final.NextRetryAt != nil {
		t.Error("expected no retry scheduled after success")
	}
	if final.ResponseCode == nil || *final.ResponseCode != 200 {
		t.Errorf("expected response code 200, got %v", final.ResponseCode)
	}

	if outcomes.calls != 1 {
		t.Errorf("expected 1 outcome mirror, got %d", outcomes.calls)
	}
	if outcomes.lastError != "" {
		t.Errorf("expected empty last error, got %q", outcomes.lastError)
	}
}

func TestDeliveryProcessor_FailureSchedulesRetry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	delivery := newTestDelivery(server.URL)

	store := &mockDeliveryStore{delivery: delivery}
	outcomes := &mockWebhookOutcomeStore{}
	proc := newTestProcessor(store, outcomes, now)

	if err := proc.Process(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	final := store.updates[len(store.updates)-1]
	if final.Status != models.DeliveryStatusRetry {
		t.Fatalf("expected retry, got %s", final.Status)
	}
	if final.NextRetryAt == nil {
		t.Fatal("expected a retry schedule")
	}
	// min(60s, 2^1) after the first failed attempt
	if want := now.Add(2 * time.Second); !final.NextRetryAt.Equal(want) {
		t.Errorf("expected retry at %v, got %v", want, final.NextRetryAt)
	}
	if final.ErrorMessage == "" {
		t.Error("expected an error message recorded")
	}
	if outcomes.statusCode == nil || *outcomes.statusCode != 502 {
		t.Errorf("expected mirrored status 502, got %v", outcomes.statusCode)
	}
}

func TestDeliveryProcessor_BackoffAcrossAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	delivery := newTestDelivery(server.URL)

	store := &mockDeliveryStore{delivery: delivery}
	outcomes := &mockWebhookOutcomeStore{}
	proc := newTestProcessor(store, outcomes, now)

	expectedDelays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for attempt, delay := range expectedDelays {
		if err := proc.Process(context.Background(), 1); err != nil {
			t.Fatalf("attempt %d: expected no error, got %v", attempt+1, err)
		}
		if delivery.Status != models.DeliveryStatusRetry {
			t.Fatalf("attempt %d: expected retry, got %s", attempt+1, delivery.Status)
		}
		if want := now.Add(delay); delivery.NextRetryAt == nil || !delivery.NextRetryAt.Equal(want) {
			t.Errorf("attempt %d: expected retry at %v, got %v", attempt+1, want, delivery.NextRetryAt)
		}
	}

	// Fifth attempt exhausts the budget.
	if err := proc.Process(context.Background(), 1); err != nil {
		t.Fatalf("final attempt: expected no error, got %v", err)
	}
	if delivery.Status != models.DeliveryStatusFailed {
		t.Errorf("expected terminal failure, got %s", delivery.Status)
	}
	if delivery.Attempt != 5 {
		t.Errorf("expected 5 attempts, got %d", delivery.Attempt)
	}
	if delivery.NextRetryAt != nil {
		t.Error("expected no retry scheduled after exhaustion")
	}
}

func TestDeliveryProcessor_NetworkErrorCountsAsAttempt(t *testing.T) {
	// A closed server produces a transport error, not an HTTP status.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	delivery := newTestDelivery(server.URL)
	store := &mockDeliveryStore{delivery: delivery}
	proc := newTestProcessor(store, &mockWebhookOutcomeStore{}, time.Now())

	if err := proc.Process(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if delivery.Attempt != 1 {
		t.Errorf("expected attempt 1, got %d", delivery.Attempt)
	}
	if delivery.Status != models.DeliveryStatusRetry {
		t.Errorf("expected retry, got %s", delivery.Status)
	}
	if delivery.ResponseCode != nil {
		t.Errorf("expected no response code for transport error, got %v", delivery.ResponseCode)
	}
}

func TestDeliveryProcessor_DisabledWebhook(t *testing.T) {
	delivery := newTestDelivery("http://example.com/hook")
	delivery.Webhook.Enabled = false

	store := &mockDeliveryStore{delivery: delivery}
	outcomes := &mockWebhookOutcomeStore{}
	proc := newTestProcessor(store, outcomes, time.Now())

	if err := proc.Process(context.Background(), 1); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if delivery.Status != models.DeliveryStatusFailed {
		t.Errorf("expected failed, got %s", delivery.Status)
	}
	if delivery.ErrorMessage != "Webhook disabled" {
		t.Errorf("unexpected error message %q", delivery.ErrorMessage)
	}
	if delivery.Attempt != 0 {
		t.Errorf("expected no attempt consumed, got %d", delivery.Attempt)
	}
	if outcomes.calls != 0 {
		t.Errorf("expected no outcome mirror for a skipped delivery, got %d", outcomes.calls)
	}
}

func TestDeliveryProcessor_MissingDelivery(t *testing.T) {
	store := &mockDeliveryStore{err: repository.ErrNotFound}
	proc := newTestProcessor(store, &mockWebhookOutcomeStore{}, time.Now())

	if err := proc.Process(context.Background(), 99); err != nil {
		t.Fatalf("expected missing delivery to be a no-op, got %v", err)
	}
	if len(store.updates) != 0 {
		t.Errorf("expected no updates, got %d", len(store.updates))
	}
}

func TestBackoffDelay(t *testing.T) {
	cases := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: 2 * time.Second},
		{attempt: 2, expected: 4 * time.Second},
		{attempt: 3, expected: 8 * time.Second},
		{attempt: 4, expected: 16 * time.Second},
		{attempt: 5, expected: 32 * time.Second},
		{attempt: 6, expected: 60 * time.Second},
		{attempt: 20, expected: 60 * time.Second},
	}

	for _, tc := range cases {
		if got := backoffDelay(tc.attempt); got != tc.expected {
			t.Errorf("backoffDelay(%d): expected %v, got %v", tc.attempt, tc.expected, got)
		}
	}
}
