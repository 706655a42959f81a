package watcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"productimport/internal/config"
	"productimport/internal/models"
	"productimport/internal/worker"
)

type mockImportQueue struct {
	pending []models.ImportJob
	stuck   []models.ImportJob
}

func (m *mockImportQueue) GetPendingJobs(ctx context.Context, limit int) ([]models.ImportJob, error) {
	return m.pending, nil
}

func (m *mockImportQueue) GetStuckJobs(ctx context.Context, limit int, staleAfter time.Duration) ([]models.ImportJob, error) {
	return m.stuck, nil
}

type mockDeletionQueue struct {
	pending []models.DeletionJob
	stuck   []models.DeletionJob
}

func (m *mockDeletionQueue) GetPendingJobs(ctx context.Context, limit int) ([]models.DeletionJob, error) {
	return m.pending, nil
}

func (m *mockDeletionQueue) GetStuckJobs(ctx context.Context, limit int, staleAfter time.Duration) ([]models.DeletionJob, error) {
	return m.stuck, nil
}

type mockDeliveryQueue struct {
	ids []int64
}

func (m *mockDeliveryQueue) ClaimDue(ctx context.Context, limit int, staleAfter time.Duration) ([]int64, error) {
	return m.ids, nil
}

type recordingImportRunner struct {
	taskIDs []string
}

func (r *recordingImportRunner) Process(ctx context.Context, taskID, filePath string) error {
	r.taskIDs = append(r.taskIDs, taskID)
	return nil
}

type recordingDeleteRunner struct {
	jobIDs []int64
}

func (r *recordingDeleteRunner) Process(ctx context.Context, jobID int64) error {
	r.jobIDs = append(r.jobIDs, jobID)
	return nil
}

type blockingDeliveryRunner struct {
	count   int64
	started chan int64
	release chan struct{}
}

func (r *blockingDeliveryRunner) Process(ctx context.Context, deliveryID int64) error {
	atomic.AddInt64(&r.count, 1)
	r.started <- deliveryID
	<-r.release
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		UploadDir:         "/tmp/uploads",
		PollInterval:      5,
		StaleJobThreshold: 300,
	}
}

func TestWatcher_ProcessImportJobs_IncludesStuck(t *testing.T) {
	imports := &mockImportQueue{
		pending: []models.ImportJob{{TaskID: "fresh", Status: models.JobStatusPending}},
		stuck:   []models.ImportJob{{TaskID: "abandoned", Status: models.JobStatusInProgress}},
	}
	runner := &recordingImportRunner{}

	w := New(testConfig(), imports, &mockDeletionQueue{}, &mockDeliveryQueue{}, runner, nil, nil, worker.NewPool(1, 1))
	if err := w.processImportJobs(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(runner.taskIDs) != 2 {
		t.Fatalf("expected 2 dispatched jobs, got %v", runner.taskIDs)
	}
	if runner.taskIDs[0] != "fresh" || runner.taskIDs[1] != "abandoned" {
		t.Errorf("expected pending then stuck, got %v", runner.taskIDs)
	}
}

func TestWatcher_ProcessDeletionJobs_IncludesStuck(t *testing.T) {
	deletions := &mockDeletionQueue{
		pending: []models.DeletionJob{{ID: 1, Status: models.JobStatusPending}},
		stuck:   []models.DeletionJob{{ID: 2, Status: models.JobStatusInProgress}},
	}
	runner := &recordingDeleteRunner{}

	w := New(testConfig(), &mockImportQueue{}, deletions, &mockDeliveryQueue{}, nil, runner, nil, worker.NewPool(1, 1))
	if err := w.processDeletionJobs(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(runner.jobIDs) != 2 || runner.jobIDs[0] != 1 || runner.jobIDs[1] != 2 {
		t.Errorf("expected jobs 1 then 2, got %v", runner.jobIDs)
	}
}

func TestWatcher_DeliveryNotResubmittedWhileRunning(t *testing.T) {
	runner := &blockingDeliveryRunner{
		started: make(chan int64, 16),
		release: make(chan struct{}),
	}
	pool := worker.NewPool(2, 4)
	pool.Start(context.Background())

	w := New(testConfig(), &mockImportQueue{}, &mockDeletionQueue{}, &mockDeliveryQueue{ids: []int64{7}}, nil, nil, runner, pool)

	ctx := context.Background()
	if err := w.processDueDeliveries(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the delivery attempt to start")
	}

	// The same id coming back from the next poll (stale re-claim) must not
	// reach the runner while the first attempt is still executing.
	if err := w.processDueDeliveries(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := atomic.LoadInt64(&runner.count); got != 1 {
		t.Fatalf("expected exactly 1 attempt while running, got %d", got)
	}

	close(runner.release)

	// Once the attempt finishes, the id is eligible again.
	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&runner.count) < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the delivery to become eligible again")
		default:
		}
		if err := w.processDueDeliveries(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the second attempt to start")
	}
	pool.Stop()
}

func TestWatcher_PoolSaturationClearsInFlight(t *testing.T) {
	runner := &blockingDeliveryRunner{
		started: make(chan int64, 1),
		release: make(chan struct{}),
	}
	// No workers drain the queue, so the second submit fails.
	pool := worker.NewPool(0, 1)

	w := New(testConfig(), &mockImportQueue{}, &mockDeletionQueue{}, &mockDeliveryQueue{ids: []int64{1, 2}}, nil, nil, runner, pool)

	if err := w.processDueDeliveries(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	w.mu.Lock()
	_, stillMarked := w.inFlight[2]
	w.mu.Unlock()
	if stillMarked {
		t.Error("expected a rejected delivery to be cleared from the in-flight set")
	}
}
