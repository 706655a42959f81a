// Package watcher polls the job tables and dispatches work: pending import
// jobs, pending deletion jobs, and webhook deliveries whose retry delay has
// elapsed. The database is the queue; scheduling a retry means writing
// next_retry_at and letting the poll loop find the row when it is due.
// Rows left in_progress by a crashed worker are picked up again once they
// age past the staleness threshold.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"productimport/internal/config"
	"productimport/internal/models"
	"productimport/internal/worker"
)

type ImportJobQueue interface {
	GetPendingJobs(ctx context.Context, limit int) ([]models.ImportJob, error)
	GetStuckJobs(ctx context.Context, limit int, staleAfter time.Duration) ([]models.ImportJob, error)
}

type DeletionJobQueue interface {
	GetPendingJobs(ctx context.Context, limit int) ([]models.DeletionJob, error)
	GetStuckJobs(ctx context.Context, limit int, staleAfter time.Duration) ([]models.DeletionJob, error)
}

type DeliveryQueue interface {
	ClaimDue(ctx context.Context, limit int, staleAfter time.Duration) ([]int64, error)
}

type ImportRunner interface {
	Process(ctx context.Context, taskID, filePath string) error
}

type DeleteRunner interface {
	Process(ctx context.Context, jobID int64) error
}

type DeliveryRunner interface {
	Process(ctx context.Context, deliveryID int64) error
}

type Watcher struct {
	cfg          *config.Config
	importJobs   ImportJobQueue
	deletionJobs DeletionJobQueue
	deliveries   DeliveryQueue
	importProc   ImportRunner
	deleteProc   DeleteRunner
	deliveryProc DeliveryRunner
	pool         *worker.Pool

	mu       sync.Mutex
	inFlight map[int64]struct{}
}

func New(
	cfg *config.Config,
	importJobs ImportJobQueue,
	deletionJobs DeletionJobQueue,
	deliveries DeliveryQueue,
	importProc ImportRunner,
	deleteProc DeleteRunner,
	deliveryProc DeliveryRunner,
	pool *worker.Pool,
) *Watcher {
	return &Watcher{
		cfg:          cfg,
		importJobs:   importJobs,
		deletionJobs: deletionJobs,
		deliveries:   deliveries,
		importProc:   importProc,
		deleteProc:   deleteProc,
		deliveryProc: deliveryProc,
		pool:         pool,
		inFlight:     make(map[int64]struct{}),
	}
}

// Start begins watching for pending jobs and due deliveries.
func (w *Watcher) Start(ctx context.Context) error {
	zap.L().Info("Starting watcher",
		zap.Int("poll_interval_seconds", w.cfg.PollInterval),
	)

	w.pool.Start(ctx)
	defer w.pool.Stop()

	// Process any work left over from previous runs
	w.poll(ctx)

	ticker := time.NewTicker(time.Duration(w.cfg.PollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Watcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	if err := w.processImportJobs(ctx); err != nil {
		zap.L().Error("Error processing import jobs", zap.Error(err))
	}
	if err := w.processDeletionJobs(ctx); err != nil {
		zap.L().Error("Error processing deletion jobs", zap.Error(err))
	}
	if err := w.processDueDeliveries(ctx); err != nil {
		zap.L().Error("Error processing webhook deliveries", zap.Error(err))
	}
}

func (w *Watcher) staleAfter() time.Duration {
	return time.Duration(w.cfg.StaleJobThreshold) * time.Second
}

// processImportJobs runs pending and crash-stuck imports sequentially.
// Batches within one job must execute in file order, so a job never spans
// workers.
func (w *Watcher) processImportJobs(ctx context.Context) error {
	jobs, err := w.importJobs.GetPendingJobs(ctx, 5)
	if err != nil {
		return err
	}

	stuck, err := w.importJobs.GetStuckJobs(ctx, 5, w.staleAfter())
	if err != nil {
		return err
	}
	jobs = append(jobs, stuck...)

	for _, job := range jobs {
		if job.Status == models.JobStatusInProgress {
			zap.L().Warn("Re-running stuck import job", zap.String("task_id", job.TaskID))
		}
		filePath := filepath.Join(w.cfg.UploadDir, job.TaskID+".csv")
		if err := w.importProc.Process(ctx, job.TaskID, filePath); err != nil {
			zap.L().Error("Import job failed",
				zap.String("task_id", job.TaskID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (w *Watcher) processDeletionJobs(ctx context.Context) error {
	jobs, err := w.deletionJobs.GetPendingJobs(ctx, 5)
	if err != nil {
		return err
	}

	stuck, err := w.deletionJobs.GetStuckJobs(ctx, 5, w.staleAfter())
	if err != nil {
		return err
	}
	jobs = append(jobs, stuck...)

	for _, job := range jobs {
		if job.Status == models.JobStatusInProgress {
			zap.L().Warn("Re-running stuck deletion job", zap.Int64("job_id", job.ID))
		}
		if err := w.deleteProc.Process(ctx, job.ID); err != nil {
			zap.L().Error("Deletion job failed",
				zap.Int64("job_id", job.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// processDueDeliveries claims due deliveries and hands them to the pool.
// The claim flips rows to in_progress so other processes skip them; the
// in-flight set guards against this process re-submitting a delivery the
// staleness query hands back while a worker is still on it.
func (w *Watcher) processDueDeliveries(ctx context.Context) error {
	ids, err := w.deliveries.ClaimDue(ctx, 20, w.staleAfter())
	if err != nil {
		return err
	}

	for _, id := range ids {
		if !w.markInFlight(id) {
			continue
		}
		job := &deliveryJob{id: id, proc: w.deliveryProc, done: func() { w.clearInFlight(id) }}
		if !w.pool.Submit(job) {
			w.clearInFlight(id)
			// A claimed row dropped here sits in_progress until the
			// staleness window re-claims it.
			zap.L().Warn("Delivery pool saturated", zap.Int64("delivery_id", id))
			return nil
		}
	}
	return nil
}

func (w *Watcher) markInFlight(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, running := w.inFlight[id]; running {
		return false
	}
	w.inFlight[id] = struct{}{}
	return true
}

func (w *Watcher) clearInFlight(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.inFlight, id)
}

type deliveryJob struct {
	id   int64
	proc DeliveryRunner
	done func()
}

func (j *deliveryJob) ID() string {
	return fmt.Sprintf("delivery-%d", j.id)
}

func (j *deliveryJob) Execute(ctx context.Context) error {
	defer j.done()
	return j.proc.Process(ctx, j.id)
}
