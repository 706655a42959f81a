package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"productimport/internal/csvbatch"
	"productimport/internal/events"
	"productimport/internal/models"
	"productimport/internal/progress"
	"productimport/internal/repository"
)

// MaxErrorRecords bounds the error list persisted while a job is running.
const MaxErrorRecords = 50

// ImportJobStore is the persistence surface the import processor needs.
type ImportJobStore interface {
	GetByTaskID(ctx context.Context, taskID string) (*models.ImportJob, error)
	MarkInProgress(ctx context.Context, taskID string, totalRows int) error
	UpdateProgress(ctx context.Context, taskID string, processedRows int, errs models.JobErrorList) error
	MarkCompleted(ctx context.Context, taskID string, processedRows int, errs models.JobErrorList) error
	MarkFailed(ctx context.Context, taskID string, errs models.JobErrorList) error
}

// ProductLoader merges one de-duplicated batch into the product store.
type ProductLoader interface {
	LoadBatch(ctx context.Context, taskID string, batchIndex int, records []csvbatch.Record) error
}

// ProgressSink pushes progress snapshots to live subscribers.
type ProgressSink interface {
	PublishImport(ctx context.Context, taskID string, payload progress.Payload)
	PublishDeletion(ctx context.Context, jobID int64, payload progress.Payload)
}

// EventQueuer fans a domain event out to subscribed webhooks.
type EventQueuer interface {
	QueueEvent(ctx context.Context, eventType string, payload interface{}) (int, error)
}

// ImportProcessor drives one CSV import job: count rows, then per batch
// normalize, de-duplicate, bulk-load, persist progress, and publish events.
type ImportProcessor struct {
	jobs      ImportJobStore
	loader    ProductLoader
	progress  ProgressSink
	events    EventQueuer
	batchSize int
}

func NewImportProcessor(jobs ImportJobStore, loader ProductLoader, sink ProgressSink, queuer EventQueuer, batchSize int) *ImportProcessor {
	return &ImportProcessor{
		jobs:      jobs,
		loader:    loader,
		progress:  sink,
		events:    queuer,
		batchSize: batchSize,
	}
}

// Process runs one import job to completion or failure. A missing job or
// missing source file is terminal but not an error to the caller; anything
// else marks the job failed and propagates for the scheduler's bookkeeping.
func (p *ImportProcessor) Process(ctx context.Context, taskID, filePath string) error {
	zap.L().Info("Starting product import",
		zap.String("task_id", taskID),
		zap.String("file_path", filePath),
	)

	job, err := p.jobs.GetByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			zap.L().Warn("Import job not found", zap.String("task_id", taskID))
			p.progress.PublishImport(ctx, taskID, failedPayload(0, 0, 0, "Import job not found."))
			return nil
		}
		return fmt.Errorf("failed to load import job: %w", err)
	}

	if _, err := os.Stat(filePath); err != nil {
		message := fmt.Sprintf("CSV file not found at %s", filePath)
		zap.L().Error(message, zap.String("task_id", taskID))
		errs := models.JobErrorList{{Message: message}}
		if err := p.jobs.MarkFailed(ctx, taskID, errs); err != nil {
			return err
		}
		p.progress.PublishImport(ctx, taskID, failedPayload(0, 0, 1, message))
		return nil
	}

	reader := csvbatch.NewReader(filePath, p.batchSize)

	state := &importState{taskID: job.TaskID}
	if err := p.run(ctx, reader, state); err != nil {
		return p.fail(ctx, state, err)
	}
	return nil
}

// importState carries cumulative counters across batches so the failure
// path can report the exact point reached.
type importState struct {
	taskID     string
	total      int
	processed  int
	errorCount int
	errs       models.JobErrorList
}

func (p *ImportProcessor) run(ctx context.Context, reader *csvbatch.Reader, st *importState) error {
	total, err := reader.CountRows()
	if err != nil {
		return err
	}
	st.total = total

	if err := p.jobs.MarkInProgress(ctx, st.taskID, total); err != nil {
		return err
	}

	zap.L().Info("Counted import rows",
		zap.String("task_id", st.taskID),
		zap.Int("total_rows", total),
		zap.Int("batch_size", p.batchSize),
	)

	p.progress.PublishImport(ctx, st.taskID, progress.Payload{
		Status: string(models.JobStatusInProgress),
		Total:  total,
	})

	it, err := reader.Batches()
	if err != nil {
		return err
	}
	defer it.Close()

	for batchIndex := 1; ; batchIndex++ {
		batch, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		records := make([]csvbatch.Record, 0, len(batch))
		for _, row := range batch {
			st.processed++
			record, rowErr := csvbatch.NormalizeRow(row.Line, row.Fields)
			if rowErr != nil {
				st.errorCount++
				if len(st.errs) < MaxErrorRecords {
					st.errs = append(st.errs, *rowErr)
				}
				continue
			}
			records = append(records, *record)
		}

		deduped := csvbatch.DeduplicateBySKU(records)
		if err := p.loader.LoadBatch(ctx, st.taskID, batchIndex, deduped); err != nil {
			return err
		}

		if err := p.jobs.UpdateProgress(ctx, st.taskID, st.processed, st.errs); err != nil {
			return err
		}

		percent := progress.Percent(st.processed, st.total)
		p.progress.PublishImport(ctx, st.taskID, progress.Payload{
			Status:    string(models.JobStatusInProgress),
			Processed: st.processed,
			Total:     st.total,
			Percent:   percent,
			Errors:    st.errorCount,
		})
		p.queueImportEvent(ctx, events.ImportEvent{
			Event:      events.EventImportProgress,
			TaskID:     st.taskID,
			Processed:  st.processed,
			Total:      st.total,
			Errors:     st.errorCount,
			BatchIndex: batchIndex,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}

	if err := p.jobs.MarkCompleted(ctx, st.taskID, st.processed, st.errs); err != nil {
		return err
	}

	p.progress.PublishImport(ctx, st.taskID, progress.Payload{
		Status:    string(models.JobStatusCompleted),
		Processed: st.processed,
		Total:     st.total,
		Percent:   100,
		Errors:    st.errorCount,
	})
	p.queueImportEvent(ctx, events.ImportEvent{
		Event:     events.EventImportCompleted,
		TaskID:    st.taskID,
		Status:    string(models.JobStatusCompleted),
		Processed: st.processed,
		Total:     st.total,
		Errors:    st.errorCount,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	zap.L().Info("Completed product import",
		zap.String("task_id", st.taskID),
		zap.Int("processed_rows", st.processed),
		zap.Int("errors", st.errorCount),
	)
	return nil
}

// fail records the failure on the job, emits a terminal progress event, and
// hands the error back to the scheduler.
func (p *ImportProcessor) fail(ctx context.Context, st *importState, cause error) error {
	zap.L().Error("Product import failed",
		zap.String("task_id", st.taskID),
		zap.Error(cause),
	)

	st.errorCount++
	entry := models.JobError{Message: cause.Error(), Stacktrace: string(debug.Stack())}
	st.errs = append(models.JobErrorList{entry}, st.errs...)
	if len(st.errs) > MaxErrorRecords {
		st.errs = st.errs[:MaxErrorRecords]
	}

	if err := p.jobs.MarkFailed(ctx, st.taskID, st.errs); err != nil {
		zap.L().Error("Failed to persist failed import job state",
			zap.String("task_id", st.taskID),
			zap.Error(err),
		)
	}

	p.progress.PublishImport(ctx, st.taskID, failedPayload(st.processed, st.total, st.errorCount, cause.Error()))
	p.queueImportEvent(ctx, events.ImportEvent{
		Event:     events.EventImportCompleted,
		TaskID:    st.taskID,
		Status:    string(models.JobStatusFailed),
		Processed: st.processed,
		Total:     st.total,
		Errors:    st.errorCount,
		Error:     cause.Error(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})

	return cause
}

func (p *ImportProcessor) queueImportEvent(ctx context.Context, event events.ImportEvent) {
	if p.events == nil {
		return
	}
	if _, err := p.events.QueueEvent(ctx, event.Event, event); err != nil {
		zap.L().Error("Failed to queue webhook event",
			zap.String("event", event.Event),
			zap.String("task_id", event.TaskID),
			zap.Error(err),
		)
	}
}

func failedPayload(processed, total, errorCount int, message string) progress.Payload {
	return progress.Payload{
		Status:    string(models.JobStatusFailed),
		Processed: processed,
		Total:     total,
		Percent:   progress.Percent(processed, total),
		Errors:    errorCount,
		Error:     &message,
	}
}
