package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"productimport/internal/models"
	"productimport/internal/progress"
	"productimport/internal/repository"
)

// DeletionJobStore is the persistence surface the delete processor needs.
type DeletionJobStore interface {
	GetByID(ctx context.Context, id int64) (*models.DeletionJob, error)
	MarkInProgress(ctx context.Context, id int64, totalCount int) error
	UpdateProgress(ctx context.Context, id int64, deletedCount int) error
	MarkCompleted(ctx context.Context, id int64, deletedCount int) error
	MarkFailed(ctx context.Context, id int64, errs models.JobErrorList) error
}

// ProductStore is the product-table surface for bulk deletion.
type ProductStore interface {
	Count(ctx context.Context) (int64, error)
	DeleteBatch(ctx context.Context, limit int) (int64, error)
	Truncate(ctx context.Context) error
}

// DeleteProcessor drives one bulk deletion job: snapshot the count, then
// either truncate in one step or delete in batches with progress after each.
type DeleteProcessor struct {
	jobs              DeletionJobStore
	products          ProductStore
	progress          ProgressSink
	batchSize         int
	truncateThreshold int
}

func NewDeleteProcessor(jobs DeletionJobStore, products ProductStore, sink ProgressSink, batchSize, truncateThreshold int) *DeleteProcessor {
	return &DeleteProcessor{
		jobs:              jobs,
		products:          products,
		progress:          sink,
		batchSize:         batchSize,
		truncateThreshold: truncateThreshold,
	}
}

// Process runs one deletion job to completion or failure.
func (p *DeleteProcessor) Process(ctx context.Context, jobID int64) error {
	zap.L().Info("Starting bulk product deletion", zap.Int64("job_id", jobID))

	if _, err := p.jobs.GetByID(ctx, jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			zap.L().Warn("Deletion job not found", zap.Int64("job_id", jobID))
			p.progress.PublishDeletion(ctx, jobID, failedPayload(0, 0, 0, "Deletion job not found."))
			return nil
		}
		return fmt.Errorf("failed to load deletion job: %w", err)
	}

	st := &deletionState{jobID: jobID}
	if err := p.run(ctx, st); err != nil {
		return p.fail(ctx, st, err)
	}
	return nil
}

type deletionState struct {
	jobID   int64
	total   int
	deleted int
}

func (p *DeleteProcessor) run(ctx context.Context, st *deletionState) error {
	count, err := p.products.Count(ctx)
	if err != nil {
		return err
	}
	st.total = int(count)

	if err := p.jobs.MarkInProgress(ctx, st.jobID, st.total); err != nil {
		return err
	}

	if st.total == 0 {
		if err := p.jobs.MarkCompleted(ctx, st.jobID, 0); err != nil {
			return err
		}
		p.progress.PublishDeletion(ctx, st.jobID, progress.Payload{
			Status:  string(models.JobStatusCompleted),
			Percent: 100,
		})
		return nil
	}

	if st.total >= p.truncateThreshold {
		zap.L().Info("Truncating products table",
			zap.Int64("job_id", st.jobID),
			zap.Int("total", st.total),
		)
		if err := p.products.Truncate(ctx); err != nil {
			return err
		}
		st.deleted = st.total
		if err := p.jobs.UpdateProgress(ctx, st.jobID, st.deleted); err != nil {
			return err
		}
	} else {
		for {
			deleted, err := p.products.DeleteBatch(ctx, p.batchSize)
			if err != nil {
				return err
			}
			if deleted == 0 {
				break
			}
			st.deleted += int(deleted)

			if err := p.jobs.UpdateProgress(ctx, st.jobID, st.deleted); err != nil {
				return err
			}
			p.progress.PublishDeletion(ctx, st.jobID, progress.Payload{
				Status:    string(models.JobStatusInProgress),
				Processed: st.deleted,
				Total:     st.total,
				Percent:   progress.Percent(st.deleted, st.total),
			})
		}
	}

	if err := p.jobs.MarkCompleted(ctx, st.jobID, st.deleted); err != nil {
		return err
	}
	p.progress.PublishDeletion(ctx, st.jobID, progress.Payload{
		Status:    string(models.JobStatusCompleted),
		Processed: st.deleted,
		Total:     st.total,
		Percent:   100,
	})

	zap.L().Info("Completed bulk product deletion",
		zap.Int64("job_id", st.jobID),
		zap.Int("deleted", st.deleted),
	)
	return nil
}

func (p *DeleteProcessor) fail(ctx context.Context, st *deletionState, cause error) error {
	zap.L().Error("Bulk product deletion failed",
		zap.Int64("job_id", st.jobID),
		zap.Error(cause),
	)

	errs := models.JobErrorList{{Message: cause.Error(), Stacktrace: string(debug.Stack())}}
	if err := p.jobs.MarkFailed(ctx, st.jobID, errs); err != nil {
		zap.L().Error("Failed to persist failed deletion job state",
			zap.Int64("job_id", st.jobID),
			zap.Error(err),
		)
	}

	p.progress.PublishDeletion(ctx, st.jobID, failedPayload(st.deleted, st.total, 1, cause.Error()))
	return cause
}
