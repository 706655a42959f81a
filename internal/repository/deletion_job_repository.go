package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"productimport/internal/models"
)

type DeletionJobRepository struct {
	db *sql.DB
}

func NewDeletionJobRepository(db *sql.DB) *DeletionJobRepository {
	return &DeletionJobRepository{db: db}
}

// Create inserts a new pending deletion job.
func (r *DeletionJobRepository) Create(ctx context.Context, job *models.DeletionJob) error {
	query := `
		INSERT INTO deletion_jobs (user_id, status, total_count, deleted_count, errors, created_at, updated_at)
		VALUES ($1, $2, $3, 0, '[]', now(), now())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, job.UserID, job.Status, job.TotalCount).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deletion job: %w", err)
	}

	return nil
}

// GetByID fetches one deletion job, or ErrNotFound.
func (r *DeletionJobRepository) GetByID(ctx context.Context, id int64) (*models.DeletionJob, error) {
	query := `
		SELECT id, user_id, status, total_count, deleted_count, errors, created_at, updated_at
		FROM deletion_jobs
		WHERE id = $1
	`

	job, err := r.scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get deletion job: %w", err)
	}

	return job, nil
}

// GetPendingJobs retrieves pending deletion jobs, oldest first.
func (r *DeletionJobRepository) GetPendingJobs(ctx context.Context, limit int) ([]models.DeletionJob, error) {
	query := `
		SELECT id, user_id, status, total_count, deleted_count, errors, created_at, updated_at
		FROM deletion_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, models.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending deletion jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.DeletionJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deletion job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// GetStuckJobs retrieves jobs sitting in_progress past the staleness
// cutoff, abandoned by a crashed worker.
func (r *DeletionJobRepository) GetStuckJobs(ctx context.Context, limit int, staleAfter time.Duration) ([]models.DeletionJob, error) {
	query := `
		SELECT id, user_id, status, total_count, deleted_count, errors, created_at, updated_at
		FROM deletion_jobs
		WHERE status = $1 AND updated_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	cutoff := time.Now().UTC().Add(-staleAfter)
	rows, err := r.db.QueryContext(ctx, query, models.JobStatusInProgress, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck deletion jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.DeletionJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deletion job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkInProgress moves the job into in_progress with the snapshot total.
func (r *DeletionJobRepository) MarkInProgress(ctx context.Context, id int64, totalCount int) error {
	query := `
		UPDATE deletion_jobs
		SET status = $1, total_count = $2, deleted_count = 0, errors = '[]', updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, models.JobStatusInProgress, totalCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark deletion job in progress: %w", err)
	}
	return nil
}

// UpdateProgress persists the cumulative deleted count.
func (r *DeletionJobRepository) UpdateProgress(ctx context.Context, id int64, deletedCount int) error {
	query := `
		UPDATE deletion_jobs
		SET deleted_count = $1, updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.ExecContext(ctx, query, deletedCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update deletion job progress: %w", err)
	}
	return nil
}

// MarkCompleted finalizes the job.
func (r *DeletionJobRepository) MarkCompleted(ctx context.Context, id int64, deletedCount int) error {
	query := `
		UPDATE deletion_jobs
		SET status = $1, deleted_count = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, models.JobStatusCompleted, deletedCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark deletion job completed: %w", err)
	}
	return nil
}

// MarkFailed finalizes the job as failed with its error list.
func (r *DeletionJobRepository) MarkFailed(ctx context.Context, id int64, errs models.JobErrorList) error {
	query := `
		UPDATE deletion_jobs
		SET status = $1, errors = $2, updated_at = $3
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query, models.JobStatusFailed, errs, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark deletion job failed: %w", err)
	}
	return nil
}

func (r *DeletionJobRepository) scanJob(row rowScanner) (*models.DeletionJob, error) {
	var job models.DeletionJob
	err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&job.TotalCount,
		&job.DeletedCount,
		&job.Errors,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
