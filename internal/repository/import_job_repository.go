package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"productimport/internal/models"
)

type ImportJobRepository struct {
	db *sql.DB
}

func NewImportJobRepository(db *sql.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

// Create inserts a new pending import job.
func (r *ImportJobRepository) Create(ctx context.Context, job *models.ImportJob) error {
	query := `
		INSERT INTO import_jobs (task_id, filename, status, processed_rows, errors, created_at, updated_at)
		VALUES ($1, $2, $3, 0, '[]', now(), now())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, job.TaskID, job.Filename, job.Status).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create import job: %w", err)
	}

	return nil
}

// GetByTaskID fetches one import job, or ErrNotFound.
func (r *ImportJobRepository) GetByTaskID(ctx context.Context, taskID string) (*models.ImportJob, error) {
	query := `
		SELECT id, task_id, filename, status, total_rows, processed_rows, errors, created_at, updated_at
		FROM import_jobs
		WHERE task_id = $1
	`

	job, err := r.scanJob(r.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get import job: %w", err)
	}

	return job, nil
}

// GetPendingJobs retrieves pending import jobs, oldest first.
func (r *ImportJobRepository) GetPendingJobs(ctx context.Context, limit int) ([]models.ImportJob, error) {
	query := `
		SELECT id, task_id, filename, status, total_rows, processed_rows, errors, created_at, updated_at
		FROM import_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, models.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ImportJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// GetStuckJobs retrieves jobs sitting in_progress past the staleness
// cutoff, abandoned by a crashed worker, so they get picked up again. The
// cutoff keeps a job the current process is still running off the list;
// progress updates keep bumping updated_at.
func (r *ImportJobRepository) GetStuckJobs(ctx context.Context, limit int, staleAfter time.Duration) ([]models.ImportJob, error) {
	query := `
		SELECT id, task_id, filename, status, total_rows, processed_rows, errors, created_at, updated_at
		FROM import_jobs
		WHERE status = $1 AND updated_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	cutoff := time.Now().UTC().Add(-staleAfter)
	rows, err := r.db.QueryContext(ctx, query, models.JobStatusInProgress, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck import jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.ImportJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// MarkInProgress moves the job into in_progress with the counted total and
// resets progress state.
func (r *ImportJobRepository) MarkInProgress(ctx context.Context, taskID string, totalRows int) error {
	query := `
		UPDATE import_jobs
		SET status = $1, total_rows = $2, processed_rows = 0, errors = '[]', updated_at = $3
		WHERE task_id = $4
	`

	_, err := r.db.ExecContext(ctx, query, models.JobStatusInProgress, totalRows, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("failed to mark import job in progress: %w", err)
	}
	return nil
}

// UpdateProgress persists cumulative processed rows and the bounded error list.
func (r *ImportJobRepository) UpdateProgress(ctx context.Context, taskID string, processedRows int, errs models.JobErrorList) error {
	query := `
		UPDATE import_jobs
		SET processed_rows = $1, errors = $2, updated_at = $3
		WHERE task_id = $4
	`

	_, err := r.db.ExecContext(ctx, query, processedRows, errs, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("failed to update import job progress: %w", err)
	}
	return nil
}

// MarkCompleted finalizes the job with the full accumulated error list.
func (r *ImportJobRepository) MarkCompleted(ctx context.Context, taskID string, processedRows int, errs models.JobErrorList) error {
	query := `
		UPDATE import_jobs
		SET status = $1, processed_rows = $2, errors = $3, updated_at = $4
		WHERE task_id = $5
	`

	_, err := r.db.ExecContext(ctx, query, models.JobStatusCompleted, processedRows, errs, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("failed to mark import job completed: %w", err)
	}
	return nil
}

// MarkFailed finalizes the job as failed with the capped error list.
func (r *ImportJobRepository) MarkFailed(ctx context.Context, taskID string, errs models.JobErrorList) error {
	query := `
		UPDATE import_jobs
		SET status = $1, errors = $2, updated_at = $3
		WHERE task_id = $4
	`

	_, err := r.db.ExecContext(ctx, query, models.JobStatusFailed, errs, time.Now().UTC(), taskID)
	if err != nil {
		return fmt.Errorf("failed to mark import job failed: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *ImportJobRepository) scanJob(row rowScanner) (*models.ImportJob, error) {
	var job models.ImportJob
	err := row.Scan(
		&job.ID,
		&job.TaskID,
		&job.Filename,
		&job.Status,
		&job.TotalRows,
		&job.ProcessedRows,
		&job.Errors,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
