package models

import "time"

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"     // Created, waiting for a worker
	JobStatusInProgress JobStatus = "in_progress" // Being processed
	JobStatusCompleted  JobStatus = "completed"   // Finished, including runs with row errors
	JobStatusFailed     JobStatus = "failed"      // Aborted by a job-level failure
)

type ImportJob struct {
	ID            int64        `gorm:"column:id;primaryKey"`
	TaskID        string       `gorm:"column:task_id;uniqueIndex"`
	Filename      string       `gorm:"column:filename"`
	Status        JobStatus    `gorm:"column:status;index"`
	TotalRows     *int         `gorm:"column:total_rows"`
	ProcessedRows int          `gorm:"column:processed_rows"`
	Errors        JobErrorList `gorm:"column:errors;type:jsonb"`
	CreatedAt     time.Time    `gorm:"column:created_at"`
	UpdatedAt     time.Time    `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (ImportJob) TableName() string {
	return "import_jobs"
}
