package models

import "time"

type DeletionJob struct {
	ID           int64        `gorm:"column:id;primaryKey"`
	UserID       *int64       `gorm:"column:user_id"`
	Status       JobStatus    `gorm:"column:status;index"`
	TotalCount   int          `gorm:"column:total_count"`
	DeletedCount int          `gorm:"column:deleted_count"`
	Errors       JobErrorList `gorm:"column:errors;type:jsonb"`
	CreatedAt    time.Time    `gorm:"column:created_at"`
	UpdatedAt    time.Time    `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (DeletionJob) TableName() string {
	return "deletion_jobs"
}
