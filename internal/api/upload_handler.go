package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"productimport/internal/models"
	"productimport/internal/progress"
	"productimport/internal/repository"
)

// UploadCSV accepts a product CSV, stores it under the upload directory,
// and creates a pending import job for the worker to pick up.
func (h *Handlers) UploadCSV(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file uploaded under 'file' field."})
		return
	}

	if err := h.validator.ValidateCSVUpload(file); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	if err := os.MkdirAll(h.cfg.UploadDir, 0o755); err != nil {
		zap.L().Error("Failed to create upload directory", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store uploaded file."})
		return
	}

	taskID := uuid.New().String()
	storedPath := filepath.Join(h.cfg.UploadDir, taskID+".csv")
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		zap.L().Error("Failed to save uploaded file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store uploaded file."})
		return
	}

	job := &models.ImportJob{
		TaskID:   taskID,
		Filename: file.Filename,
		Status:   models.JobStatusPending,
	}
	if err := h.importJobs.Create(c.Request.Context(), job); err != nil {
		zap.L().Error("Failed to create import job", zap.Error(err))
		os.Remove(storedPath)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create import job."})
		return
	}

	zap.L().Info("Import job queued",
		zap.String("task_id", taskID),
		zap.String("filename", file.Filename),
	)

	c.JSON(http.StatusAccepted, gin.H{"task_id": taskID, "job_id": job.ID})
}

// ImportProgress reports the persisted state of one import job, shaped
// exactly like the pushed progress payload.
func (h *Handlers) ImportProgress(c *gin.Context) {
	taskID := c.Param("taskID")

	job, err := h.importJobs.GetByTaskID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"task_id": taskID, "progress": nil})
			return
		}
		zap.L().Error("Failed to load import job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to load import job."})
		return
	}

	total := 0
	if job.TotalRows != nil {
		total = *job.TotalRows
	}

	payload := progress.Payload{
		Status:    string(job.Status),
		Processed: job.ProcessedRows,
		Total:     total,
		Percent:   progress.Percent(job.ProcessedRows, total),
		Errors:    len(job.Errors),
	}
	if job.Status == models.JobStatusCompleted {
		payload.Percent = 100
	}
	if len(job.Errors) > 0 && job.Status == models.JobStatusFailed {
		payload.Error = &job.Errors[0].Message
	}

	c.JSON(http.StatusOK, gin.H{"task_id": taskID, "progress": payload})
}
