package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"productimport/internal/models"
	"productimport/internal/progress"
	"productimport/internal/repository"
)

type bulkDeleteRequest struct {
	Confirm       bool   `json:"confirm"`
	ConfirmPhrase string `json:"confirm_phrase"`
}

// BulkDelete removes all products. Small tables are deleted inline; larger
// ones get a pending deletion job for the worker.
func (h *Handlers) BulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body."})
		return
	}

	if !req.Confirm {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Confirmation required."})
		return
	}

	if h.cfg.DeleteConfirmPhrase != "" && strings.TrimSpace(req.ConfirmPhrase) != h.cfg.DeleteConfirmPhrase {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": fmt.Sprintf("Invalid confirmation phrase. Expected '%s'.", h.cfg.DeleteConfirmPhrase),
		})
		return
	}

	ctx := c.Request.Context()

	total, err := h.products.Count(ctx)
	if err != nil {
		zap.L().Error("Failed to count products", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to count products."})
		return
	}

	if total == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "completed", "deleted": 0})
		return
	}

	if total < int64(h.cfg.BulkDeleteThreshold) {
		deleted, err := h.products.DeleteAll(ctx)
		if err != nil {
			zap.L().Error("Failed to delete products", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete products."})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "completed", "deleted": deleted})
		return
	}

	job := &models.DeletionJob{
		Status:     models.JobStatusPending,
		TotalCount: int(total),
	}
	if err := h.deletionJobs.Create(ctx, job); err != nil {
		zap.L().Error("Failed to create deletion job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create deletion job."})
		return
	}

	zap.L().Info("Deletion job queued",
		zap.Int64("job_id", job.ID),
		zap.Int64("total", total),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"status": "queued",
		"job_id": job.ID,
		"total":  total,
	})
}

// DeletionProgress reports the persisted state of one deletion job.
func (h *Handlers) DeletionProgress(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid job id."})
		return
	}

	job, err := h.deletionJobs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"job_id": id, "progress": nil})
			return
		}
		zap.L().Error("Failed to load deletion job", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to load deletion job."})
		return
	}

	payload := progress.Payload{
		Status:    string(job.Status),
		Processed: job.DeletedCount,
		Total:     job.TotalCount,
		Percent:   progress.Percent(job.DeletedCount, job.TotalCount),
		Errors:    len(job.Errors),
	}
	if len(job.Errors) > 0 {
		payload.Error = &job.Errors[0].Message
	}

	c.JSON(http.StatusOK, gin.H{"job_id": id, "progress": payload})
}
