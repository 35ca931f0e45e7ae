package delivery

import (
	"net/http"

	"replypilot-backend/internal/errs"
	jobdomain "replypilot-backend/internal/job/domain"
	"replypilot-backend/internal/job/usecase"

	"github.com/gin-gonic/gin"
)

// JobHandler exposes job submission and owner-scoped status queries.
type JobHandler struct {
	jobUsecase usecase.JobUsecase
}

func NewJobHandler(jobUsecase usecase.JobUsecase) *JobHandler {
	return &JobHandler{jobUsecase: jobUsecase}
}

// GetStatus answers ?jobId=&queue= for the authenticated owner.
func (h *JobHandler) GetStatus(c *gin.Context) {
	jobID := c.Query("jobId")
	queueName := c.Query("queue")
	if jobID == "" || queueName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "jobId and queue are required", "kind": "validation"})
		return
	}

	job, err := h.jobUsecase.Status(jobID, queueName, c.GetString("userID"))
	if err != nil {
		status, kind := errs.HTTPStatus(err)
		c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"state":        job.State,
		"progress":     job.Progress,
		"failedReason": job.FailedReason,
		"returnValue":  job.ReturnValue,
		"createdAt":    job.CreatedAt,
		"startedAt":    job.StartedAt,
		"finishedAt":   job.FinishedAt,
	})
}

// StartOnboarding enqueues the composite onboarding job and returns the
// job id immediately: accepted, not completed.
func (h *JobHandler) StartOnboarding(c *gin.Context) {
	userID := c.GetString("userID")
	job, err := h.jobUsecase.Enqueue(jobdomain.QueueOnboarding, jobdomain.KindOnboarding, userID,
		jobdomain.OnboardingPayload{UserID: userID})
	if err != nil {
		status, kind := errs.HTTPStatus(err)
		c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"jobId": job.ID, "queue": job.QueueName})
}
