package delivery

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	ingestusecase "replypilot-backend/internal/ingest/usecase"
	jobdomain "replypilot-backend/internal/job/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// pushEnvelope is the Pub/Sub push delivery wrapper; Data carries the
// base64-encoded notification JSON.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// NotificationEnqueuer hands a decoded notification to the job queue so
// the ingress path never waits on provider calls.
type NotificationEnqueuer interface {
	Enqueue(queueName, kind, userID string, payload interface{}) (*jobdomain.Job, error)
}

// IngestHandler exposes the webhook and renewal endpoints.
type IngestHandler struct {
	ingest     ingestusecase.IngestUsecase
	jobs       NotificationEnqueuer
	cronSecret string
	logger     *zap.Logger
}

func NewIngestHandler(ingest ingestusecase.IngestUsecase, jobs NotificationEnqueuer, cronSecret string, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, jobs: jobs, cronSecret: cronSecret, logger: logger}
}

// HandleGmailNotification decodes the envelope, queues a processing job,
// and always acknowledges with 200 so the push subscription never enters
// a retry storm. Failures are logged only; the stored cursor lets a
// later notification close any gap.
func (h *IngestHandler) HandleGmailNotification(c *gin.Context) {
	var envelope pushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		h.logger.Warn("unreadable push envelope", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		h.logger.Warn("undecodable push payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	var notification jobdomain.NotificationPayload
	if err := json.Unmarshal(decoded, &notification); err != nil {
		h.logger.Warn("malformed notification payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	// The mailbox owner is resolved from the email address when the job
	// runs; the notification itself carries no authenticated identity.
	if _, err := h.jobs.Enqueue(jobdomain.QueueIngestion, jobdomain.KindProcessNotification, "", notification); err != nil {
		h.logger.Error("notification enqueue failed",
			zap.String("emailAddress", notification.EmailAddress),
			zap.Uint64("historyID", notification.HistoryID),
			zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "queued"})
}

// HandleRenewWatches is the scheduler-triggered renewal pass, guarded by
// a bearer secret instead of a user token.
func (h *IngestHandler) HandleRenewWatches(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if h.cronSecret == "" || token != h.cronSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid cron secret", "kind": "authentication"})
		return
	}

	summary := h.ingest.RenewAll(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}
