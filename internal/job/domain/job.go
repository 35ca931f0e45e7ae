package domain

import (
	"time"

	"gorm.io/datatypes"
)

// State is the job lifecycle: queued -> active -> completed | failed.
type State string

const (
	StateQueued    State = "queued"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Queue names. Status queries reject unknown queues.
const (
	QueueOnboarding = "onboarding"
	QueueGeneration = "generation"
	QueueIngestion  = "ingestion"
)

// Kind tags the payload shape; the registry maps each kind to its
// handler.
const (
	KindProcessNotification = "process_notification"
	KindGenerateReply       = "generate_reply"
	KindOnboarding          = "onboarding"
	KindGenerateArtifact    = "generate_artifact"
	KindFetchMail           = "fetch_mail"
)

// Job is a durable unit of background work. UserID mirrors the payload
// owner and backs the status-query ownership check.
type Job struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	QueueName string         `json:"queue_name" gorm:"index;not null"`
	Kind      string         `json:"kind" gorm:"index;not null"`
	UserID    string         `json:"user_id" gorm:"index"`
	Payload   datatypes.JSON `json:"payload"`

	State        State          `json:"state" gorm:"index;default:queued"`
	Progress     int            `json:"progress"`
	Attempts     int            `json:"attempts"`
	FailedReason string         `json:"failed_reason,omitempty"`
	ReturnValue  datatypes.JSON `json:"return_value,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// KnownQueue reports whether the queue name exists.
func KnownQueue(name string) bool {
	switch name {
	case QueueOnboarding, QueueGeneration, QueueIngestion:
		return true
	}
	return false
}

// NotificationPayload triggers a delta fetch for a mailbox.
type NotificationPayload struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// GenerateReplyPayload runs the generation pipeline for one email.
type GenerateReplyPayload struct {
	UserID  string `json:"userId"`
	EmailID string `json:"emailId"`
}

// OnboardingPayload bootstraps persona artifacts for a user.
type OnboardingPayload struct {
	UserID string `json:"userId"`
}

// FetchMailPayload imports the user's mail history. Chain marks the
// onboarding step, which enqueues style-prompt generation on completion.
type FetchMailPayload struct {
	UserID string `json:"userId"`
	Chain  bool   `json:"chain,omitempty"`
}

// ArtifactPayload generates and activates one persona artifact. Chain
// marks the onboarding style-prompt step, which fans out the remaining
// artifact kinds on completion.
type ArtifactPayload struct {
	UserID string `json:"userId"`
	Kind   string `json:"kind"`
	Chain  bool   `json:"chain,omitempty"`
}
