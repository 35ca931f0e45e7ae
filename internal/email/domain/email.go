package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Thread groups emails by the provider's conversation id.
type Thread struct {
	ID               string    `json:"id" gorm:"primaryKey"`
	UserID           string    `json:"user_id" gorm:"uniqueIndex:ux_user_thread,priority:1;not null"`
	ProviderThreadID string    `json:"provider_thread_id" gorm:"uniqueIndex:ux_user_thread,priority:2;not null"`
	Subject          string    `json:"subject"`
	LastMessageAt    time.Time `json:"last_message_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Email is immutable once stored. ProviderMessageID is the idempotent
// upsert key: re-delivered notifications re-upsert the same row.
type Email struct {
	ID                string    `json:"id" gorm:"primaryKey"`
	UserID            string    `json:"user_id" gorm:"uniqueIndex:ux_user_message,priority:1;not null"`
	ThreadID          string    `json:"thread_id" gorm:"index"`
	ProviderMessageID string    `json:"provider_message_id" gorm:"uniqueIndex:ux_user_message,priority:2;not null"`
	ProviderThreadID  string    `json:"provider_thread_id" gorm:"index"`
	FromAddress       string    `json:"from_address" gorm:"index"`
	FromName          string    `json:"from_name"`
	ToAddress         string    `json:"to_address"`
	Subject           string    `json:"subject"`
	Snippet           string    `json:"snippet"`
	Body              string    `json:"body" gorm:"type:text"`
	IsSent            bool      `json:"is_sent" gorm:"index"`
	HasAttachments    bool      `json:"has_attachments"`
	InternalDate      time.Time `json:"internal_date" gorm:"index"`
	CreatedAt         time.Time `json:"created_at"`
}

// GeneratedReply holds the drafted reply for an email. At most one row
// per email; created once and never mutated afterwards.
type GeneratedReply struct {
	ID               string                      `json:"id" gorm:"primaryKey"`
	EmailID          string                      `json:"email_id" gorm:"uniqueIndex;not null"`
	UserID           string                      `json:"user_id" gorm:"index;not null"`
	Draft            string                      `json:"draft" gorm:"type:text"`
	Confidence       int                         `json:"confidence"`
	Reasoning        string                      `json:"reasoning" gorm:"type:text"`
	SuggestedActions datatypes.JSONSlice[string] `json:"suggested_actions"`
	KeyFacts         datatypes.JSONSlice[string] `json:"key_facts"`
	LowConfidence    bool                        `json:"low_confidence"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// HistoryQuery filters the user's stored mail for context enrichment.
type HistoryQuery struct {
	Keywords       []string
	SenderFilter   string
	DateWindowDays int
	HasAttachment  bool
	MaxResults     int
}
