package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ReplyScope controls which senders are eligible for auto-reply.
type ReplyScope string

const (
	ReplyScopeAllSenders   ReplyScope = "ALL_SENDERS"
	ReplyScopeContactsOnly ReplyScope = "CONTACTS_ONLY"
)

// FilterSettings is the per-user auto-reply policy. When no row exists
// the defaults apply: CONTACTS_ONLY scope with push enabled.
type FilterSettings struct {
	UserID                  string                      `json:"user_id" gorm:"primaryKey"`
	ReplyScope              ReplyScope                  `json:"reply_scope" gorm:"default:CONTACTS_ONLY"`
	BlockedSenders          datatypes.JSONSlice[string] `json:"blocked_senders"`
	AllowedSenders          datatypes.JSONSlice[string] `json:"allowed_senders"`
	EnablePushNotifications bool                        `json:"enable_push_notifications" gorm:"default:true"`
	CreatedAt               time.Time                   `json:"created_at"`
	UpdatedAt               time.Time                   `json:"updated_at"`
}

// Defaults returns the settings applied when the user has no row.
func Defaults(userID string) *FilterSettings {
	return &FilterSettings{
		UserID:                  userID,
		ReplyScope:              ReplyScopeContactsOnly,
		EnablePushNotifications: true,
	}
}
