package domain

import "time"

// WatchState is the per-user delta cursor and push-subscription expiry.
// LastHistoryID never decreases: the delta processor advances it after a
// successful fetch and the renewal routine only seeds it when absent.
type WatchState struct {
	UserID        string    `json:"user_id" gorm:"primaryKey"`
	LastHistoryID uint64    `json:"last_history_id"`
	Expiry        time.Time `json:"expiry"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RenewalResult is the outcome of re-registering one user's watch.
type RenewalResult struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// RenewalSummary reports one pass of the watch renewal routine.
type RenewalSummary struct {
	Total      int             `json:"total"`
	Successful int             `json:"successful"`
	Failed     int             `json:"failed"`
	Timestamp  time.Time       `json:"timestamp"`
	Results    []RenewalResult `json:"results"`
}
