package domain

import "time"

// User owns every other entity. Tokens are the OAuth handle for the
// mail and calendar capabilities.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider"` // "google"
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`

	// EmailsFetched marks completion of the onboarding mail fetch,
	// even when zero messages were found.
	EmailsFetched bool `json:"emails_fetched"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
