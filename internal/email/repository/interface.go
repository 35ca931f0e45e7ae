package repository

import (
	emaildomain "replypilot-backend/internal/email/domain"
)

// EmailRepository defines the interface for stored mail access
type EmailRepository interface {
	// Upsert stores the email keyed by (user, provider message id).
	// Safe under at-least-once re-delivery; reports whether a row was
	// created.
	Upsert(email *emaildomain.Email) (created bool, err error)

	FindByID(id string) (*emaildomain.Email, error)
	FindByProviderMessageID(userID, providerMessageID string) (*emaildomain.Email, error)

	// Search filters the user's stored mail (sent and received) for
	// context enrichment: recency descending, deduplicated by provider
	// message id, capped at query.MaxResults.
	Search(userID string, query emaildomain.HistoryQuery) ([]*emaildomain.Email, error)

	// CountSent reports how many sent emails are stored for the user.
	CountSent(userID string) (int64, error)

	// RecentSent returns up to limit sent emails, newest first. Used to
	// aggregate history for persona artifact generation.
	RecentSent(userID string, limit int) ([]*emaildomain.Email, error)
}

// ThreadRepository defines the interface for thread data access
type ThreadRepository interface {
	// UpsertByProviderID finds or creates the thread for the provider
	// conversation id and returns its local id.
	UpsertByProviderID(userID, providerThreadID, subject string) (*emaildomain.Thread, error)
}

// GeneratedReplyRepository defines the interface for reply drafts
type GeneratedReplyRepository interface {
	// Create inserts the reply unless one already exists for the email.
	// First writer wins: on conflict the existing row is returned with
	// created=false and the new row is discarded.
	Create(reply *emaildomain.GeneratedReply) (stored *emaildomain.GeneratedReply, created bool, err error)

	FindByEmailID(emailID string) (*emaildomain.GeneratedReply, error)
}
