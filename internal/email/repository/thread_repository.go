package repository

import (
	"time"

	emaildomain "replypilot-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// threadRepository implements ThreadRepository using GORM
type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository creates a new instance of threadRepository
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) UpsertByProviderID(userID, providerThreadID, subject string) (*emaildomain.Thread, error) {
	now := time.Now()
	thread := emaildomain.Thread{
		ID:               uuid.New().String(),
		UserID:           userID,
		ProviderThreadID: providerThreadID,
		Subject:          subject,
		LastMessageAt:    now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var existing emaildomain.Thread
	result := r.db.Where("user_id = ? AND provider_thread_id = ?", userID, providerThreadID).
		Attrs(thread).FirstOrCreate(&existing)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		// Existing thread: bump recency
		existing.LastMessageAt = now
		existing.UpdatedAt = now
		if err := r.db.Save(&existing).Error; err != nil {
			return nil, err
		}
	}
	return &existing, nil
}
