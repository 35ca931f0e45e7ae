package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	emaildomain "replypilot-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// defaultSearchLimit bounds enrichment queries that carry no
	// explicit cap; hardSearchLimit bounds all of them.
	defaultSearchLimit = 10
	hardSearchLimit    = 50
)

// emailRepository implements EmailRepository using GORM
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new instance of emailRepository
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

func (r *emailRepository) Upsert(email *emaildomain.Email) (bool, error) {
	if email.ID == "" {
		email.ID = uuid.New().String()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now()
	}

	var existing emaildomain.Email
	result := r.db.Where("user_id = ? AND provider_message_id = ?", email.UserID, email.ProviderMessageID).
		Attrs(email).FirstOrCreate(&existing)
	if result.Error != nil {
		return false, result.Error
	}

	// RowsAffected == 0 means the row already existed; keep it as-is
	// (emails are immutable once stored).
	if result.RowsAffected == 0 {
		*email = existing
		return false, nil
	}
	return true, nil
}

func (r *emailRepository) FindByID(id string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("id = ?", id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) FindByProviderMessageID(userID, providerMessageID string) (*emaildomain.Email, error) {
	var email emaildomain.Email
	err := r.db.Where("user_id = ? AND provider_message_id = ?", userID, providerMessageID).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &email, nil
}

func (r *emailRepository) Search(userID string, query emaildomain.HistoryQuery) ([]*emaildomain.Email, error) {
	limit := query.MaxResults
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > hardSearchLimit {
		limit = hardSearchLimit
	}

	q := r.db.Model(&emaildomain.Email{}).Where("user_id = ?", userID)

	if query.SenderFilter != "" {
		q = q.Where("from_address = ?", strings.ToLower(query.SenderFilter))
	}
	if query.DateWindowDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -query.DateWindowDays)
		q = q.Where("internal_date >= ?", cutoff)
	}
	if query.HasAttachment {
		q = q.Where("has_attachments = ?", true)
	}
	for _, kw := range query.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		pattern := fmt.Sprintf("%%%s%%", strings.ToLower(kw))
		q = q.Where("(LOWER(subject) LIKE ? OR LOWER(body) LIKE ?)", pattern, pattern)
	}

	var emails []*emaildomain.Email
	err := q.Order("internal_date DESC").Limit(limit).Find(&emails).Error
	return emails, err
}

func (r *emailRepository) CountSent(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&emaildomain.Email{}).
		Where("user_id = ? AND is_sent = ?", userID, true).
		Count(&count).Error
	return count, err
}

func (r *emailRepository) RecentSent(userID string, limit int) ([]*emaildomain.Email, error) {
	var emails []*emaildomain.Email
	err := r.db.Where("user_id = ? AND is_sent = ?", userID, true).
		Order("internal_date DESC").Limit(limit).Find(&emails).Error
	return emails, err
}
