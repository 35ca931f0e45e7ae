package repository

import (
	"errors"
	"time"

	emaildomain "replypilot-backend/internal/email/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// generatedReplyRepository implements GeneratedReplyRepository using GORM
type generatedReplyRepository struct {
	db *gorm.DB
}

// NewGeneratedReplyRepository creates a new instance of generatedReplyRepository
func NewGeneratedReplyRepository(db *gorm.DB) GeneratedReplyRepository {
	return &generatedReplyRepository{db: db}
}

func (r *generatedReplyRepository) Create(reply *emaildomain.GeneratedReply) (*emaildomain.GeneratedReply, bool, error) {
	if reply.ID == "" {
		reply.ID = uuid.New().String()
	}
	reply.CreatedAt = time.Now()

	// The unique index on email_id is the final backstop against two
	// pipelines generating for the same email: the second insert is a
	// no-op and the first writer's row is returned.
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email_id"}},
		DoNothing: true,
	}).Create(reply)
	if result.Error != nil {
		return nil, false, result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := r.FindByEmailID(reply.EmailID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return reply, true, nil
}

func (r *generatedReplyRepository) FindByEmailID(emailID string) (*emaildomain.GeneratedReply, error) {
	var reply emaildomain.GeneratedReply
	err := r.db.Where("email_id = ?", emailID).First(&reply).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reply, nil
}
