package repository

import (
	"errors"
	"time"

	jobdomain "replypilot-backend/internal/job/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobRepository defines the interface for durable job records
type JobRepository interface {
	Create(job *jobdomain.Job) error
	FindByID(id string) (*jobdomain.Job, error)
	Update(job *jobdomain.Job) error

	// ClaimNext atomically moves the oldest queued job to active and
	// returns it, or nil when the queues are empty.
	ClaimNext(queues []string) (*jobdomain.Job, error)
}

// jobRepository implements JobRepository using GORM
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new instance of jobRepository
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *jobdomain.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.State == "" {
		job.State = jobdomain.StateQueued
	}
	job.CreatedAt = time.Now()
	return r.db.Create(job).Error
}

func (r *jobRepository) FindByID(id string) (*jobdomain.Job, error) {
	var job jobdomain.Job
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) Update(job *jobdomain.Job) error {
	return r.db.Save(job).Error
}

func (r *jobRepository) ClaimNext(queues []string) (*jobdomain.Job, error) {
	// Optimistic claim loop: the guarded update only succeeds for one
	// worker, so concurrent workers never run the same job.
	for i := 0; i < 5; i++ {
		var job jobdomain.Job
		err := r.db.Where("queue_name IN ? AND state = ?", queues, jobdomain.StateQueued).
			Order("created_at ASC").First(&job).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}

		now := time.Now()
		result := r.db.Model(&jobdomain.Job{}).
			Where("id = ? AND state = ?", job.ID, jobdomain.StateQueued).
			Updates(map[string]interface{}{
				"state":      jobdomain.StateActive,
				"started_at": now,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 1 {
			job.State = jobdomain.StateActive
			job.StartedAt = &now
			return &job, nil
		}
		// Lost the claim race; try the next queued job.
	}
	return nil, nil
}
