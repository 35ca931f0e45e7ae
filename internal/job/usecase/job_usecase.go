package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"replypilot-backend/internal/errs"
	jobdomain "replypilot-backend/internal/job/domain"
	"replypilot-backend/internal/job/repository"
	"replypilot-backend/pkg/retry"

	"go.uber.org/zap"
)

// Handler executes one job kind. The returned value is recorded on the
// job record; a non-nil error fails the job after the retry budget.
type Handler func(ctx context.Context, job *jobdomain.Job) (interface{}, error)

// JobUsecase enqueues durable jobs, runs them on a worker pool, and
// answers owner-scoped status queries.
type JobUsecase interface {
	Register(kind string, handler Handler)
	Enqueue(queueName, kind, userID string, payload interface{}) (*jobdomain.Job, error)
	Status(jobID, queueName, requesterID string) (*jobdomain.Job, error)
	Start()
	Stop()
}

type jobUsecase struct {
	jobRepo     repository.JobRepository
	logger      *zap.Logger
	workerCount int
	retryPolicy retry.Policy
	jobTimeout  time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	pollInterval time.Duration
	stopChan     chan struct{}
	workerWg     sync.WaitGroup
	started      bool
	startMu      sync.Mutex
}

func NewJobUsecase(jobRepo repository.JobRepository, workerCount, maxAttempts int, logger *zap.Logger) JobUsecase {
	if workerCount <= 0 {
		workerCount = 3
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &jobUsecase{
		jobRepo:      jobRepo,
		logger:       logger,
		workerCount:  workerCount,
		retryPolicy:  retry.Policy{MaxAttempts: uint64(maxAttempts), BaseDelay: time.Second},
		jobTimeout:   5 * time.Minute,
		handlers:     make(map[string]Handler),
		pollInterval: time.Second,
		stopChan:     make(chan struct{}),
	}
}

func (u *jobUsecase) Register(kind string, handler Handler) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.handlers[kind] = handler
}

func (u *jobUsecase) Enqueue(queueName, kind, userID string, payload interface{}) (*jobdomain.Job, error) {
	if !jobdomain.KnownQueue(queueName) {
		return nil, fmt.Errorf("%w: unknown queue %q", errs.ErrValidation, queueName)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: unmarshalable payload: %v", errs.ErrValidation, err)
	}

	job := &jobdomain.Job{
		QueueName: queueName,
		Kind:      kind,
		UserID:    userID,
		Payload:   raw,
		State:     jobdomain.StateQueued,
	}
	if err := u.jobRepo.Create(job); err != nil {
		return nil, err
	}

	u.logger.Info("job enqueued",
		zap.String("jobID", job.ID),
		zap.String("queue", queueName),
		zap.String("kind", kind),
		zap.String("userID", userID))
	return job, nil
}

func (u *jobUsecase) Status(jobID, queueName, requesterID string) (*jobdomain.Job, error) {
	if !jobdomain.KnownQueue(queueName) {
		return nil, fmt.Errorf("%w: unknown queue %q", errs.ErrNotFound, queueName)
	}

	job, err := u.jobRepo.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.QueueName != queueName {
		return nil, errs.ErrNotFound
	}
	// Ownership check: the job's payload owner must be the requester.
	if job.UserID != requesterID {
		return nil, errs.ErrForbidden
	}
	return job, nil
}

func (u *jobUsecase) Start() {
	u.startMu.Lock()
	defer u.startMu.Unlock()
	if u.started {
		return
	}

	for i := 0; i < u.workerCount; i++ {
		u.workerWg.Add(1)
		go u.worker(i)
	}
	u.started = true
	u.logger.Info("job workers started", zap.Int("count", u.workerCount))
}

func (u *jobUsecase) Stop() {
	close(u.stopChan)
	u.workerWg.Wait()
	u.logger.Info("job workers stopped")
}

func (u *jobUsecase) worker(id int) {
	defer u.workerWg.Done()

	queues := []string{jobdomain.QueueIngestion, jobdomain.QueueGeneration, jobdomain.QueueOnboarding}
	ticker := time.NewTicker(u.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for {
				job, err := u.jobRepo.ClaimNext(queues)
				if err != nil {
					u.logger.Error("claim failed", zap.Int("worker", id), zap.Error(err))
					break
				}
				if job == nil {
					break
				}
				u.execute(job)
			}
		case <-u.stopChan:
			return
		}
	}
}

func (u *jobUsecase) execute(job *jobdomain.Job) {
	u.mu.RLock()
	handler, ok := u.handlers[job.Kind]
	u.mu.RUnlock()

	if !ok {
		u.fail(job, fmt.Sprintf("no handler registered for kind %q", job.Kind))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), u.jobTimeout)
	defer cancel()

	var returnValue interface{}
	err := retry.Do(ctx, u.retryPolicy, func(ctx context.Context) error {
		job.Attempts++
		out, err := handler(ctx, job)
		if err != nil {
			u.logger.Warn("job attempt failed",
				zap.String("jobID", job.ID),
				zap.String("kind", job.Kind),
				zap.Int("attempt", job.Attempts),
				zap.Error(err))
			return err
		}
		returnValue = out
		return nil
	})
	if err != nil {
		u.fail(job, err.Error())
		return
	}

	now := time.Now()
	job.State = jobdomain.StateCompleted
	job.Progress = 100
	job.FinishedAt = &now
	if returnValue != nil {
		if raw, err := json.Marshal(returnValue); err == nil {
			job.ReturnValue = raw
		}
	}
	if err := u.jobRepo.Update(job); err != nil {
		u.logger.Error("failed to persist job completion", zap.String("jobID", job.ID), zap.Error(err))
		return
	}
	u.logger.Info("job completed", zap.String("jobID", job.ID), zap.String("kind", job.Kind))
}

// fail records the terminal failure; jobs are never silently dropped.
func (u *jobUsecase) fail(job *jobdomain.Job, reason string) {
	now := time.Now()
	job.State = jobdomain.StateFailed
	job.FailedReason = reason
	job.FinishedAt = &now
	if err := u.jobRepo.Update(job); err != nil {
		u.logger.Error("failed to persist job failure", zap.String("jobID", job.ID), zap.Error(err))
		return
	}
	u.logger.Warn("job failed",
		zap.String("jobID", job.ID),
		zap.String("kind", job.Kind),
		zap.String("reason", reason))
}
