package usecase

import (
	"context"
	"fmt"
	"time"

	authrepo "replypilot-backend/internal/auth/repository"
	emaildomain "replypilot-backend/internal/email/domain"
	emailrepo "replypilot-backend/internal/email/repository"
	ingestdomain "replypilot-backend/internal/ingest/domain"
	ingestrepo "replypilot-backend/internal/ingest/repository"
	jobdomain "replypilot-backend/internal/job/domain"
	pipelineusecase "replypilot-backend/internal/pipeline/usecase"
	settingsdomain "replypilot-backend/internal/settings/domain"
	settingsrepo "replypilot-backend/internal/settings/repository"
	"replypilot-backend/pkg/gauth"
	"replypilot-backend/pkg/gmail"

	"go.uber.org/zap"
)

// fetchBatchSize bounds the initial mail import per mailbox section.
const fetchBatchSize = 100

// GmailClient is the slice of the Gmail capability the ingest flow uses.
type GmailClient interface {
	ListHistory(ctx context.Context, accessToken, refreshToken string, startHistoryID uint64, onTokenRefresh gauth.TokenUpdateFunc) (*gmail.HistoryDelta, error)
	GetMessage(ctx context.Context, accessToken, refreshToken, messageID string, onTokenRefresh gauth.TokenUpdateFunc) (*emaildomain.Email, error)
	SearchMessages(ctx context.Context, accessToken, refreshToken, query string, maxResults int64, onTokenRefresh gauth.TokenUpdateFunc) ([]*emaildomain.Email, error)
	Watch(ctx context.Context, accessToken, refreshToken, topicName string, onTokenRefresh gauth.TokenUpdateFunc) (*gmail.WatchResult, error)
}

// JobEnqueuer decouples ingestion from the job orchestrator.
type JobEnqueuer interface {
	Enqueue(queueName, kind, userID string, payload interface{}) (*jobdomain.Job, error)
}

// IngestUsecase turns push notifications into stored mail and routes
// eligible inbound messages into the reply pipeline.
type IngestUsecase interface {
	// ProcessNotification applies one mailbox change notification.
	// Unknown addresses and stale cursors are no-ops.
	ProcessNotification(ctx context.Context, emailAddress string, historyID uint64) error

	// RenewAll re-registers the push watch for every user with provider
	// tokens. Per-user failures are isolated.
	RenewAll(ctx context.Context) *ingestdomain.RenewalSummary

	// FetchMail imports the user's recent sent and received mail. Skipped
	// when the user already completed the import.
	FetchMail(ctx context.Context, userID string) (imported int, err error)
}

type ingestUsecase struct {
	userRepo     authrepo.UserRepository
	emailRepo    emailrepo.EmailRepository
	threadRepo   emailrepo.ThreadRepository
	watchRepo    ingestrepo.WatchStateRepository
	settingsRepo settingsrepo.FilterSettingsRepository
	gmailClient  GmailClient
	tokens       pipelineusecase.TokenProvider
	jobs         JobEnqueuer
	topicName    string
	logger       *zap.Logger
}

func NewIngestUsecase(
	userRepo authrepo.UserRepository,
	emailRepo emailrepo.EmailRepository,
	threadRepo emailrepo.ThreadRepository,
	watchRepo ingestrepo.WatchStateRepository,
	settingsRepo settingsrepo.FilterSettingsRepository,
	gmailClient GmailClient,
	tokens pipelineusecase.TokenProvider,
	jobs JobEnqueuer,
	topicName string,
	logger *zap.Logger,
) IngestUsecase {
	return &ingestUsecase{
		userRepo:     userRepo,
		emailRepo:    emailRepo,
		threadRepo:   threadRepo,
		watchRepo:    watchRepo,
		settingsRepo: settingsRepo,
		gmailClient:  gmailClient,
		tokens:       tokens,
		jobs:         jobs,
		topicName:    topicName,
		logger:       logger,
	}
}

func (u *ingestUsecase) ProcessNotification(ctx context.Context, emailAddress string, historyID uint64) error {
	user, err := u.userRepo.FindByEmail(emailAddress)
	if err != nil {
		return err
	}
	if user == nil {
		u.logger.Info("notification for unknown mailbox dropped", zap.String("emailAddress", emailAddress))
		return nil
	}

	settings, err := u.settingsRepo.Get(user.ID)
	if err != nil {
		return err
	}
	if !pipelineusecase.PushEnabled(settings) {
		u.logger.Debug("push processing disabled for user", zap.String("userID", user.ID))
		return nil
	}

	state, err := u.watchRepo.Get(user.ID)
	if err != nil {
		return err
	}
	if state == nil {
		// No baseline cursor yet: seed from the incoming notification and
		// let the next one compute a delta.
		u.logger.Info("seeding watch cursor",
			zap.String("userID", user.ID),
			zap.Uint64("historyID", historyID))
		return u.watchRepo.SaveWatch(user.ID, historyID, time.Time{})
	}
	if historyID <= state.LastHistoryID {
		// Duplicate or out-of-order delivery; the stored cursor already
		// covers it.
		u.logger.Debug("stale notification ignored",
			zap.String("userID", user.ID),
			zap.Uint64("incoming", historyID),
			zap.Uint64("stored", state.LastHistoryID))
		return nil
	}

	access, refresh, err := u.tokens.Tokens(user.ID)
	if err != nil {
		return err
	}
	onRefresh := u.tokens.OnTokenRefresh(user.ID)

	// Always fetch from the persisted cursor, not the delivered one, so
	// gaps between notifications are closed.
	delta, err := u.gmailClient.ListHistory(ctx, access, refresh, state.LastHistoryID, onRefresh)
	if err != nil {
		return err
	}

	for _, messageID := range delta.AddedMessageIDs {
		if err := u.storeMessage(ctx, user.ID, settings, access, refresh, messageID, onRefresh); err != nil {
			// Cursor stays put; redelivery retries the whole delta and the
			// upserts absorb what already landed.
			return fmt.Errorf("store message %s: %w", messageID, err)
		}
	}

	newCursor := delta.NewHistoryID
	if historyID > newCursor {
		newCursor = historyID
	}
	advanced, err := u.watchRepo.AdvanceCursor(user.ID, newCursor)
	if err != nil {
		return err
	}
	u.logger.Info("notification processed",
		zap.String("userID", user.ID),
		zap.Int("messages", len(delta.AddedMessageIDs)),
		zap.Uint64("cursor", newCursor),
		zap.Bool("advanced", advanced))
	return nil
}

func (u *ingestUsecase) storeMessage(ctx context.Context, userID string, settings *settingsdomain.FilterSettings, access, refresh, messageID string, onRefresh gauth.TokenUpdateFunc) error {
	email, err := u.gmailClient.GetMessage(ctx, access, refresh, messageID, onRefresh)
	if err != nil {
		return err
	}
	email.UserID = userID

	created, err := u.upsertWithThread(userID, email)
	if err != nil {
		return err
	}
	if !created || email.IsSent {
		return nil
	}

	if !pipelineusecase.ShouldAutoReply(settings, email.FromAddress) {
		u.logger.Debug("sender not eligible for auto-reply",
			zap.String("userID", userID),
			zap.String("sender", email.FromAddress))
		return nil
	}

	job, err := u.jobs.Enqueue(jobdomain.QueueGeneration, jobdomain.KindGenerateReply, userID,
		jobdomain.GenerateReplyPayload{UserID: userID, EmailID: email.ID})
	if err != nil {
		return err
	}
	u.logger.Info("reply generation enqueued",
		zap.String("userID", userID),
		zap.String("emailID", email.ID),
		zap.String("jobID", job.ID))
	return nil
}

func (u *ingestUsecase) upsertWithThread(userID string, email *emaildomain.Email) (bool, error) {
	if email.ProviderThreadID != "" {
		thread, err := u.threadRepo.UpsertByProviderID(userID, email.ProviderThreadID, email.Subject)
		if err != nil {
			return false, err
		}
		email.ThreadID = thread.ID
	}
	return u.emailRepo.Upsert(email)
}

func (u *ingestUsecase) RenewAll(ctx context.Context) *ingestdomain.RenewalSummary {
	summary := &ingestdomain.RenewalSummary{Timestamp: time.Now()}

	users, err := u.userRepo.FindWithTokens()
	if err != nil {
		u.logger.Error("renewal aborted, cannot list users", zap.Error(err))
		return summary
	}
	summary.Total = len(users)

	for _, user := range users {
		result := ingestdomain.RenewalResult{UserID: user.ID, Email: user.Email}
		if err := u.renewOne(ctx, user.ID, user.AccessToken, user.RefreshToken); err != nil {
			result.Error = err.Error()
			summary.Failed++
			u.logger.Warn("watch renewal failed",
				zap.String("userID", user.ID),
				zap.Error(err))
		} else {
			result.OK = true
			summary.Successful++
		}
		summary.Results = append(summary.Results, result)
	}

	u.logger.Info("watch renewal pass finished",
		zap.Int("total", summary.Total),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed))
	return summary
}

func (u *ingestUsecase) renewOne(ctx context.Context, userID, access, refresh string) error {
	result, err := u.gmailClient.Watch(ctx, access, refresh, u.topicName, u.tokens.OnTokenRefresh(userID))
	if err != nil {
		return err
	}
	return u.watchRepo.SaveWatch(userID, result.HistoryID, result.Expiry)
}

func (u *ingestUsecase) FetchMail(ctx context.Context, userID string) (int, error) {
	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, fmt.Errorf("user %s not found", userID)
	}
	if user.EmailsFetched {
		u.logger.Info("mail already fetched, skipping import", zap.String("userID", userID))
		return 0, nil
	}

	access, refresh, err := u.tokens.Tokens(userID)
	if err != nil {
		return 0, err
	}
	onRefresh := u.tokens.OnTokenRefresh(userID)

	imported := 0
	for _, query := range []string{"in:sent", "in:inbox"} {
		emails, err := u.gmailClient.SearchMessages(ctx, access, refresh, query, fetchBatchSize, onRefresh)
		if err != nil {
			return imported, err
		}
		for _, email := range emails {
			email.UserID = userID
			created, err := u.upsertWithThread(userID, email)
			if err != nil {
				return imported, err
			}
			if created {
				imported++
			}
		}
	}

	// The flag flips even for an empty mailbox so onboarding never loops.
	if err := u.userRepo.SetEmailsFetched(userID, true); err != nil {
		return imported, err
	}
	u.logger.Info("mail import finished",
		zap.String("userID", userID),
		zap.Int("imported", imported))
	return imported, nil
}
