package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "replypilot-backend/internal/auth/domain"
	authrepo "replypilot-backend/internal/auth/repository"
	emaildomain "replypilot-backend/internal/email/domain"
	emailrepo "replypilot-backend/internal/email/repository"
	ingestdomain "replypilot-backend/internal/ingest/domain"
	ingestrepo "replypilot-backend/internal/ingest/repository"
	jobdomain "replypilot-backend/internal/job/domain"
	settingsdomain "replypilot-backend/internal/settings/domain"
	settingsrepo "replypilot-backend/internal/settings/repository"
	"replypilot-backend/pkg/gauth"
	"replypilot-backend/pkg/gmail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeTokens struct{}

func (fakeTokens) Tokens(userID string) (string, string, error) { return "access", "refresh", nil }
func (fakeTokens) OnTokenRefresh(userID string) gauth.TokenUpdateFunc {
	return func(*oauth2.Token) error { return nil }
}

type fakeGmail struct {
	mu sync.Mutex

	// history maps startHistoryID to the delta returned for it.
	delta    *gmail.HistoryDelta
	deltaErr error

	messages    map[string]*emaildomain.Email
	failMessage string

	searchResults map[string][]*emaildomain.Email
	searchErr     error

	watchResult *gmail.WatchResult
	// watchFailOn makes the n-th Watch call fail (1-based).
	watchFailOn int

	listCalls  int
	watchCalls int
}

func (f *fakeGmail) ListHistory(ctx context.Context, access, refresh string, start uint64, cb gauth.TokenUpdateFunc) (*gmail.HistoryDelta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.deltaErr != nil {
		return nil, f.deltaErr
	}
	if f.delta == nil {
		return &gmail.HistoryDelta{}, nil
	}
	return f.delta, nil
}

func (f *fakeGmail) GetMessage(ctx context.Context, access, refresh, messageID string, cb gauth.TokenUpdateFunc) (*emaildomain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if messageID == f.failMessage {
		return nil, errors.New("message fetch failed")
	}
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, errors.New("unknown message")
	}
	clone := *msg
	return &clone, nil
}

func (f *fakeGmail) SearchMessages(ctx context.Context, access, refresh, query string, max int64, cb gauth.TokenUpdateFunc) ([]*emaildomain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []*emaildomain.Email
	for _, msg := range f.searchResults[query] {
		clone := *msg
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeGmail) Watch(ctx context.Context, access, refresh, topic string, cb gauth.TokenUpdateFunc) (*gmail.WatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchCalls++
	if f.watchFailOn == f.watchCalls {
		return nil, errors.New("watch registration failed")
	}
	if f.watchResult == nil {
		return &gmail.WatchResult{HistoryID: 1, Expiry: time.Now().Add(7 * 24 * time.Hour)}, nil
	}
	return f.watchResult, nil
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []*jobdomain.Job
}

func (f *fakeEnqueuer) Enqueue(queueName, kind, userID string, payload interface{}) (*jobdomain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := &jobdomain.Job{ID: "job-" + kind, QueueName: queueName, Kind: kind, UserID: userID}
	f.jobs = append(f.jobs, job)
	return job, nil
}

type ingestEnv struct {
	uc        IngestUsecase
	db        *gorm.DB
	gmail     *fakeGmail
	jobs      *fakeEnqueuer
	userRepo  authrepo.UserRepository
	emailRepo emailrepo.EmailRepository
	watchRepo ingestrepo.WatchStateRepository
}

func newIngestEnv(t *testing.T) *ingestEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&authdomain.User{}, &emaildomain.Thread{}, &emaildomain.Email{},
		&settingsdomain.FilterSettings{}, &ingestdomain.WatchState{}))

	env := &ingestEnv{
		db:        db,
		gmail:     &fakeGmail{messages: map[string]*emaildomain.Email{}, searchResults: map[string][]*emaildomain.Email{}},
		jobs:      &fakeEnqueuer{},
		userRepo:  authrepo.NewUserRepository(db),
		emailRepo: emailrepo.NewEmailRepository(db),
		watchRepo: ingestrepo.NewWatchStateRepository(db),
	}
	env.uc = NewIngestUsecase(
		env.userRepo, env.emailRepo, emailrepo.NewThreadRepository(db), env.watchRepo,
		settingsrepo.NewFilterSettingsRepository(db), env.gmail, fakeTokens{}, env.jobs,
		"gmail-updates", zap.NewNop())
	return env
}

func (env *ingestEnv) seedUser(t *testing.T, id, email string) {
	t.Helper()
	require.NoError(t, env.userRepo.Create(&authdomain.User{
		ID: id, Email: email, Provider: "google",
		AccessToken: "access", RefreshToken: "refresh",
	}))
}

func (env *ingestEnv) seedSettings(t *testing.T, settings *settingsdomain.FilterSettings) {
	t.Helper()
	require.NoError(t, env.db.Create(settings).Error)
}

func allSenders(userID string) *settingsdomain.FilterSettings {
	return &settingsdomain.FilterSettings{
		UserID:                  userID,
		ReplyScope:              settingsdomain.ReplyScopeAllSenders,
		EnablePushNotifications: true,
	}
}

func inbound(providerID, threadID, from string) *emaildomain.Email {
	return &emaildomain.Email{
		ProviderMessageID: providerID,
		ProviderThreadID:  threadID,
		FromAddress:       from,
		Subject:           "hello",
		Body:              "hi there",
		InternalDate:      time.Now(),
	}
}

func TestProcessNotificationUnknownMailbox(t *testing.T) {
	env := newIngestEnv(t)

	err := env.uc.ProcessNotification(context.Background(), "ghost@x.com", 50)
	require.NoError(t, err)
	assert.Zero(t, env.gmail.listCalls)
}

func TestProcessNotificationSeedsCursorWhenAbsent(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, allSenders("user-1"))

	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 40))

	state, err := env.watchRepo.Get("user-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, uint64(40), state.LastHistoryID)
	assert.Zero(t, env.gmail.listCalls)
}

func TestProcessNotificationStaleCursorIsNoOp(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, allSenders("user-1"))
	require.NoError(t, env.watchRepo.SaveWatch("user-1", 100, time.Now()))

	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 100))
	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 80))

	assert.Zero(t, env.gmail.listCalls)
	state, _ := env.watchRepo.Get("user-1")
	assert.Equal(t, uint64(100), state.LastHistoryID)
}

func TestProcessNotificationUpsertsAndEnqueues(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, allSenders("user-1"))
	require.NoError(t, env.watchRepo.SaveWatch("user-1", 100, time.Now()))

	env.gmail.messages["m1"] = inbound("m1", "t1", "a@x.com")
	env.gmail.messages["m2"] = inbound("m2", "t1", "b@x.com")
	env.gmail.delta = &gmail.HistoryDelta{AddedMessageIDs: []string{"m1", "m2"}, NewHistoryID: 160}

	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 150))

	stored, err := env.emailRepo.FindByProviderMessageID("user-1", "m1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ThreadID)

	// Cursor lands on max(delta cursor, delivered cursor).
	state, _ := env.watchRepo.Get("user-1")
	assert.Equal(t, uint64(160), state.LastHistoryID)

	require.Len(t, env.jobs.jobs, 2)
	assert.Equal(t, jobdomain.KindGenerateReply, env.jobs.jobs[0].Kind)
	assert.Equal(t, jobdomain.QueueGeneration, env.jobs.jobs[0].QueueName)
}

func TestProcessNotificationRedeliveryUpsertsExactlyOnce(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, allSenders("user-1"))
	require.NoError(t, env.watchRepo.SaveWatch("user-1", 100, time.Now()))

	env.gmail.messages["m1"] = inbound("m1", "t1", "a@x.com")
	env.gmail.delta = &gmail.HistoryDelta{AddedMessageIDs: []string{"m1"}, NewHistoryID: 150}

	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 150))
	// Same notification again: stale cursor, nothing re-fetched.
	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 150))

	var count int64
	env.db.Model(&emaildomain.Email{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Len(t, env.jobs.jobs, 1)
	assert.Equal(t, 1, env.gmail.listCalls)
}

func TestProcessNotificationPartialFailureLeavesCursor(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, allSenders("user-1"))
	require.NoError(t, env.watchRepo.SaveWatch("user-1", 100, time.Now()))

	env.gmail.messages["m1"] = inbound("m1", "t1", "a@x.com")
	env.gmail.messages["m2"] = inbound("m2", "t2", "b@x.com")
	env.gmail.failMessage = "m2"
	env.gmail.delta = &gmail.HistoryDelta{AddedMessageIDs: []string{"m1", "m2"}, NewHistoryID: 160}

	err := env.uc.ProcessNotification(context.Background(), "me@x.com", 150)
	require.Error(t, err)

	state, _ := env.watchRepo.Get("user-1")
	assert.Equal(t, uint64(100), state.LastHistoryID, "cursor must not advance past a failed fetch")

	// The retry closes the gap and the earlier upsert stays single.
	env.gmail.failMessage = ""
	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 150))

	var count int64
	env.db.Model(&emaildomain.Email{}).Count(&count)
	assert.Equal(t, int64(2), count)
	state, _ = env.watchRepo.Get("user-1")
	assert.Equal(t, uint64(160), state.LastHistoryID)
}

func TestProcessNotificationContactsOnlyGate(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, &settingsdomain.FilterSettings{
		UserID:                  "user-1",
		ReplyScope:              settingsdomain.ReplyScopeContactsOnly,
		AllowedSenders:          datatypes.JSONSlice[string]{"a@x.com"},
		EnablePushNotifications: true,
	})
	require.NoError(t, env.watchRepo.SaveWatch("user-1", 100, time.Now()))

	env.gmail.messages["m1"] = inbound("m1", "t1", "b@x.com")
	env.gmail.delta = &gmail.HistoryDelta{AddedMessageIDs: []string{"m1"}, NewHistoryID: 150}

	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 150))

	// Stored, but not routed into the pipeline.
	stored, _ := env.emailRepo.FindByProviderMessageID("user-1", "m1")
	assert.NotNil(t, stored)
	assert.Empty(t, env.jobs.jobs)
}

func TestProcessNotificationBlockedSenderNeverEnqueued(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, &settingsdomain.FilterSettings{
		UserID:                  "user-1",
		ReplyScope:              settingsdomain.ReplyScopeAllSenders,
		BlockedSenders:          datatypes.JSONSlice[string]{"spam@x.com"},
		AllowedSenders:          datatypes.JSONSlice[string]{"spam@x.com"},
		EnablePushNotifications: true,
	})
	require.NoError(t, env.watchRepo.SaveWatch("user-1", 100, time.Now()))

	env.gmail.messages["m1"] = inbound("m1", "t1", "spam@x.com")
	env.gmail.delta = &gmail.HistoryDelta{AddedMessageIDs: []string{"m1"}, NewHistoryID: 150}

	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 150))
	assert.Empty(t, env.jobs.jobs)
}

func TestProcessNotificationSentMessagesNotEnqueued(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, allSenders("user-1"))
	require.NoError(t, env.watchRepo.SaveWatch("user-1", 100, time.Now()))

	sent := inbound("m1", "t1", "me@x.com")
	sent.IsSent = true
	env.gmail.messages["m1"] = sent
	env.gmail.delta = &gmail.HistoryDelta{AddedMessageIDs: []string{"m1"}, NewHistoryID: 150}

	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 150))
	assert.Empty(t, env.jobs.jobs)
}

func TestProcessNotificationPushDisabled(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	env.seedSettings(t, &settingsdomain.FilterSettings{
		UserID:                  "user-1",
		ReplyScope:              settingsdomain.ReplyScopeAllSenders,
		EnablePushNotifications: false,
	})
	require.NoError(t, env.watchRepo.SaveWatch("user-1", 100, time.Now()))

	require.NoError(t, env.uc.ProcessNotification(context.Background(), "me@x.com", 150))
	assert.Zero(t, env.gmail.listCalls)
}

func TestFetchMailImportsAndSetsFlag(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")

	sent := inbound("s1", "t1", "me@x.com")
	sent.IsSent = true
	env.gmail.searchResults["in:sent"] = []*emaildomain.Email{sent}
	env.gmail.searchResults["in:inbox"] = []*emaildomain.Email{inbound("r1", "t2", "a@x.com")}

	imported, err := env.uc.FetchMail(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	user, err := env.userRepo.FindByID("user-1")
	require.NoError(t, err)
	assert.True(t, user.EmailsFetched)
}

func TestFetchMailSkipsWhenAlreadyFetched(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")
	require.NoError(t, env.userRepo.SetEmailsFetched("user-1", true))

	imported, err := env.uc.FetchMail(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, imported)
}

func TestFetchMailEmptyMailboxStillSetsFlag(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "me@x.com")

	imported, err := env.uc.FetchMail(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Zero(t, imported)

	user, err := env.userRepo.FindByID("user-1")
	require.NoError(t, err)
	assert.True(t, user.EmailsFetched)
}

func TestRenewAllIsolatesPerUserFailures(t *testing.T) {
	env := newIngestEnv(t)
	env.seedUser(t, "user-1", "one@x.com")
	env.seedUser(t, "user-2", "two@x.com")
	env.gmail.watchResult = &gmail.WatchResult{HistoryID: 7, Expiry: time.Now().Add(7 * 24 * time.Hour)}
	env.gmail.watchFailOn = 2

	summary := env.uc.RenewAll(context.Background())

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Results, 2)
	for _, result := range summary.Results {
		if !result.OK {
			assert.NotEmpty(t, result.Error)
		}
	}

	// The failing user does not stop the successful one from renewing.
	renewed := 0
	for _, id := range []string{"user-1", "user-2"} {
		state, err := env.watchRepo.Get(id)
		require.NoError(t, err)
		if state != nil {
			renewed++
			assert.Equal(t, uint64(7), state.LastHistoryID)
		}
	}
	assert.Equal(t, 1, renewed)
}
