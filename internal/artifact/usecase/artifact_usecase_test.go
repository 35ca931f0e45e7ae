package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	artifactdomain "replypilot-backend/internal/artifact/domain"
	artifactrepo "replypilot-backend/internal/artifact/repository"
	emaildomain "replypilot-backend/internal/email/domain"
	emailrepo "replypilot-backend/internal/email/repository"
	"replypilot-backend/internal/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeAIClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (f *fakeAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "generated content", nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

func newTestEnv(t *testing.T) (ArtifactUsecase, *fakeAIClient, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&artifactdomain.Artifact{}, &emaildomain.Email{}))

	client := &fakeAIClient{}
	uc := NewArtifactUsecase(
		artifactrepo.NewArtifactRepository(db),
		emailrepo.NewEmailRepository(db),
		client, 20, zap.NewNop())
	return uc, client, db
}

func seedSentEmails(t *testing.T, db *gorm.DB, userID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		require.NoError(t, db.Create(&emaildomain.Email{
			ID:                fmt.Sprintf("%s-sent-%d", userID, i),
			UserID:            userID,
			ProviderMessageID: fmt.Sprintf("msg-%s-%d", userID, i),
			ToAddress:         "peer@example.com",
			Subject:           "weekly sync",
			Body:              "see you there",
			IsSent:            true,
			InternalDate:      time.Now().Add(-time.Duration(i) * time.Hour),
		}).Error)
	}
}

func TestEligibilityBelowThreshold(t *testing.T) {
	uc, _, db := newTestEnv(t)
	seedSentEmails(t, db, "user-1", 3)

	eligibility, err := uc.Eligibility("user-1")
	require.NoError(t, err)

	assert.False(t, eligibility.CanGenerate)
	assert.Equal(t, int64(3), eligibility.EmailCount)
	assert.Equal(t, 20, eligibility.MinimumRequired)
}

func TestGenerateAndActivateInsufficientData(t *testing.T) {
	uc, client, db := newTestEnv(t)
	seedSentEmails(t, db, "user-1", 3)

	_, err := uc.GenerateAndActivate(context.Background(), "user-1", artifactdomain.KindStylePrompt)
	require.Error(t, err)

	var insufficient *errs.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 20, insufficient.Required)
	assert.Equal(t, 3, insufficient.Actual)
	assert.Zero(t, client.calls)
}

func TestGenerateAndActivateStylePrompt(t *testing.T) {
	uc, client, db := newTestEnv(t)
	seedSentEmails(t, db, "user-1", 25)
	client.responses = []string{"Open with Hi. Keep it short."}

	artifact, err := uc.GenerateAndActivate(context.Background(), "user-1", artifactdomain.KindStylePrompt)
	require.NoError(t, err)

	assert.Equal(t, 1, artifact.Version)
	assert.True(t, artifact.IsActive)
	assert.True(t, artifact.IsGenerated)
	assert.Equal(t, "Open with Hi. Keep it short.", artifact.Content)
}

func TestGenerateAndActivateExtractsJSONForRulebook(t *testing.T) {
	uc, client, db := newTestEnv(t)
	seedSentEmails(t, db, "user-1", 25)
	client.responses = []string{"```json\n{\"rules\": [{\"situation\": \"scheduling\", \"guidance\": \"offer two slots\"}]}\n```"}

	artifact, err := uc.GenerateAndActivate(context.Background(), "user-1", artifactdomain.KindPolicyRulebook)
	require.NoError(t, err)
	assert.Equal(t, `{"rules": [{"situation": "scheduling", "guidance": "offer two slots"}]}`, artifact.Content)
}

func TestGenerateAndActivateSkipsWhenAlreadyGenerated(t *testing.T) {
	uc, client, db := newTestEnv(t)
	seedSentEmails(t, db, "user-1", 25)

	first, err := uc.GenerateAndActivate(context.Background(), "user-1", artifactdomain.KindStylePrompt)
	require.NoError(t, err)
	callsAfterFirst := client.calls

	second, err := uc.GenerateAndActivate(context.Background(), "user-1", artifactdomain.KindStylePrompt)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, callsAfterFirst, client.calls)
}

func TestManualActivationDoesNotBlockGeneration(t *testing.T) {
	uc, _, db := newTestEnv(t)
	seedSentEmails(t, db, "user-1", 25)

	manual, err := uc.ActivateContent("user-1", artifactdomain.KindStylePrompt, "manual style")
	require.NoError(t, err)
	assert.False(t, manual.IsGenerated)

	// Manual content is not "already generated": the onboarding flow
	// still runs the model and supersedes it.
	generated, err := uc.GenerateAndActivate(context.Background(), "user-1", artifactdomain.KindStylePrompt)
	require.NoError(t, err)
	assert.Equal(t, 2, generated.Version)
	assert.True(t, generated.IsGenerated)
}

func TestConcurrentActivationsKeepSingleActive(t *testing.T) {
	uc, _, db := newTestEnv(t)
	repo := artifactrepo.NewArtifactRepository(db)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := uc.ActivateContent("user-1", artifactdomain.KindStylePrompt, fmt.Sprintf("content %d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	count, err := repo.CountActive("user-1", artifactdomain.KindStylePrompt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	active, err := repo.GetActive("user-1", artifactdomain.KindStylePrompt)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, 10, active.Version)
}

func TestGenerateRejectsUnknownKind(t *testing.T) {
	uc, _, _ := newTestEnv(t)

	_, err := uc.GenerateAndActivate(context.Background(), "user-1", artifactdomain.Kind("mood_board"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
