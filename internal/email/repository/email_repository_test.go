package repository

import (
	"fmt"
	"testing"
	"time"

	emaildomain "replypilot-backend/internal/email/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&emaildomain.Thread{}, &emaildomain.Email{}, &emaildomain.GeneratedReply{}))
	return db
}

func inboundEmail(userID, providerID, from, subject, body string, when time.Time) *emaildomain.Email {
	return &emaildomain.Email{
		UserID:            userID,
		ProviderMessageID: providerID,
		FromAddress:       from,
		Subject:           subject,
		Body:              body,
		InternalDate:      when,
	}
}

func TestUpsertIsIdempotentByProviderMessageID(t *testing.T) {
	repo := NewEmailRepository(newTestDB(t))

	first := inboundEmail("user-1", "msg-1", "a@x.com", "hello", "body", time.Now())
	created, err := repo.Upsert(first)
	require.NoError(t, err)
	assert.True(t, created)

	redelivered := inboundEmail("user-1", "msg-1", "a@x.com", "hello", "body", time.Now())
	created, err = repo.Upsert(redelivered)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, redelivered.ID)

	found, err := repo.FindByProviderMessageID("user-1", "msg-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
}

func TestUpsertSameMessageDifferentUsers(t *testing.T) {
	repo := NewEmailRepository(newTestDB(t))

	created, err := repo.Upsert(inboundEmail("user-1", "msg-1", "a@x.com", "s", "b", time.Now()))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Upsert(inboundEmail("user-2", "msg-1", "a@x.com", "s", "b", time.Now()))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSearchFiltersAndOrdering(t *testing.T) {
	db := newTestDB(t)
	repo := NewEmailRepository(db)

	now := time.Now()
	_, err := repo.Upsert(inboundEmail("user-1", "m1", "boss@corp.com", "budget review", "numbers attached", now.Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = repo.Upsert(inboundEmail("user-1", "m2", "boss@corp.com", "budget follow-up", "updated numbers", now.Add(-1*time.Hour)))
	require.NoError(t, err)
	_, err = repo.Upsert(inboundEmail("user-1", "m3", "peer@corp.com", "lunch", "pizza?", now))
	require.NoError(t, err)

	results, err := repo.Search("user-1", emaildomain.HistoryQuery{
		Keywords:     []string{"budget"},
		SenderFilter: "Boss@corp.com",
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Recency descending
	assert.Equal(t, "m2", results[0].ProviderMessageID)
	assert.Equal(t, "m1", results[1].ProviderMessageID)
}

func TestSearchDateWindowAndCap(t *testing.T) {
	db := newTestDB(t)
	repo := NewEmailRepository(db)

	now := time.Now()
	for i := 0; i < 30; i++ {
		_, err := repo.Upsert(inboundEmail("user-1", fmt.Sprintf("m%d", i), "a@x.com", "report", "text", now.Add(-time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}
	_, err := repo.Upsert(inboundEmail("user-1", "old", "a@x.com", "report", "text", now.AddDate(0, 0, -30)))
	require.NoError(t, err)

	// Default cap applies when the query carries none.
	results, err := repo.Search("user-1", emaildomain.HistoryQuery{DateWindowDays: 7})
	require.NoError(t, err)
	assert.Len(t, results, 10)

	// Caller cap is honored up to the hard limit.
	results, err = repo.Search("user-1", emaildomain.HistoryQuery{MaxResults: 100})
	require.NoError(t, err)
	assert.Len(t, results, 31)
}

func TestCountSentAndRecentSent(t *testing.T) {
	db := newTestDB(t)
	repo := NewEmailRepository(db)

	now := time.Now()
	for i := 0; i < 5; i++ {
		email := inboundEmail("user-1", fmt.Sprintf("s%d", i), "me@x.com", "sent", "text", now.Add(-time.Duration(i)*time.Minute))
		email.IsSent = true
		_, err := repo.Upsert(email)
		require.NoError(t, err)
	}
	_, err := repo.Upsert(inboundEmail("user-1", "r1", "a@x.com", "received", "text", now))
	require.NoError(t, err)

	count, err := repo.CountSent("user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)

	recent, err := repo.RecentSent("user-1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "s0", recent[0].ProviderMessageID)
}

func TestGeneratedReplyFirstWriterWins(t *testing.T) {
	db := newTestDB(t)
	replyRepo := NewGeneratedReplyRepository(db)

	first := &emaildomain.GeneratedReply{EmailID: "email-1", UserID: "user-1", Draft: "first", Confidence: 80}
	stored, created, err := replyRepo.Create(first)
	require.NoError(t, err)
	assert.True(t, created)

	second := &emaildomain.GeneratedReply{EmailID: "email-1", UserID: "user-1", Draft: "second", Confidence: 10}
	storedAgain, created, err := replyRepo.Create(second)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, stored.ID, storedAgain.ID)
	assert.Equal(t, "first", storedAgain.Draft)
}

func TestThreadUpsertByProviderID(t *testing.T) {
	db := newTestDB(t)
	threadRepo := NewThreadRepository(db)

	first, err := threadRepo.UpsertByProviderID("user-1", "t-1", "planning")
	require.NoError(t, err)

	second, err := threadRepo.UpsertByProviderID("user-1", "t-1", "planning")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := threadRepo.UpsertByProviderID("user-2", "t-1", "planning")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}
