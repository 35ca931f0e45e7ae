package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	emaildomain "replypilot-backend/internal/email/domain"
	emailrepo "replypilot-backend/internal/email/repository"
	pipelinedomain "replypilot-backend/internal/pipeline/domain"
	"replypilot-backend/pkg/calendar"
	"replypilot-backend/pkg/gauth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeCalendar struct {
	busy []calendar.BusyInterval
	err  error
}

func (f *fakeCalendar) FreeBusy(ctx context.Context, access, refresh string, from, to time.Time, cb gauth.TokenUpdateFunc) ([]calendar.BusyInterval, error) {
	return f.busy, f.err
}

func newEnricherEnv(t *testing.T, cal *fakeCalendar) (*Enricher, emailrepo.EmailRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&emaildomain.Email{}))

	repo := emailrepo.NewEmailRepository(db)
	return NewEnricher(cal, repo, fakeTokens{}, zap.NewNop()), repo
}

func TestEnrichCalendarFailureIsNonFatal(t *testing.T) {
	enricher, _ := newEnricherEnv(t, &fakeCalendar{err: errors.New("calendar down")})

	info, err := enricher.Enrich(context.Background(), "user-1", &pipelinedomain.ScannerOutput{
		NeedsCalendarCheck: true,
	})
	require.NoError(t, err)

	assert.Nil(t, info.Calendar)
	assert.Empty(t, info.RelatedEmails)
}

func TestEnrichFreeWindow(t *testing.T) {
	enricher, _ := newEnricherEnv(t, &fakeCalendar{})

	info, err := enricher.Enrich(context.Background(), "user-1", &pipelinedomain.ScannerOutput{
		NeedsCalendarCheck: true,
		CalendarParams:     &pipelinedomain.CalendarParams{DateHint: "2026-09-03", DurationMinutes: 30},
	})
	require.NoError(t, err)

	require.NotNil(t, info.Calendar)
	assert.True(t, info.Calendar.IsFree)
	assert.NotEmpty(t, info.Calendar.SuggestedTimes)
	assert.Contains(t, info.Summary, "free")
}

func TestEnrichBusyWindowReportsConflicts(t *testing.T) {
	day := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	enricher, _ := newEnricherEnv(t, &fakeCalendar{busy: []calendar.BusyInterval{
		{Start: day.Add(14 * time.Hour), End: day.Add(15 * time.Hour)},
	}})

	info, err := enricher.Enrich(context.Background(), "user-1", &pipelinedomain.ScannerOutput{
		NeedsCalendarCheck: true,
		CalendarParams:     &pipelinedomain.CalendarParams{DateHint: "2026-09-03", DurationMinutes: 60},
	})
	require.NoError(t, err)

	require.NotNil(t, info.Calendar)
	assert.False(t, info.Calendar.IsFree)
	assert.Len(t, info.Calendar.ConflictingEvents, 1)
	assert.NotEmpty(t, info.Calendar.SuggestedTimes)
	assert.Contains(t, info.Summary, "conflicts")
}

func TestEnrichCarriesAttendeesIntoSummary(t *testing.T) {
	enricher, _ := newEnricherEnv(t, &fakeCalendar{})

	info, err := enricher.Enrich(context.Background(), "user-1", &pipelinedomain.ScannerOutput{
		NeedsCalendarCheck: true,
		CalendarParams: &pipelinedomain.CalendarParams{
			DateHint:        "2026-09-03",
			DurationMinutes: 30,
			Attendees:       []string{"a@x.com", "b@x.com"},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, info.Calendar)
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, info.Calendar.Attendees)
	assert.Contains(t, info.Summary, "Requested attendees: a@x.com, b@x.com")
}

func TestEnrichIncludesRelatedMail(t *testing.T) {
	enricher, repo := newEnricherEnv(t, &fakeCalendar{})

	_, err := repo.Upsert(&emaildomain.Email{
		UserID:            "user-1",
		ProviderMessageID: "m1",
		FromAddress:       "a@x.com",
		Subject:           "project alpha status",
		Snippet:           "alpha is on track",
		InternalDate:      time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)

	info, err := enricher.Enrich(context.Background(), "user-1", &pipelinedomain.ScannerOutput{
		EmailContextQuery: pipelinedomain.ContextQuery{Keywords: []string{"alpha"}},
	})
	require.NoError(t, err)

	require.Len(t, info.RelatedEmails, 1)
	assert.Contains(t, info.Summary, "alpha is on track")
	assert.Contains(t, info.Summary, "received from a@x.com")
}

func TestEnrichEmptyFindingsEmptySummary(t *testing.T) {
	enricher, _ := newEnricherEnv(t, &fakeCalendar{})

	info, err := enricher.Enrich(context.Background(), "user-1", pipelinedomain.DefaultScannerOutput())
	require.NoError(t, err)
	assert.Empty(t, info.Summary)
}

func TestSuggestSlotsAvoidBusyIntervals(t *testing.T) {
	from := time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	busy := []calendar.BusyInterval{
		{Start: from, End: from.Add(2 * time.Hour)},
	}

	slots := suggestSlots(from, to, time.Hour, busy)
	require.Len(t, slots, 3)
	assert.Equal(t, "Thu Sep 3 11:00", slots[0])
}
