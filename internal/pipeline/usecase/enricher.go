package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	emaildomain "replypilot-backend/internal/email/domain"
	emailrepo "replypilot-backend/internal/email/repository"
	pipelinedomain "replypilot-backend/internal/pipeline/domain"
	"replypilot-backend/pkg/calendar"
	"replypilot-backend/pkg/gauth"

	"go.uber.org/zap"
)

const defaultMeetingMinutes = 60

// TokenProvider resolves the user's provider OAuth tokens and the
// callback that persists rotated ones.
type TokenProvider interface {
	Tokens(userID string) (accessToken, refreshToken string, err error)
	OnTokenRefresh(userID string) gauth.TokenUpdateFunc
}

// CalendarClient is the availability lookup the enricher depends on.
type CalendarClient interface {
	FreeBusy(ctx context.Context, accessToken, refreshToken string, from, to time.Time, onTokenRefresh calendar.TokenUpdateFunc) ([]calendar.BusyInterval, error)
}

// Enricher is pipeline stage 2a: it resolves the scanner's context query
// against calendar availability and stored mail. No model calls happen
// here; the summary is assembled deterministically.
type Enricher struct {
	calendarClient CalendarClient
	emailRepo      emailrepo.EmailRepository
	tokens         TokenProvider
	logger         *zap.Logger
}

func NewEnricher(calendarClient CalendarClient, emailRepo emailrepo.EmailRepository, tokens TokenProvider, logger *zap.Logger) *Enricher {
	return &Enricher{
		calendarClient: calendarClient,
		emailRepo:      emailRepo,
		tokens:         tokens,
		logger:         logger,
	}
}

// Enrich gathers context for the draft generator. Calendar failures are
// non-fatal: the calendar section is simply omitted. Mail lookup errors
// propagate because they indicate a broken data store, not a degraded
// upstream.
func (e *Enricher) Enrich(ctx context.Context, userID string, scanOut *pipelinedomain.ScannerOutput) (*pipelinedomain.ContextualInformation, error) {
	info := &pipelinedomain.ContextualInformation{}

	if scanOut.NeedsCalendarCheck {
		check, err := e.checkAvailability(ctx, userID, scanOut.CalendarParams)
		if err != nil {
			e.logger.Warn("calendar check failed, continuing without availability",
				zap.String("userID", userID),
				zap.Error(err))
		} else {
			info.Calendar = check
		}
	}

	emails, err := e.emailRepo.Search(userID, scanOut.EmailContextQuery.ToHistoryQuery())
	if err != nil {
		return nil, err
	}
	info.RelatedEmails = dedupByProviderID(emails)

	info.Summary = buildSummary(info)
	return info, nil
}

func (e *Enricher) checkAvailability(ctx context.Context, userID string, params *pipelinedomain.CalendarParams) (*pipelinedomain.CalendarAvailabilityCheck, error) {
	access, refresh, err := e.tokens.Tokens(userID)
	if err != nil {
		return nil, err
	}

	from := time.Now()
	duration := defaultMeetingMinutes
	if params != nil {
		if params.DateHint != "" {
			if parsed, err := time.Parse("2006-01-02", params.DateHint); err == nil {
				from = parsed
			}
		}
		if params.DurationMinutes > 0 {
			duration = params.DurationMinutes
		}
	}
	from = from.Truncate(time.Hour)
	to := from.Add(24 * time.Hour)

	busy, err := e.calendarClient.FreeBusy(ctx, access, refresh, from, to, e.tokens.OnTokenRefresh(userID))
	if err != nil {
		return nil, err
	}

	check := &pipelinedomain.CalendarAvailabilityCheck{IsFree: len(busy) == 0}
	if params != nil {
		check.Attendees = params.Attendees
	}
	for _, interval := range busy {
		check.ConflictingEvents = append(check.ConflictingEvents,
			fmt.Sprintf("busy %s - %s",
				interval.Start.Format("Mon Jan 2 15:04"),
				interval.End.Format("15:04")))
	}
	check.SuggestedTimes = suggestSlots(from, to, time.Duration(duration)*time.Minute, busy)
	return check, nil
}

// suggestSlots walks the window on the hour and keeps the first three
// starts whose slot does not overlap any busy interval.
func suggestSlots(from, to time.Time, slot time.Duration, busy []calendar.BusyInterval) []string {
	var suggestions []string
	for start := from; start.Add(slot).Before(to) || start.Add(slot).Equal(to); start = start.Add(time.Hour) {
		end := start.Add(slot)
		conflict := false
		for _, b := range busy {
			if start.Before(b.End) && b.Start.Before(end) {
				conflict = true
				break
			}
		}
		if !conflict {
			suggestions = append(suggestions, start.Format("Mon Jan 2 15:04"))
			if len(suggestions) == 3 {
				break
			}
		}
	}
	return suggestions
}

func dedupByProviderID(emails []*emaildomain.Email) []*emaildomain.Email {
	seen := make(map[string]bool, len(emails))
	out := emails[:0]
	for _, email := range emails {
		if seen[email.ProviderMessageID] {
			continue
		}
		seen[email.ProviderMessageID] = true
		out = append(out, email)
	}
	return out
}

// buildSummary is plain string assembly so enrichment stays cheap and
// side-effect-free.
func buildSummary(info *pipelinedomain.ContextualInformation) string {
	var sb strings.Builder

	if info.Calendar != nil {
		if info.Calendar.IsFree {
			sb.WriteString("Calendar: the requested window is free.\n")
		} else {
			sb.WriteString("Calendar: the requested window has conflicts:\n")
			for _, event := range info.Calendar.ConflictingEvents {
				sb.WriteString("  - " + event + "\n")
			}
		}
		if len(info.Calendar.SuggestedTimes) > 0 {
			sb.WriteString("Available alternatives: " + strings.Join(info.Calendar.SuggestedTimes, "; ") + "\n")
		}
		if len(info.Calendar.Attendees) > 0 {
			sb.WriteString("Requested attendees: " + strings.Join(info.Calendar.Attendees, ", ") + "\n")
		}
	}

	if len(info.RelatedEmails) > 0 {
		sb.WriteString("Related past emails:\n")
		for _, email := range info.RelatedEmails {
			direction := "received from"
			counterpart := email.FromAddress
			if email.IsSent {
				direction = "sent to"
				counterpart = email.ToAddress
			}
			fmt.Fprintf(&sb, "  - [%s] %s %s: %s\n",
				email.InternalDate.Format("2006-01-02"), direction, counterpart,
				clip(firstNonEmpty(email.Snippet, email.Subject), 200))
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
