package domain

import (
	emaildomain "replypilot-backend/internal/email/domain"
)

// Intent classifies what the inbound email is asking for.
type Intent string

const (
	IntentScheduling         Intent = "scheduling"
	IntentInformationRequest Intent = "information_request"
	IntentProblemReport      Intent = "problem_report"
	IntentStatusUpdate       Intent = "status_update"
	IntentFollowUp           Intent = "follow_up"
	IntentOther              Intent = "other"
)

func (i Intent) Valid() bool {
	switch i {
	case IntentScheduling, IntentInformationRequest, IntentProblemReport,
		IntentStatusUpdate, IntentFollowUp, IntentOther:
		return true
	}
	return false
}

// Urgency is the scanner's urgency classification.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// CalendarParams carries the scanner's scheduling hints.
type CalendarParams struct {
	DateHint        string   `json:"dateHint,omitempty"`
	DurationMinutes int      `json:"durationMinutes,omitempty"`
	Attendees       []string `json:"attendees,omitempty"`
}

// ContextQuery tells the enricher what to look up in stored mail. All
// fields are optional.
type ContextQuery struct {
	Keywords       []string `json:"keywords,omitempty"`
	SenderFilter   string   `json:"senderFilter,omitempty"`
	DateWindowDays int      `json:"dateWindowDays,omitempty"`
	HasAttachment  bool     `json:"hasAttachment,omitempty"`
	MaxResults     int      `json:"maxResults,omitempty"`
}

// ToHistoryQuery converts the scanner's query into the repository filter.
func (q ContextQuery) ToHistoryQuery() emaildomain.HistoryQuery {
	return emaildomain.HistoryQuery{
		Keywords:       q.Keywords,
		SenderFilter:   q.SenderFilter,
		DateWindowDays: q.DateWindowDays,
		HasAttachment:  q.HasAttachment,
		MaxResults:     q.MaxResults,
	}
}

// ScannerOutput is the structured result of the first pipeline stage.
type ScannerOutput struct {
	PrimaryIntent      Intent          `json:"primaryIntent"`
	UrgencyLevel       Urgency         `json:"urgencyLevel"`
	NeedsCalendarCheck bool            `json:"needsCalendarCheck"`
	CalendarParams     *CalendarParams `json:"calendarParams,omitempty"`
	EmailContextQuery  ContextQuery    `json:"emailContextQuery"`
}

// DefaultScannerOutput is the degraded fallback when the model output
// stays malformed after a retry. It disables enrichment lookups so the
// pipeline can still generate a draft.
func DefaultScannerOutput() *ScannerOutput {
	return &ScannerOutput{
		PrimaryIntent: IntentOther,
		UrgencyLevel:  UrgencyMedium,
	}
}

// CalendarAvailabilityCheck summarizes free/busy for the hinted window.
type CalendarAvailabilityCheck struct {
	IsFree            bool     `json:"isFree"`
	ConflictingEvents []string `json:"conflictingEvents,omitempty"`
	SuggestedTimes    []string `json:"suggestedTimes,omitempty"`
	Attendees         []string `json:"attendees,omitempty"`
}

// ContextualInformation is the enricher's output: calendar data (when
// available), related stored mail, and a deterministic text summary.
type ContextualInformation struct {
	Calendar      *CalendarAvailabilityCheck
	RelatedEmails []*emaildomain.Email
	Summary       string
}

// FinalContextOutput is the generator's model response.
type FinalContextOutput struct {
	ContextualDraft  string   `json:"contextualDraft"`
	SuggestedActions []string `json:"suggestedActions"`
	ConfidenceScore  int      `json:"confidenceScore"`
	Reasoning        string   `json:"reasoning"`
	KeyFactsUsed     []string `json:"keyFactsUsed"`
}
