package usecase

import (
	"fmt"
	"strings"

	emaildomain "replypilot-backend/internal/email/domain"
	pipelinedomain "replypilot-backend/internal/pipeline/domain"
)

// defaultStylePrompt substitutes for a missing active style artifact so
// generation never blocks on onboarding state.
const defaultStylePrompt = `Write in a clear, professional, friendly tone.
Open with a short greeting, keep paragraphs to two or three sentences,
and close with "Best regards".`

const scanPromptTemplate = `You are triaging an inbound email for an automated reply assistant.

Classify the email below and respond with ONLY a JSON object:
{
  "primaryIntent": "scheduling" | "information_request" | "problem_report" | "status_update" | "follow_up" | "other",
  "urgencyLevel": "low" | "medium" | "high",
  "needsCalendarCheck": boolean,
  "calendarParams": {"dateHint": "YYYY-MM-DD", "durationMinutes": number, "attendees": [string]},
  "emailContextQuery": {"keywords": [string], "senderFilter": string, "dateWindowDays": number, "hasAttachment": boolean, "maxResults": number}
}

Set needsCalendarCheck true only when the email proposes or asks about a
meeting time. Omit calendarParams otherwise. Keep keywords to the few
terms most likely to find related past emails.

EMAIL:
From: %s <%s>
Subject: %s
Body:
%s`

const generatePromptTemplate = `You are drafting an email reply on the user's behalf.

WRITING STYLE:
%s

REPLY POLICY:
%s

ABOUT THIS SENDER:
%s

CONTEXT:
%s

EMAIL TO ANSWER:
From: %s <%s>
Subject: %s
Body:
%s

Respond with ONLY a JSON object:
{
  "contextualDraft": "the full reply text",
  "suggestedActions": [string],
  "confidenceScore": number between 0 and 100,
  "reasoning": "one or two sentences on how the context shaped the draft",
  "keyFactsUsed": [string]
}`

func buildScanPrompt(email *emaildomain.Email) string {
	return fmt.Sprintf(scanPromptTemplate,
		email.FromName, email.FromAddress, email.Subject, clip(email.Body, 4000))
}

func buildGeneratePrompt(email *emaildomain.Email, stylePrompt, rulebook, senderEntry string, info *pipelinedomain.ContextualInformation) string {
	if strings.TrimSpace(rulebook) == "" {
		rulebook = "(no policy rules recorded)"
	}
	if strings.TrimSpace(senderEntry) == "" {
		senderEntry = "(no prior relationship recorded)"
	}
	summary := info.Summary
	if strings.TrimSpace(summary) == "" {
		summary = "(no additional context found)"
	}
	return fmt.Sprintf(generatePromptTemplate,
		stylePrompt, rulebook, senderEntry, summary,
		email.FromName, email.FromAddress, email.Subject, clip(email.Body, 4000))
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
