package usecase

import (
	"fmt"
	"strings"

	artifactdomain "replypilot-backend/internal/artifact/domain"
	emaildomain "replypilot-backend/internal/email/domain"
)

const stylePromptTemplate = `You are analyzing a user's sent emails to capture their personal writing style.

Study the emails below and produce a concise style guide covering:
- Greeting and sign-off habits
- Typical sentence length and formality
- Vocabulary quirks and recurring phrases
- How they handle requests, scheduling, and disagreement

Write the guide as direct instructions ("Open with ...", "Keep sentences ...").
Return only the style guide text.

SENT EMAILS:
%s`

const rulebookTemplate = `You are deriving reply-policy rules from a user's sent emails.

Study the emails below and produce a JSON object:
{"rules": [{"situation": "...", "guidance": "..."}]}

Cover: which requests they accept or decline, escalation habits, topics
they defer, and commitments they avoid making on someone's behalf.
Return only the JSON object.

SENT EMAILS:
%s`

const interactionGraphTemplate = `You are mapping a user's correspondents from their sent emails.

Study the emails below and produce a JSON object:
{"contacts": [{"address": "...", "relationship": "...", "tone": "...", "notes": "..."}]}

One entry per distinct recipient address, lowercase. Keep notes short.
Return only the JSON object.

SENT EMAILS:
%s`

func buildGenerationPrompt(kind artifactdomain.Kind, emails []*emaildomain.Email) string {
	var sb strings.Builder
	for i, email := range emails {
		fmt.Fprintf(&sb, "--- Email %d ---\nTo: %s\nSubject: %s\n%s\n\n", i+1, email.ToAddress, email.Subject, truncate(email.Body, 1500))
	}
	sample := sb.String()
	if sample == "" {
		sample = "(no emails available)"
	}

	switch kind {
	case artifactdomain.KindPolicyRulebook:
		return fmt.Sprintf(rulebookTemplate, sample)
	case artifactdomain.KindInteractionGraph:
		return fmt.Sprintf(interactionGraphTemplate, sample)
	default:
		return fmt.Sprintf(stylePromptTemplate, sample)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
