package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Kind identifies a persona artifact family. All three kinds share the
// same versioned lifecycle.
type Kind string

const (
	KindStylePrompt      Kind = "style_prompt"
	KindPolicyRulebook   Kind = "policy_rulebook"
	KindInteractionGraph Kind = "interaction_graph"
)

// Kinds lists every artifact kind in onboarding order.
func Kinds() []Kind {
	return []Kind{KindStylePrompt, KindPolicyRulebook, KindInteractionGraph}
}

func (k Kind) Valid() bool {
	switch k {
	case KindStylePrompt, KindPolicyRulebook, KindInteractionGraph:
		return true
	}
	return false
}

// Artifact is one version of a persona artifact. For each (user, kind)
// at most one row is active; versions strictly increase.
type Artifact struct {
	ID      string `json:"id" gorm:"primaryKey"`
	UserID  string `json:"user_id" gorm:"uniqueIndex:ux_user_kind_version,priority:1;not null"`
	Kind    Kind   `json:"kind" gorm:"uniqueIndex:ux_user_kind_version,priority:2;not null"`
	Version int    `json:"version" gorm:"uniqueIndex:ux_user_kind_version,priority:3;not null"`

	IsActive bool   `json:"is_active" gorm:"index"`
	Content  string `json:"content" gorm:"type:text"`

	// IsGenerated distinguishes model-generated content from manual or
	// default content. Set at creation, never inferred from the text.
	IsGenerated bool `json:"is_generated"`

	CreatedAt time.Time `json:"created_at"`
}

// GraphEntry is one contact's record inside an interaction graph.
type GraphEntry struct {
	Address      string `json:"address"`
	Relationship string `json:"relationship,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Describe renders the entry as prompt text. Empty entries render empty.
func (e GraphEntry) Describe() string {
	if e.Address == "" {
		return ""
	}
	parts := []string{e.Address}
	if e.Relationship != "" {
		parts = append(parts, "relationship: "+e.Relationship)
	}
	if e.Tone != "" {
		parts = append(parts, "tone: "+e.Tone)
	}
	if e.Notes != "" {
		parts = append(parts, "notes: "+e.Notes)
	}
	return strings.Join(parts, "; ")
}

// GraphEntryForSender extracts the sender's entry from interaction
// graph content. Returns the zero value when the sender is unknown or
// the content does not parse.
func GraphEntryForSender(content, sender string) GraphEntry {
	var graph struct {
		Contacts []GraphEntry `json:"contacts"`
	}
	if err := json.Unmarshal([]byte(content), &graph); err != nil {
		return GraphEntry{}
	}
	for _, entry := range graph.Contacts {
		if strings.EqualFold(entry.Address, sender) {
			return entry
		}
	}
	return GraphEntry{}
}
