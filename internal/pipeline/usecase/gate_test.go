package usecase

import (
	"testing"

	settingsdomain "replypilot-backend/internal/settings/domain"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestShouldAutoReplyBlockTakesPrecedence(t *testing.T) {
	settings := &settingsdomain.FilterSettings{
		ReplyScope:     settingsdomain.ReplyScopeAllSenders,
		BlockedSenders: datatypes.JSONSlice[string]{"spam@x.com"},
		AllowedSenders: datatypes.JSONSlice[string]{"spam@x.com"},
	}

	// Blocked wins even when the same address is on the allow list.
	assert.False(t, ShouldAutoReply(settings, "spam@x.com"))
	assert.False(t, ShouldAutoReply(settings, "SPAM@X.COM"))
	assert.True(t, ShouldAutoReply(settings, "friend@x.com"))
}

func TestShouldAutoReplyAllSenders(t *testing.T) {
	settings := &settingsdomain.FilterSettings{
		ReplyScope: settingsdomain.ReplyScopeAllSenders,
	}

	assert.True(t, ShouldAutoReply(settings, "anyone@anywhere.com"))
	assert.False(t, ShouldAutoReply(settings, ""))
}

func TestShouldAutoReplyContactsOnly(t *testing.T) {
	settings := &settingsdomain.FilterSettings{
		ReplyScope:     settingsdomain.ReplyScopeContactsOnly,
		AllowedSenders: datatypes.JSONSlice[string]{"a@x.com"},
	}

	assert.True(t, ShouldAutoReply(settings, "a@x.com"))
	assert.True(t, ShouldAutoReply(settings, "A@x.com"))
	// Not on the allow list: no implicit contact inference.
	assert.False(t, ShouldAutoReply(settings, "b@x.com"))
}

func TestShouldAutoReplyDefaultsAreContactsOnly(t *testing.T) {
	settings := settingsdomain.Defaults("user-1")

	assert.False(t, ShouldAutoReply(settings, "stranger@x.com"))
	assert.True(t, PushEnabled(settings))
}
