package usecase

import (
	"strings"

	settingsdomain "replypilot-backend/internal/settings/domain"
)

// ShouldAutoReply decides whether the sender is eligible for an
// auto-generated reply. A blocked sender never gets one, even when the
// same address also appears on the allow list.
func ShouldAutoReply(settings *settingsdomain.FilterSettings, senderAddress string) bool {
	sender := strings.ToLower(strings.TrimSpace(senderAddress))
	if sender == "" {
		return false
	}

	for _, blocked := range settings.BlockedSenders {
		if strings.EqualFold(strings.TrimSpace(blocked), sender) {
			return false
		}
	}

	switch settings.ReplyScope {
	case settingsdomain.ReplyScopeAllSenders:
		return true
	case settingsdomain.ReplyScopeContactsOnly:
		for _, allowed := range settings.AllowedSenders {
			if strings.EqualFold(strings.TrimSpace(allowed), sender) {
				return true
			}
		}
		return false
	}
	return false
}

// PushEnabled short-circuits notification processing before any
// per-sender evaluation.
func PushEnabled(settings *settingsdomain.FilterSettings) bool {
	return settings.EnablePushNotifications
}
