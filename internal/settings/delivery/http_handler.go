package delivery

import (
	"net/http"

	"replypilot-backend/internal/errs"
	settingsdomain "replypilot-backend/internal/settings/domain"
	"replypilot-backend/internal/settings/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// SettingsHandler exposes the auto-reply filter settings surface.
type SettingsHandler struct {
	settingsRepo repository.FilterSettingsRepository
}

func NewSettingsHandler(settingsRepo repository.FilterSettingsRepository) *SettingsHandler {
	return &SettingsHandler{settingsRepo: settingsRepo}
}

// GetFilters returns the user's settings; defaults apply when no row
// exists yet.
func (h *SettingsHandler) GetFilters(c *gin.Context) {
	userID := c.GetString("userID")
	settings, err := h.settingsRepo.Get(userID)
	if err != nil {
		status, kind := errs.HTTPStatus(err)
		c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateFiltersRequest struct {
	ReplyScope              string   `json:"reply_scope" binding:"required"`
	BlockedSenders          []string `json:"blocked_senders"`
	AllowedSenders          []string `json:"allowed_senders"`
	EnablePushNotifications *bool    `json:"enable_push_notifications" binding:"required"`
}

// UpdateFilters replaces the user's settings.
func (h *SettingsHandler) UpdateFilters(c *gin.Context) {
	userID := c.GetString("userID")

	var req updateFiltersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": "validation"})
		return
	}

	scope := settingsdomain.ReplyScope(req.ReplyScope)
	if scope != settingsdomain.ReplyScopeAllSenders && scope != settingsdomain.ReplyScopeContactsOnly {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reply_scope must be ALL_SENDERS or CONTACTS_ONLY", "kind": "validation"})
		return
	}

	settings := &settingsdomain.FilterSettings{
		UserID:                  userID,
		ReplyScope:              scope,
		BlockedSenders:          datatypes.JSONSlice[string](req.BlockedSenders),
		AllowedSenders:          datatypes.JSONSlice[string](req.AllowedSenders),
		EnablePushNotifications: *req.EnablePushNotifications,
	}
	if err := h.settingsRepo.Save(settings); err != nil {
		status, kind := errs.HTTPStatus(err)
		c.JSON(status, gin.H{"error": err.Error(), "kind": kind})
		return
	}
	c.JSON(http.StatusOK, settings)
}
