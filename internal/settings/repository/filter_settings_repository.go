package repository

import (
	"errors"
	"time"

	settingsdomain "replypilot-backend/internal/settings/domain"

	"gorm.io/gorm"
)

// FilterSettingsRepository defines the interface for filter settings access
type FilterSettingsRepository interface {
	// Get returns the user's settings, or the defaults when absent.
	Get(userID string) (*settingsdomain.FilterSettings, error)
	Save(settings *settingsdomain.FilterSettings) error
}

// filterSettingsRepository implements FilterSettingsRepository using GORM
type filterSettingsRepository struct {
	db *gorm.DB
}

// NewFilterSettingsRepository creates a new instance of filterSettingsRepository
func NewFilterSettingsRepository(db *gorm.DB) FilterSettingsRepository {
	return &filterSettingsRepository{db: db}
}

func (r *filterSettingsRepository) Get(userID string) (*settingsdomain.FilterSettings, error) {
	var settings settingsdomain.FilterSettings
	err := r.db.Where("user_id = ?", userID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return settingsdomain.Defaults(userID), nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *filterSettingsRepository) Save(settings *settingsdomain.FilterSettings) error {
	settings.UpdatedAt = time.Now()
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = settings.UpdatedAt
	}
	return r.db.Save(settings).Error
}
