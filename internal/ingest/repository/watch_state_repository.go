package repository

import (
	"errors"
	"time"

	ingestdomain "replypilot-backend/internal/ingest/domain"

	"gorm.io/gorm"
)

// WatchStateRepository defines the interface for delta cursor state
type WatchStateRepository interface {
	Get(userID string) (*ingestdomain.WatchState, error)

	// AdvanceCursor moves the cursor forward, never backward. Reports
	// whether the row changed; a stale cursor is a no-op.
	AdvanceCursor(userID string, historyID uint64) (advanced bool, err error)

	// SaveWatch records a (re-)registered subscription. The stored cursor
	// is kept unless none exists yet.
	SaveWatch(userID string, historyID uint64, expiry time.Time) error
}

// watchStateRepository implements WatchStateRepository using GORM
type watchStateRepository struct {
	db *gorm.DB
}

// NewWatchStateRepository creates a new instance of watchStateRepository
func NewWatchStateRepository(db *gorm.DB) WatchStateRepository {
	return &watchStateRepository{db: db}
}

func (r *watchStateRepository) Get(userID string) (*ingestdomain.WatchState, error) {
	var state ingestdomain.WatchState
	err := r.db.Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *watchStateRepository) AdvanceCursor(userID string, historyID uint64) (bool, error) {
	// The guard makes concurrent or out-of-order advances safe: only a
	// strictly newer cursor writes.
	result := r.db.Model(&ingestdomain.WatchState{}).
		Where("user_id = ? AND last_history_id < ?", userID, historyID).
		Updates(map[string]interface{}{
			"last_history_id": historyID,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *watchStateRepository) SaveWatch(userID string, historyID uint64, expiry time.Time) error {
	existing, err := r.Get(userID)
	if err != nil {
		return err
	}
	if existing == nil {
		return r.db.Create(&ingestdomain.WatchState{
			UserID:        userID,
			LastHistoryID: historyID,
			Expiry:        expiry,
			UpdatedAt:     time.Now(),
		}).Error
	}
	// Keep the existing cursor: renewal must not rewind delta progress.
	return r.db.Model(&ingestdomain.WatchState{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"expiry":     expiry,
			"updated_at": time.Now(),
		}).Error
}
