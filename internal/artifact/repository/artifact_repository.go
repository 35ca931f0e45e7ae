package repository

import (
	"errors"
	"fmt"
	"time"

	artifactdomain "replypilot-backend/internal/artifact/domain"
	"replypilot-backend/internal/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArtifactRepository defines the interface for persona artifact access
type ArtifactRepository interface {
	// GetActive returns the single active version, or nil when none.
	GetActive(userID string, kind artifactdomain.Kind) (*artifactdomain.Artifact, error)

	// Activate atomically deactivates the current active row(s) and
	// inserts a new active row with version = max(existing) + 1.
	// A concurrent activation that wins the version race causes the
	// loser to return errs.ErrConflict; the caller retries with fresh
	// state.
	Activate(userID string, kind artifactdomain.Kind, content string, isGenerated bool) (*artifactdomain.Artifact, error)

	// CountActive reports the number of active rows for (user, kind).
	CountActive(userID string, kind artifactdomain.Kind) (int64, error)
}

// artifactRepository implements ArtifactRepository using GORM
type artifactRepository struct {
	db *gorm.DB
}

// NewArtifactRepository creates a new instance of artifactRepository
func NewArtifactRepository(db *gorm.DB) ArtifactRepository {
	return &artifactRepository{db: db}
}

func (r *artifactRepository) GetActive(userID string, kind artifactdomain.Kind) (*artifactdomain.Artifact, error) {
	var artifact artifactdomain.Artifact
	err := r.db.Where("user_id = ? AND kind = ? AND is_active = ?", userID, kind, true).
		First(&artifact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &artifact, nil
}

func (r *artifactRepository) Activate(userID string, kind artifactdomain.Kind, content string, isGenerated bool) (*artifactdomain.Artifact, error) {
	artifact := &artifactdomain.Artifact{
		ID:          uuid.New().String(),
		UserID:      userID,
		Kind:        kind,
		IsActive:    true,
		Content:     content,
		IsGenerated: isGenerated,
		CreatedAt:   time.Now(),
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Deactivate-then-insert is the sole writer of the
		// single-active invariant.
		if err := tx.Model(&artifactdomain.Artifact{}).
			Where("user_id = ? AND kind = ? AND is_active = ?", userID, kind, true).
			Update("is_active", false).Error; err != nil {
			return err
		}

		var maxVersion int64
		row := tx.Model(&artifactdomain.Artifact{}).
			Where("user_id = ? AND kind = ?", userID, kind).
			Select("COALESCE(MAX(version), 0)")
		if err := row.Scan(&maxVersion).Error; err != nil {
			return err
		}

		artifact.Version = int(maxVersion) + 1
		if err := tx.Create(artifact).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// A concurrent activation claimed this version first.
				return fmt.Errorf("%w: artifact version %d for %s already taken", errs.ErrConflict, artifact.Version, kind)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

func (r *artifactRepository) CountActive(userID string, kind artifactdomain.Kind) (int64, error) {
	var count int64
	err := r.db.Model(&artifactdomain.Artifact{}).
		Where("user_id = ? AND kind = ? AND is_active = ?", userID, kind, true).
		Count(&count).Error
	return count, err
}
