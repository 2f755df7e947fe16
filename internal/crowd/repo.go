package crowd

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshroute/freshroute-backend/pkg/db/models"
)

// Repository exposes persistence for per-shelf crowd counters.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a crowd repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByShelfID returns the crowd state row for a shelf, or nil when the
// shelf has never been bumped.
func (r *Repository) FindByShelfID(ctx context.Context, shelfID uuid.UUID) (*models.ShelfCrowdState, error) {
	var state models.ShelfCrowdState
	err := r.db.WithContext(ctx).Where("shelf_id = ?", shelfID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// Create inserts a fresh zero-counter row for the shelf.
func (r *Repository) Create(ctx context.Context, state *models.ShelfCrowdState) error {
	return r.db.WithContext(ctx).Create(state).Error
}

// UpdateCAS writes the counters and score guarded by the version column.
// It returns false without error when another writer won the race.
func (r *Repository) UpdateCAS(ctx context.Context, state *models.ShelfCrowdState, expectedVersion int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ShelfCrowdState{}).
		Where("shelf_id = ? AND version = ?", state.ShelfID, expectedVersion).
		Updates(map[string]any{
			"pick_count":  state.PickCount,
			"sort_count":  state.SortCount,
			"audit_count": state.AuditCount,
			"busy_score":  state.BusyScore,
			"version":     expectedVersion + 1,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
