package shelves

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/enums"
)

// Repository exposes the shelf registry and occupancy reads. Crowd scoring
// borrows the live container count from here; it never writes shelves.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a shelf repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new shelf row.
func (r *Repository) Create(ctx context.Context, shelf *models.Shelf) (*models.Shelf, error) {
	if err := r.db.WithContext(ctx).Create(shelf).Error; err != nil {
		return nil, err
	}
	return shelf, nil
}

// FindByID returns the shelf or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, shelfID uuid.UUID) (*models.Shelf, error) {
	var shelf models.Shelf
	err := r.db.WithContext(ctx).Where("id = ?", shelfID).First(&shelf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shelf, nil
}

// FindByCode returns the shelf with the given human-readable code, or nil.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Shelf, error) {
	var shelf models.Shelf
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&shelf).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &shelf, nil
}

// ListActive returns every shelf currently in service, ordered by code.
func (r *Repository) ListActive(ctx context.Context) ([]models.Shelf, error) {
	var rows []models.Shelf
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("code ASC").
		Find(&rows).Error
	return rows, err
}

// LiveContainerCount counts containers currently shelved on the shelf. This
// is the occupancy input to the crowd score.
func (r *Repository) LiveContainerCount(ctx context.Context, shelfID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ContainerOps{}).
		Where("shelf_id = ? AND state = ?", shelfID, enums.ContainerStateShelved).
		Count(&count).Error
	return int(count), err
}

// OccupiedSlots returns the slot ids currently taken on the shelf.
func (r *Repository) OccupiedSlots(ctx context.Context, shelfID uuid.UUID) ([]int, error) {
	var slots []int
	err := r.db.WithContext(ctx).Model(&models.ContainerOps{}).
		Where("shelf_id = ? AND state = ? AND slot_id IS NOT NULL", shelfID, enums.ContainerStateShelved).
		Order("slot_id ASC").
		Pluck("slot_id", &slots).Error
	return slots, err
}
