package containers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	"github.com/freshroute/freshroute-backend/pkg/pagination"
)

// Repository exposes container persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a container repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts the container inside the caller's transaction.
func (r *Repository) CreateTx(tx *gorm.DB, container *models.ContainerOps) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(container).Error
}

// FindByID returns the container or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ContainerOps, error) {
	var container models.ContainerOps
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&container).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &container, nil
}

// FindByLabel returns the container with the given external label, or nil.
func (r *Repository) FindByLabel(ctx context.Context, label string) (*models.ContainerOps, error) {
	var container models.ContainerOps
	err := r.db.WithContext(ctx).Where("label = ?", label).First(&container).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &container, nil
}

// FindByIDForUpdate row-locks the container for the duration of the
// transaction so a concurrent scan cannot interleave.
func (r *Repository) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.ContainerOps, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var container models.ContainerOps
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&container).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &container, nil
}

// SaveTx persists the mutated container inside the caller's transaction.
func (r *Repository) SaveTx(tx *gorm.DB, container *models.ContainerOps) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Save(container).Error
}

type listQuery struct {
	state  *enums.ContainerState
	cursor *pagination.Cursor
	limit  int
}

// List returns containers newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.ContainerOps, error) {
	query := r.db.WithContext(ctx).Model(&models.ContainerOps{})

	if opts.state != nil {
		query = query.Where("state = ?", *opts.state)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.ContainerOps
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
