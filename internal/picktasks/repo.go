package picktasks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/freshroute/freshroute-backend/pkg/db/models"
	"github.com/freshroute/freshroute-backend/pkg/enums"
	"github.com/freshroute/freshroute-backend/pkg/pagination"
)

// Repository exposes pick task persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a pick task repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateTx inserts the task inside the caller's transaction.
func (r *Repository) CreateTx(tx *gorm.DB, task *models.PickTask) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(task).Error
}

// FindByID returns the task or nil when it does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PickTask, error) {
	var task models.PickTask
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// FindByIDForUpdate row-locks the task so concurrent claims serialize.
func (r *Repository) FindByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*models.PickTask, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	var task models.PickTask
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

// SaveTx persists the mutated task inside the caller's transaction.
func (r *Repository) SaveTx(tx *gorm.DB, task *models.PickTask) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Save(task).Error
}

type listQuery struct {
	state  *enums.PickTaskState
	cursor *pagination.Cursor
	limit  int
}

// List returns tasks newest first using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.PickTask, error) {
	query := r.db.WithContext(ctx).Model(&models.PickTask{})

	if opts.state != nil {
		query = query.Where("state = ?", *opts.state)
	}
	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.PickTask
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListStalePending returns pending tasks created before the cutoff. Used by
// the expiry job to cancel work nobody claimed.
func (r *Repository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.PickTask, error) {
	var rows []models.PickTask
	err := r.db.WithContext(ctx).
		Where("state = ?", enums.PickTaskStatePending).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
