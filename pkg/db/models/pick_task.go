package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshroute/freshroute-backend/pkg/enums"
	"github.com/freshroute/freshroute-backend/pkg/types"
)

// PickTask assigns a picker to gather a set of items for one customer order.
type PickTask struct {
	ID                  uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID             uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	State               enums.PickTaskState    `gorm:"column:state;type:text;not null;default:'pending';index"`
	AssignedTo          *uuid.UUID             `gorm:"column:assigned_to;type:uuid"`
	Items               types.PickItems        `gorm:"column:items;type:jsonb;serializer:json;not null"`
	ShelfAssignments    types.ShelfAssignments `gorm:"column:shelf_assignments;type:jsonb;serializer:json"`
	AggregateCrowdScore *float64               `gorm:"column:aggregate_crowd_score"`
	CancelReason        *string                `gorm:"column:cancel_reason"`
	StartedAt           *time.Time             `gorm:"column:started_at"`
	CompletedAt         *time.Time             `gorm:"column:completed_at"`
	CanceledAt          *time.Time             `gorm:"column:canceled_at"`
	CreatedAt           time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
