package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/freshroute/freshroute-backend/pkg/enums"
	"github.com/freshroute/freshroute-backend/pkg/types"
)

// ContainerOps is the operational tracking record for one physical produce
// container from intake to dispatch. Rows are never deleted; terminal
// containers are retained for audit.
type ContainerOps struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Label         string                `gorm:"column:label;not null;uniqueIndex"`
	State         enums.ContainerState  `gorm:"column:state;type:text;not null;default:'arrived';index"`
	Area          enums.LocationArea    `gorm:"column:area;type:text;not null;default:'intake'"`
	Zone          *string               `gorm:"column:zone"`
	Aisle         *string               `gorm:"column:aisle"`
	ShelfID       *uuid.UUID            `gorm:"column:shelf_id;type:uuid;index"`
	SlotID        *int                  `gorm:"column:slot_id"`
	Cleaning      *types.CleaningRecord `gorm:"column:cleaning;type:jsonb;serializer:json"`
	Sorting       *types.SortingRecord  `gorm:"column:sorting;type:jsonb;serializer:json"`
	WeightHistory types.WeightHistory   `gorm:"column:weight_history;type:jsonb;serializer:json"`
	AuditTrail    types.AuditTrail      `gorm:"column:audit_trail;type:jsonb;serializer:json"`
	DispatchedAt  *time.Time            `gorm:"column:dispatched_at"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// Location assembles the container's current physical position.
func (c ContainerOps) Location() types.ContainerLocation {
	loc := types.ContainerLocation{
		Area:  c.Area,
		Zone:  c.Zone,
		Aisle: c.Aisle,
	}
	if c.ShelfID != nil {
		id := c.ShelfID.String()
		loc.ShelfID = &id
	}
	loc.SlotID = c.SlotID
	return loc
}
