package types

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PickItem is one requested line of a pick task.
type PickItem struct {
	ItemID        uuid.UUID       `json:"itemId"`
	QuantityKg    decimal.Decimal `json:"quantityKg"`
	QuantityUnits int             `json:"quantityUnits"`
}

// PickItems is the ordered item list, stored as JSONB.
type PickItems []PickItem

// ShelfAssignment records the container/shelf/slot chosen for part of an item,
// together with the crowd score observed at planning time. The score is a
// snapshot and is never re-derived after assignment.
type ShelfAssignment struct {
	ItemID      uuid.UUID       `json:"itemId"`
	ContainerID uuid.UUID       `json:"containerId"`
	ShelfID     uuid.UUID       `json:"shelfId"`
	SlotID      int             `json:"slotId"`
	QuantityKg  decimal.Decimal `json:"quantityKg"`
	CrowdScore  float64         `json:"crowdScore"`
}

// ShelfAssignments is the planning output, stored as JSONB.
type ShelfAssignments []ShelfAssignment
