package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/freshroute/freshroute-backend/pkg/enums"
)

// ContainerRejectedEvent is emitted when an intake inspection rejects a container.
type ContainerRejectedEvent struct {
	ContainerID uuid.UUID `json:"containerId"`
	Label       string    `json:"label"`
	Reason      string    `json:"reason,omitempty"`
	RejectedAt  time.Time `json:"rejectedAt"`
}

// ContainerShelvedEvent signals that a container landed on a shelf slot.
type ContainerShelvedEvent struct {
	ContainerID uuid.UUID `json:"containerId"`
	Label       string    `json:"label"`
	ShelfID     string    `json:"shelfId"`
	SlotID      int       `json:"slotId"`
	ShelvedAt   time.Time `json:"shelvedAt"`
}

// ContainerDispatchedEvent surfaces the final weight when a container leaves the building.
type ContainerDispatchedEvent struct {
	ContainerID   uuid.UUID        `json:"containerId"`
	Label         string           `json:"label"`
	FinalWeightKg *decimal.Decimal `json:"finalWeightKg,omitempty"`
	DispatchedAt  time.Time        `json:"dispatchedAt"`
}

// PickTaskCompletedEvent is emitted when every item on a task is covered.
type PickTaskCompletedEvent struct {
	TaskID      uuid.UUID  `json:"taskId"`
	OrderID     uuid.UUID  `json:"orderId"`
	AssignedTo  *uuid.UUID `json:"assignedTo,omitempty"`
	ItemCount   int        `json:"itemCount"`
	CompletedAt time.Time  `json:"completedAt"`
}

// PickTaskCanceledEvent is emitted whenever a task is canceled before completion.
type PickTaskCanceledEvent struct {
	TaskID     uuid.UUID           `json:"taskId"`
	OrderID    uuid.UUID           `json:"orderId"`
	FromState  enums.PickTaskState `json:"fromState"`
	Reason     string              `json:"reason,omitempty"`
	CanceledAt time.Time           `json:"canceledAt"`
}
