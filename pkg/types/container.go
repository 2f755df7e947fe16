package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/freshroute/freshroute-backend/pkg/enums"
)

// WeightEntry is one weighing event for a container. The history is additive:
// a container may be weighed more than once (before and after cleaning).
type WeightEntry struct {
	ValueKg    decimal.Decimal `json:"valueKg"`
	Actor      string          `json:"actor"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// WeightHistory is the ordered sequence of weighing events, stored as JSONB.
type WeightHistory []WeightEntry

// CleaningRecord describes how a container was cleaned.
type CleaningRecord struct {
	Method     string     `json:"method"`
	Actor      string     `json:"actor"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Meta       Meta       `json:"meta,omitempty"`
}

// SortingRecord describes the grading outcome of the sorting step.
type SortingRecord struct {
	Grade    string `json:"grade"`
	Category string `json:"category"`
	Actor    string `json:"actor"`
	Meta     Meta   `json:"meta,omitempty"`
}

// AuditEntry records one lifecycle transition on a container.
type AuditEntry struct {
	Event     string               `json:"event"`
	FromState enums.ContainerState `json:"fromState"`
	ToState   enums.ContainerState `json:"toState"`
	Actor     string               `json:"actor"`
	At        time.Time            `json:"at"`
	Meta      Meta                 `json:"meta,omitempty"`
}

// AuditTrail is the append-only transition log, stored as JSONB.
type AuditTrail []AuditEntry

// ContainerLocation pins a container to a physical area. Shelf fields are
// required while the container sits on an active shelf and cleared otherwise.
type ContainerLocation struct {
	Area    enums.LocationArea `json:"area"`
	Zone    *string            `json:"zone,omitempty"`
	Aisle   *string            `json:"aisle,omitempty"`
	ShelfID *string            `json:"shelfId,omitempty"`
	SlotID  *int               `json:"slotId,omitempty"`
}
