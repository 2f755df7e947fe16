package models

import (
	"time"

	"github.com/google/uuid"
)

// ShelfCrowdState holds the persisted busy counters for one shelf. Rows are
// created lazily the first time a bump or query touches the shelf and kept
// for the life of the shelf so the counters survive restarts.
//
// BusyScore is always derived from the counters plus the live container
// count; it is never set independently. Version guards the read-modify-write
// cycle with a compare-and-swap.
type ShelfCrowdState struct {
	ShelfID    uuid.UUID `gorm:"column:shelf_id;type:uuid;primaryKey"`
	PickCount  int       `gorm:"column:pick_count;not null;default:0"`
	SortCount  int       `gorm:"column:sort_count;not null;default:0"`
	AuditCount int       `gorm:"column:audit_count;not null;default:0"`
	BusyScore  float64   `gorm:"column:busy_score;not null;default:0"`
	Version    int64     `gorm:"column:version;not null;default:0"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
