package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Shelf is a physical storage location inside the logistics center.
type Shelf struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string          `gorm:"column:code;not null;uniqueIndex"`
	Zone          string          `gorm:"column:zone;not null"`
	Aisle         string          `gorm:"column:aisle;not null"`
	SlotCapacity  int             `gorm:"column:slot_capacity;not null"`
	WeightLimitKg decimal.Decimal `gorm:"column:weight_limit_kg;type:numeric(10,3);not null"`
	Active        bool            `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
