package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// Equipment is a physical or rentable asset tracked by serial number.
// Available is a cached projection of the custody ledger.
type Equipment struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Serial     string                `gorm:"column:serial;not null;uniqueIndex"`
	Name       string                `gorm:"column:name;not null"`
	Status     enums.EquipmentStatus `gorm:"column:status;type:equipment_status_enum;not null"`
	Available  bool                  `gorm:"column:available;not null"`
	Active     bool                  `gorm:"column:active;not null"`
	ProviderID *uuid.UUID            `gorm:"column:provider_id;type:uuid"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Equipment) TableName() string { return "equipment" }

func (e *Equipment) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ProviderOwned reports whether the equipment belongs to an external provider.
func (e Equipment) ProviderOwned() bool {
	return e.ProviderID != nil && *e.ProviderID != uuid.Nil
}
