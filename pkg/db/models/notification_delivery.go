package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// NotificationDelivery records the outcome of one post-commit notification.
type NotificationDelivery struct {
	ID            uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	AggregateType string                  `gorm:"column:aggregate_type;not null"`
	AggregateID   string                  `gorm:"column:aggregate_id;not null;index"`
	EventType     enums.NotificationEvent `gorm:"column:event_type;not null"`
	Status        enums.DeliveryStatus    `gorm:"column:status;type:delivery_status_enum;not null"`
	Error         *string                 `gorm:"column:error"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (d *NotificationDelivery) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
