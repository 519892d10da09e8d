package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// Movement is one immutable custody fact. ID doubles as the ledger sequence
// and breaks ties between movements sharing an OccurredAt.
// Only SignedDocumentRef and SignatureValid change after insert.
type Movement struct {
	ID                int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	EquipmentID       uuid.UUID              `gorm:"column:equipment_id;type:uuid;not null;index"`
	EmployeeID        uuid.UUID              `gorm:"column:employee_id;type:uuid;not null;index"`
	Type              enums.MovementType     `gorm:"column:type;type:movement_type_enum;not null"`
	OccurredAt        time.Time              `gorm:"column:occurred_at;not null"`
	ChargerIncluded   bool                   `gorm:"column:charger_included;not null"`
	Observations      string                 `gorm:"column:observations"`
	Condition         *enums.EquipmentStatus `gorm:"column:condition;type:equipment_status_enum"`
	SignedDocumentRef *string                `gorm:"column:signed_document_ref"`
	SignatureValid    *bool                  `gorm:"column:signature_valid"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
}
