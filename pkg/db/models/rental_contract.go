package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// RentalContract binds one owned equipment to an external client for a date
// range. A nil EndDate means the contract is open-ended.
type RentalContract struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	EquipmentID      uuid.UUID              `gorm:"column:equipment_id;type:uuid;not null;index"`
	ClientName       string                 `gorm:"column:client_name;not null"`
	ClientTaxID      string                 `gorm:"column:client_tax_id"`
	ClientEmail      string                 `gorm:"column:client_email"`
	ClientPhone      string                 `gorm:"column:client_phone"`
	Price            decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null"`
	Currency         enums.Currency         `gorm:"column:currency;type:currency_enum;not null"`
	PaymentFrequency enums.PaymentFrequency `gorm:"column:payment_frequency;type:payment_frequency_enum;not null"`
	StartDate        time.Time              `gorm:"column:start_date;type:date;not null"`
	EndDate          *time.Time             `gorm:"column:end_date;type:date"`
	Status           enums.ContractStatus   `gorm:"column:status;type:contract_status_enum;not null"`
	InvoiceRef       *string                `gorm:"column:invoice_ref"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *RentalContract) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
