package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/equipledger-backend/internal/signatures"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

type equipmentResponse struct {
	ID         uuid.UUID             `json:"id"`
	Serial     string                `json:"serial"`
	Name       string                `json:"name"`
	Status     enums.EquipmentStatus `json:"status"`
	Available  bool                  `json:"available"`
	Active     bool                  `json:"active"`
	ProviderID *uuid.UUID            `json:"provider_id,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

func equipmentResponseFromModel(m models.Equipment) equipmentResponse {
	return equipmentResponse{
		ID:         m.ID,
		Serial:     m.Serial,
		Name:       m.Name,
		Status:     m.Status,
		Available:  m.Available,
		Active:     m.Active,
		ProviderID: m.ProviderID,
		UpdatedAt:  m.UpdatedAt,
	}
}

func equipmentResponses(rows []models.Equipment) []equipmentResponse {
	out := make([]equipmentResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, equipmentResponseFromModel(row))
	}
	return out
}

type movementResponse struct {
	ID                int64                  `json:"id"`
	EquipmentID       uuid.UUID              `json:"equipment_id"`
	EmployeeID        uuid.UUID              `json:"employee_id"`
	Type              enums.MovementType     `json:"type"`
	OccurredAt        time.Time              `json:"occurred_at"`
	ChargerIncluded   bool                   `json:"charger_included"`
	Observations      string                 `json:"observations,omitempty"`
	Condition         *enums.EquipmentStatus `json:"condition,omitempty"`
	SignatureState    enums.SignatureState   `json:"signature_state"`
	SignedDocumentRef *string                `json:"signed_document_ref,omitempty"`
	SignatureValid    *bool                  `json:"signature_valid"`
	CreatedAt         time.Time              `json:"created_at"`
}

func movementResponseFromModel(m models.Movement) movementResponse {
	return movementResponse{
		ID:                m.ID,
		EquipmentID:       m.EquipmentID,
		EmployeeID:        m.EmployeeID,
		Type:              m.Type,
		OccurredAt:        m.OccurredAt,
		ChargerIncluded:   m.ChargerIncluded,
		Observations:      m.Observations,
		Condition:         m.Condition,
		SignatureState:    signatures.StateOf(m),
		SignedDocumentRef: m.SignedDocumentRef,
		SignatureValid:    m.SignatureValid,
		CreatedAt:         m.CreatedAt,
	}
}

type contractResponse struct {
	ID               uuid.UUID              `json:"id"`
	EquipmentID      uuid.UUID              `json:"equipment_id"`
	ClientName       string                 `json:"client_name"`
	ClientTaxID      string                 `json:"client_tax_id,omitempty"`
	ClientEmail      string                 `json:"client_email,omitempty"`
	ClientPhone      string                 `json:"client_phone,omitempty"`
	Price            decimal.Decimal        `json:"price"`
	Currency         enums.Currency         `json:"currency"`
	PaymentFrequency enums.PaymentFrequency `json:"payment_frequency"`
	StartDate        string                 `json:"start_date"`
	EndDate          *string                `json:"end_date"`
	Status           enums.ContractStatus   `json:"status"`
	InvoiceRef       *string                `json:"invoice_ref,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

func contractResponseFromModel(m models.RentalContract) contractResponse {
	resp := contractResponse{
		ID:               m.ID,
		EquipmentID:      m.EquipmentID,
		ClientName:       m.ClientName,
		ClientTaxID:      m.ClientTaxID,
		ClientEmail:      m.ClientEmail,
		ClientPhone:      m.ClientPhone,
		Price:            m.Price,
		Currency:         m.Currency,
		PaymentFrequency: m.PaymentFrequency,
		StartDate:        m.StartDate.UTC().Format(dateLayout),
		Status:           m.Status,
		InvoiceRef:       m.InvoiceRef,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.EndDate != nil {
		end := m.EndDate.UTC().Format(dateLayout)
		resp.EndDate = &end
	}
	return resp
}

func contractResponses(rows []models.RentalContract) []contractResponse {
	out := make([]contractResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractResponseFromModel(row))
	}
	return out
}
