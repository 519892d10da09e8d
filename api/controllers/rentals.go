package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/equipledger-backend/api/responses"
	"github.com/angelmondragon/equipledger-backend/api/validators"
	"github.com/angelmondragon/equipledger-backend/internal/rentals"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
)

const dateLayout = validators.DateLayout

type rentalCreateRequest struct {
	EquipmentID      string          `json:"equipment_id" validate:"required,uuid"`
	ClientName       string          `json:"client_name" validate:"required,notblank,max=255"`
	ClientTaxID      string          `json:"client_tax_id" validate:"max=64"`
	ClientEmail      string          `json:"client_email" validate:"omitempty,email"`
	ClientPhone      string          `json:"client_phone" validate:"max=32"`
	Price            decimal.Decimal `json:"price"`
	Currency         string          `json:"currency" validate:"required"`
	PaymentFrequency string          `json:"payment_frequency" validate:"required"`
	StartDate        string          `json:"start_date" validate:"required"`
	EndDate          *string         `json:"end_date"`
	InvoiceRef       *string         `json:"invoice_ref" validate:"omitempty,max=1024"`
}

func (r rentalCreateRequest) toCommand() (rentals.CreateContractCommand, error) {
	equipmentID, err := uuid.Parse(strings.TrimSpace(r.EquipmentID))
	if err != nil {
		return rentals.CreateContractCommand{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid equipment_id")
	}
	start, err := validators.ParseDate(r.StartDate, "start_date")
	if err != nil {
		return rentals.CreateContractCommand{}, err
	}
	var end *time.Time
	if r.EndDate != nil && strings.TrimSpace(*r.EndDate) != "" {
		parsed, err := validators.ParseDate(*r.EndDate, "end_date")
		if err != nil {
			return rentals.CreateContractCommand{}, err
		}
		end = &parsed
	}

	return rentals.CreateContractCommand{
		EquipmentID:      equipmentID,
		ClientName:       validators.SanitizeString(r.ClientName, 255),
		ClientTaxID:      validators.SanitizeString(r.ClientTaxID, 64),
		ClientEmail:      strings.TrimSpace(r.ClientEmail),
		ClientPhone:      validators.SanitizeString(r.ClientPhone, 32),
		Price:            r.Price,
		Currency:         enums.Currency(strings.ToUpper(strings.TrimSpace(r.Currency))),
		PaymentFrequency: enums.PaymentFrequency(strings.ToLower(strings.TrimSpace(r.PaymentFrequency))),
		StartDate:        start,
		EndDate:          end,
		InvoiceRef:       r.InvoiceRef,
	}, nil
}

// CreateRentalContract rents owned equipment to an external client.
func CreateRentalContract(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		var payload rentalCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cmd, err := payload.toCommand()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateContract(r.Context(), cmd)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"contract":     contractResponseFromModel(result.Contract),
			"notification": result.Notification,
		})
	}
}

func GetRentalContract(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contract, err := svc.GetContract(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, contractResponseFromModel(*contract))
	}
}

func CancelRentalContract(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return contractTransition(svc, logg, func(r *http.Request, id uuid.UUID) (contractResponse, error) {
		contract, err := svc.CancelContract(r.Context(), id)
		if err != nil {
			return contractResponse{}, err
		}
		return contractResponseFromModel(*contract), nil
	})
}

// ReactivateRentalContract flips a cancelled contract back to active without
// re-checking overlap. The rental overlap audit reports any conflict it creates.
func ReactivateRentalContract(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return contractTransition(svc, logg, func(r *http.Request, id uuid.UUID) (contractResponse, error) {
		contract, err := svc.ReactivateContract(r.Context(), id)
		if err != nil {
			return contractResponse{}, err
		}
		return contractResponseFromModel(*contract), nil
	})
}

func contractTransition(svc rentals.Service, logg *logger.Logger, apply func(*http.Request, uuid.UUID) (contractResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		id, err := validators.ParseURLUUID(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp, err := apply(r, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}

// OccupiedEquipment lists equipment held by an active contract as of a date (default today).
func OccupiedEquipment(svc rentals.Service, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		asOf, err := validators.ParseQueryDate(r, "as_of", rentals.DateOf(now()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ids, err := svc.OccupiedEquipment(r.Context(), asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"as_of":         asOf.Format(dateLayout),
			"equipment_ids": ids,
		})
	}
}

// AvailableEquipment lists owned equipment free to rent as of a date. The
// equipment of excluding_contract_id is always included so a contract can be edited.
func AvailableEquipment(svc rentals.Service, logg *logger.Logger, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		asOf, err := validators.ParseQueryDate(r, "as_of", rentals.DateOf(now()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		excluding, err := validators.ParseQueryUUID(r, "excluding_contract_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.AvailableEquipment(r.Context(), asOf, excluding)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"as_of": asOf.Format(dateLayout),
			"items": equipmentResponses(rows),
		})
	}
}

// EquipmentRentals lists every contract ever bound to one equipment.
func EquipmentRentals(svc rentals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rentals service unavailable"))
			return
		}

		equipmentID, err := validators.ParseURLUUID(r, "equipmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByEquipment(r.Context(), equipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": contractResponses(rows)})
	}
}
