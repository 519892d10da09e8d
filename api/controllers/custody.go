package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/equipledger-backend/api/responses"
	"github.com/angelmondragon/equipledger-backend/api/validators"
	"github.com/angelmondragon/equipledger-backend/internal/assignments"
	"github.com/angelmondragon/equipledger-backend/internal/custody"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
)

const maxObservationsLength = 2000

type deliveryRequest struct {
	EquipmentID     string     `json:"equipment_id" validate:"required,uuid"`
	EmployeeID      string     `json:"employee_id" validate:"required,uuid"`
	OccurredAt      *time.Time `json:"occurred_at"`
	ChargerIncluded bool       `json:"charger_included"`
	Observations    string     `json:"observations"`
}

func (r deliveryRequest) toCommand() (custody.DeliveryCommand, error) {
	equipmentID, employeeID, err := parseCustodyIDs(r.EquipmentID, r.EmployeeID)
	if err != nil {
		return custody.DeliveryCommand{}, err
	}
	cmd := custody.DeliveryCommand{
		EquipmentID:     equipmentID,
		EmployeeID:      employeeID,
		ChargerIncluded: r.ChargerIncluded,
		Observations:    validators.SanitizeString(r.Observations, maxObservationsLength),
	}
	if r.OccurredAt != nil {
		cmd.OccurredAt = *r.OccurredAt
	}
	return cmd, nil
}

type returnRequest struct {
	EquipmentID     string     `json:"equipment_id" validate:"required,uuid"`
	EmployeeID      string     `json:"employee_id" validate:"required,uuid"`
	OccurredAt      *time.Time `json:"occurred_at"`
	ChargerIncluded bool       `json:"charger_included"`
	Observations    string     `json:"observations"`
	FinalCondition  string     `json:"final_condition" validate:"required"`
}

func (r returnRequest) toCommand() (custody.ReturnCommand, error) {
	equipmentID, employeeID, err := parseCustodyIDs(r.EquipmentID, r.EmployeeID)
	if err != nil {
		return custody.ReturnCommand{}, err
	}
	cmd := custody.ReturnCommand{
		EquipmentID:     equipmentID,
		EmployeeID:      employeeID,
		ChargerIncluded: r.ChargerIncluded,
		Observations:    validators.SanitizeString(r.Observations, maxObservationsLength),
		FinalCondition:  enums.EquipmentStatus(strings.ToLower(strings.TrimSpace(r.FinalCondition))),
	}
	if r.OccurredAt != nil {
		cmd.OccurredAt = *r.OccurredAt
	}
	return cmd, nil
}

func parseCustodyIDs(rawEquipment, rawEmployee string) (uuid.UUID, uuid.UUID, error) {
	equipmentID, err := uuid.Parse(strings.TrimSpace(rawEquipment))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid equipment_id")
	}
	employeeID, err := uuid.Parse(strings.TrimSpace(rawEmployee))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid employee_id")
	}
	return equipmentID, employeeID, nil
}

type custodyResponse struct {
	Movement       movementResponse     `json:"movement"`
	Equipment      equipmentResponse    `json:"equipment"`
	Notification   enums.DeliveryStatus `json:"notification"`
	HolderMismatch bool                 `json:"holder_mismatch"`
}

func custodyResponseFromResult(res *custody.Result) custodyResponse {
	return custodyResponse{
		Movement:       movementResponseFromModel(res.Movement),
		Equipment:      equipmentResponseFromModel(res.Equipment),
		Notification:   res.Notification,
		HolderMismatch: res.HolderMismatch,
	}
}

// RecordDelivery hands a piece of equipment to an employee.
func RecordDelivery(svc custody.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "custody service unavailable"))
			return
		}

		var payload deliveryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cmd, err := payload.toCommand()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RecordDelivery(r.Context(), cmd)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, custodyResponseFromResult(result))
	}
}

// RecordReturn takes equipment back from an employee.
func RecordReturn(svc custody.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "custody service unavailable"))
			return
		}

		var payload returnRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cmd, err := payload.toCommand()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RecordReturn(r.Context(), cmd)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, custodyResponseFromResult(result))
	}
}

type assignmentResponse struct {
	EmployeeID     uuid.UUID `json:"employee_id"`
	EmployeeName   string    `json:"employee_name"`
	EmployeeActive bool      `json:"employee_active"`
	EquipmentID    uuid.UUID `json:"equipment_id"`
}

// CurrentAssignments lists who holds what according to the ledger.
func CurrentAssignments(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		current, err := svc.CurrentAssignments(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]assignmentResponse, 0, len(current))
		for _, a := range current {
			items = append(items, assignmentResponse{
				EmployeeID:     a.EmployeeID,
				EmployeeName:   a.EmployeeName,
				EmployeeActive: a.EmployeeActive,
				EquipmentID:    a.EquipmentID,
			})
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}

// Reconciliation runs the drift audit on demand. It never repairs anything.
func Reconciliation(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		report, err := svc.Reconcile(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"clean":  report.Clean(),
			"report": report,
		})
	}
}
