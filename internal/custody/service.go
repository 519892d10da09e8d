package custody

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/internal/assignments"
	"github.com/angelmondragon/equipledger-backend/internal/employees"
	"github.com/angelmondragon/equipledger-backend/internal/equipment"
	"github.com/angelmondragon/equipledger-backend/internal/movements"
	"github.com/angelmondragon/equipledger-backend/internal/notifications"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
)

const (
	commandDelivery = "record_delivery"
	commandReturn   = "record_return"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the availability guard: the only writer of custody movements and
// of the cached equipment availability flag.
type Service interface {
	RecordDelivery(ctx context.Context, cmd DeliveryCommand) (*Result, error)
	RecordReturn(ctx context.Context, cmd ReturnCommand) (*Result, error)
}

// DeliveryCommand hands equipment to an employee.
type DeliveryCommand struct {
	EquipmentID     uuid.UUID
	EmployeeID      uuid.UUID
	OccurredAt      time.Time
	ChargerIncluded bool
	Observations    string
}

// ReturnCommand takes equipment back and records the condition it came back in.
type ReturnCommand struct {
	EquipmentID     uuid.UUID
	EmployeeID      uuid.UUID
	OccurredAt      time.Time
	ChargerIncluded bool
	Observations    string
	FinalCondition  enums.EquipmentStatus
}

// Result is the committed movement plus the post-commit notification outcome.
type Result struct {
	Movement       models.Movement      `json:"movement"`
	Equipment      models.Equipment     `json:"equipment"`
	Notification   enums.DeliveryStatus `json:"notification"`
	HolderMismatch bool                 `json:"holder_mismatch"`
}

type ServiceParams struct {
	TxRunner            txRunner
	Equipment           equipment.Repository
	Employees           employees.Repository
	MovementsRepo       movements.Repository
	Movements           movements.Service
	Notifier            notifications.Dispatcher
	Logger              *logger.Logger
	Metrics             *metrics.LedgerMetrics
	EnforceReturnHolder bool
	Now                 func() time.Time
}

type service struct {
	tx                  txRunner
	equipment           equipment.Repository
	employees           employees.Repository
	ledger              movements.Repository
	movements           movements.Service
	notifier            notifications.Dispatcher
	logg                *logger.Logger
	metrics             *metrics.LedgerMetrics
	enforceReturnHolder bool
	now                 func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Equipment == nil {
		return nil, fmt.Errorf("equipment repository required")
	}
	if params.Employees == nil {
		return nil, fmt.Errorf("employees repository required")
	}
	if params.MovementsRepo == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	if params.Movements == nil {
		return nil, fmt.Errorf("movements service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:                  params.TxRunner,
		equipment:           params.Equipment,
		employees:           params.Employees,
		ledger:              params.MovementsRepo,
		movements:           params.Movements,
		notifier:            params.Notifier,
		logg:                params.Logger,
		metrics:             params.Metrics,
		enforceReturnHolder: params.EnforceReturnHolder,
		now:                 now,
	}, nil
}

func (s *service) RecordDelivery(ctx context.Context, cmd DeliveryCommand) (result *Result, err error) {
	defer func() { s.metrics.IncCommand(commandDelivery, outcomeOf(err)) }()

	if err := validateIDs(cmd.EquipmentID, cmd.EmployeeID); err != nil {
		return nil, err
	}
	occurredAt := s.timestamp(cmd.OccurredAt)
	logCtx := s.logg.WithEquipmentID(ctx, cmd.EquipmentID.String())

	var (
		movement *models.Movement
		eq       *models.Equipment
		emp      *models.Employee
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		eq, err = s.lockEquipment(ctx, tx, cmd.EquipmentID)
		if err != nil {
			return err
		}
		if !eq.Active {
			return pkgerrors.New(pkgerrors.CodeValidation, "equipment inactive")
		}
		if eq.Status != enums.EquipmentStatusOperational {
			return pkgerrors.New(pkgerrors.CodeValidation, "equipment not operational").
				WithDetails(map[string]any{"status": eq.Status})
		}
		if !eq.Available {
			return pkgerrors.New(pkgerrors.CodeConflict, "equipment already assigned")
		}

		emp, err = s.lockEmployee(ctx, tx, cmd.EmployeeID)
		if err != nil {
			return err
		}
		if !emp.Active {
			return pkgerrors.New(pkgerrors.CodeValidation, "employee inactive")
		}

		ledger, err := s.ledger.WithTx(tx).ListByEquipment(ctx, eq.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load equipment ledger")
		}
		if holder, held := assignments.HolderOf(ledger, eq.ID); held {
			s.reportDrift(logCtx, eq, &holder)
			return pkgerrors.New(pkgerrors.CodeConflict, "ledger drift detected")
		}
		if err := checkChronology(ledger, occurredAt); err != nil {
			return err
		}
		if err := s.checkEmployeeFree(ctx, tx, emp.ID); err != nil {
			return err
		}

		movement, err = s.movements.Append(ctx, tx, movements.AppendInput{
			EquipmentID:     eq.ID,
			EmployeeID:      emp.ID,
			Type:            enums.MovementTypeDelivery,
			OccurredAt:      occurredAt,
			ChargerIncluded: cmd.ChargerIncluded,
			Observations:    cmd.Observations,
		})
		if err != nil {
			return err
		}
		if err := s.equipment.WithTx(tx).MarkAssigned(ctx, eq.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark equipment assigned")
		}
		eq.Available = false
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx = s.logg.WithField(s.logg.WithMovementID(logCtx, movement.ID), "employee_id", emp.ID.String())
	s.logg.Info(logCtx, "equipment delivered")

	status := s.notifier.Notify(ctx, movementEvent(enums.NotificationEventEquipmentDelivered, movement, eq, emp))
	return &Result{Movement: *movement, Equipment: *eq, Notification: status}, nil
}

func (s *service) RecordReturn(ctx context.Context, cmd ReturnCommand) (result *Result, err error) {
	defer func() { s.metrics.IncCommand(commandReturn, outcomeOf(err)) }()

	if err := validateIDs(cmd.EquipmentID, cmd.EmployeeID); err != nil {
		return nil, err
	}
	if !cmd.FinalCondition.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid final condition %q", cmd.FinalCondition)).
			WithDetails(map[string]any{"field": "final_condition"})
	}
	occurredAt := s.timestamp(cmd.OccurredAt)
	logCtx := s.logg.WithEquipmentID(ctx, cmd.EquipmentID.String())

	var (
		movement *models.Movement
		eq       *models.Equipment
		emp      *models.Employee
		mismatch bool
		holder   uuid.UUID
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		eq, err = s.lockEquipment(ctx, tx, cmd.EquipmentID)
		if err != nil {
			return err
		}
		if eq.Available {
			return pkgerrors.New(pkgerrors.CodeConflict, "equipment not currently assigned")
		}

		// inactive employees may still hand equipment back
		emp, err = s.loadEmployee(ctx, tx, cmd.EmployeeID)
		if err != nil {
			return err
		}

		ledger, err := s.ledger.WithTx(tx).ListByEquipment(ctx, eq.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load equipment ledger")
		}
		var held bool
		holder, held = assignments.HolderOf(ledger, eq.ID)
		if !held {
			s.reportDrift(logCtx, eq, nil)
			return pkgerrors.New(pkgerrors.CodeConflict, "ledger drift detected")
		}
		mismatch = holder != emp.ID
		if mismatch && s.enforceReturnHolder {
			return pkgerrors.New(pkgerrors.CodeConflict, "equipment held by another employee").
				WithDetails(map[string]any{"holder_id": holder.String()})
		}
		if err := checkChronology(ledger, occurredAt); err != nil {
			return err
		}

		condition := cmd.FinalCondition
		movement, err = s.movements.Append(ctx, tx, movements.AppendInput{
			EquipmentID:     eq.ID,
			EmployeeID:      emp.ID,
			Type:            enums.MovementTypeReturn,
			OccurredAt:      occurredAt,
			ChargerIncluded: cmd.ChargerIncluded,
			Observations:    cmd.Observations,
			Condition:       &condition,
		})
		if err != nil {
			return err
		}
		if err := s.equipment.WithTx(tx).MarkReturned(ctx, eq.ID, condition); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark equipment returned")
		}
		eq.Available = true
		eq.Status = condition
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx = s.logg.WithFields(s.logg.WithMovementID(logCtx, movement.ID), map[string]any{
		"employee_id":     emp.ID.String(),
		"final_condition": string(cmd.FinalCondition),
	})
	if mismatch {
		s.metrics.IncHolderMismatch()
		s.logg.Warn(s.logg.WithField(logCtx, "holder_id", holder.String()), "equipment returned by employee other than holder")
	}
	s.logg.Info(logCtx, "equipment returned")

	status := s.notifier.Notify(ctx, movementEvent(enums.NotificationEventEquipmentReturned, movement, eq, emp))
	return &Result{Movement: *movement, Equipment: *eq, Notification: status, HolderMismatch: mismatch}, nil
}

func (s *service) lockEquipment(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Equipment, error) {
	eq, err := s.equipment.WithTx(tx).FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, equipment.MapLookupError(err)
		}
		return nil, fmt.Errorf("lock equipment: %w", err)
	}
	return eq, nil
}

func (s *service) lockEmployee(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Employee, error) {
	emp, err := s.employees.WithTx(tx).FindByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, employees.MapLookupError(err)
		}
		return nil, fmt.Errorf("lock employee: %w", err)
	}
	return emp, nil
}

// checkEmployeeFree keeps custody one-to-one: an employee holds at most one
// piece of equipment at a time.
func (s *service) checkEmployeeFree(ctx context.Context, tx *gorm.DB, employeeID uuid.UUID) error {
	history, err := s.ledger.WithTx(tx).ListByEmployeeEquipment(ctx, employeeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load employee ledger")
	}
	held := assignments.HeldBy(history, employeeID)
	if len(held) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "employee already holds equipment").
		WithDetails(map[string]any{"held_equipment_id": held[0].String()})
}

func (s *service) loadEmployee(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.Employee, error) {
	emp, err := s.employees.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, employees.MapLookupError(err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load employee")
	}
	return emp, nil
}

func (s *service) reportDrift(ctx context.Context, eq *models.Equipment, holder *uuid.UUID) {
	fields := map[string]any{"available": eq.Available}
	if holder != nil {
		fields["ledger_holder"] = holder.String()
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), "availability flag disagrees with ledger")
}

func (s *service) timestamp(at time.Time) time.Time {
	if at.IsZero() {
		return s.now().UTC()
	}
	return at.UTC()
}

func validateIDs(equipmentID, employeeID uuid.UUID) error {
	if equipmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "equipment id is required").
			WithDetails(map[string]any{"field": "equipment_id"})
	}
	if employeeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "employee id is required").
			WithDetails(map[string]any{"field": "employee_id"})
	}
	return nil
}

// checkChronology keeps each equipment's ledger append-ordered in time. Equal
// timestamps are allowed and ordered by sequence.
func checkChronology(ledger []models.Movement, at time.Time) error {
	last, ok := assignments.LastMovement(ledger)
	if !ok || !at.Before(last.OccurredAt) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "movement timestamp precedes the equipment's last movement").
		WithDetails(map[string]any{
			"field":            "timestamp",
			"last_movement_at": last.OccurredAt.UTC().Format(time.RFC3339),
		})
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}

type movementPayload struct {
	MovementID      int64                  `json:"movement_id"`
	Type            enums.MovementType     `json:"type"`
	EquipmentID     string                 `json:"equipment_id"`
	Serial          string                 `json:"serial"`
	EquipmentName   string                 `json:"equipment_name"`
	EmployeeID      string                 `json:"employee_id"`
	EmployeeName    string                 `json:"employee_name"`
	EmployeeEmail   string                 `json:"employee_email,omitempty"`
	OccurredAt      time.Time              `json:"occurred_at"`
	ChargerIncluded bool                   `json:"charger_included"`
	Observations    string                 `json:"observations,omitempty"`
	FinalCondition  *enums.EquipmentStatus `json:"final_condition,omitempty"`
}

func movementEvent(event enums.NotificationEvent, m *models.Movement, eq *models.Equipment, emp *models.Employee) notifications.Event {
	return notifications.Event{
		Type:          event,
		AggregateType: notifications.AggregateMovement,
		AggregateID:   strconv.FormatInt(m.ID, 10),
		OccurredAt:    m.OccurredAt,
		Data: movementPayload{
			MovementID:      m.ID,
			Type:            m.Type,
			EquipmentID:     eq.ID.String(),
			Serial:          eq.Serial,
			EquipmentName:   eq.Name,
			EmployeeID:      emp.ID.String(),
			EmployeeName:    emp.FullName(),
			EmployeeEmail:   emp.Email,
			OccurredAt:      m.OccurredAt,
			ChargerIncluded: m.ChargerIncluded,
			Observations:    m.Observations,
			FinalCondition:  m.Condition,
		},
	}
}
