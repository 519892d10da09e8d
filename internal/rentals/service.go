package rentals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/internal/equipment"
	"github.com/angelmondragon/equipledger-backend/internal/notifications"
	"github.com/angelmondragon/equipledger-backend/pkg/config"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
)

const (
	commandCreate     = "create_rental"
	commandCancel     = "cancel_rental"
	commandReactivate = "reactivate_rental"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the rental conflict resolver.
type Service interface {
	CreateContract(ctx context.Context, cmd CreateContractCommand) (*CreateResult, error)
	CancelContract(ctx context.Context, id uuid.UUID) (*models.RentalContract, error)
	ReactivateContract(ctx context.Context, id uuid.UUID) (*models.RentalContract, error)
	GetContract(ctx context.Context, id uuid.UUID) (*models.RentalContract, error)
	ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]models.RentalContract, error)
	OccupiedEquipment(ctx context.Context, asOf time.Time) ([]uuid.UUID, error)
	AvailableEquipment(ctx context.Context, asOf time.Time, excludingContractID *uuid.UUID) ([]models.Equipment, error)
}

// CreateContractCommand carries a new contract. A nil EndDate is open-ended.
type CreateContractCommand struct {
	EquipmentID      uuid.UUID
	ClientName       string
	ClientTaxID      string
	ClientEmail      string
	ClientPhone      string
	Price            decimal.Decimal
	Currency         enums.Currency
	PaymentFrequency enums.PaymentFrequency
	StartDate        time.Time
	EndDate          *time.Time
	InvoiceRef       *string
}

// CreateResult is the committed contract plus the notification outcome.
type CreateResult struct {
	Contract     models.RentalContract `json:"contract"`
	Notification enums.DeliveryStatus  `json:"notification"`
}

type ServiceParams struct {
	TxRunner  txRunner
	Repo      Repository
	Equipment equipment.Repository
	Notifier  notifications.Dispatcher
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
	Config    config.RentalsConfig
}

type service struct {
	tx          txRunner
	repo        Repository
	equipment   equipment.Repository
	notifier    notifications.Dispatcher
	logg        *logger.Logger
	metrics     *metrics.LedgerMetrics
	useInterval bool
}

func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("rentals repository required")
	}
	if params.Equipment == nil {
		return nil, fmt.Errorf("equipment repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:          params.TxRunner,
		repo:        params.Repo,
		equipment:   params.Equipment,
		notifier:    params.Notifier,
		logg:        params.Logger,
		metrics:     params.Metrics,
		useInterval: params.Config.UseInterval(),
	}, nil
}

func (s *service) CreateContract(ctx context.Context, cmd CreateContractCommand) (result *CreateResult, err error) {
	defer func() { s.metrics.IncCommand(commandCreate, outcomeOf(err)) }()

	contract, err := buildContract(cmd)
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithEquipmentID(ctx, cmd.EquipmentID.String())

	var eq *models.Equipment
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		eq, err = s.equipment.WithTx(tx).FindByIDForUpdate(ctx, cmd.EquipmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return equipment.MapLookupError(err)
			}
			return fmt.Errorf("lock equipment: %w", err)
		}
		if !eq.Active {
			return pkgerrors.New(pkgerrors.CodeValidation, "equipment inactive")
		}
		if eq.Status != enums.EquipmentStatusOperational {
			return pkgerrors.New(pkgerrors.CodeValidation, "equipment not operational").
				WithDetails(map[string]any{"status": eq.Status})
		}
		if eq.ProviderOwned() {
			return pkgerrors.New(pkgerrors.CodeValidation, "provider-owned equipment cannot be rented")
		}

		existing, err := s.repo.WithTx(tx).ListByEquipment(ctx, eq.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load equipment contracts")
		}
		if blocking := s.blocking(existing, contract); blocking != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "equipment already rented for the requested dates").
				WithDetails(map[string]any{"contract_id": blocking.ID.String()})
		}

		if err := s.repo.WithTx(tx).Create(ctx, contract); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create rental contract")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithContractID(logCtx, contract.ID.String()), "rental contract created")
	status := s.notifier.Notify(ctx, contractEvent(contract, eq))
	return &CreateResult{Contract: *contract, Notification: status}, nil
}

// blocking returns the Active contract that prevents candidate from being
// created under the configured occupancy rule.
func (s *service) blocking(existing []models.RentalContract, candidate *models.RentalContract) *models.RentalContract {
	if s.useInterval {
		if overlaps := OverlappingActive(existing, windowOf(*candidate)); len(overlaps) > 0 {
			return &overlaps[0]
		}
		return nil
	}
	for i := range existing {
		if Occupies(existing[i], candidate.StartDate) {
			return &existing[i]
		}
	}
	return nil
}

func (s *service) CancelContract(ctx context.Context, id uuid.UUID) (contract *models.RentalContract, err error) {
	defer func() { s.metrics.IncCommand(commandCancel, outcomeOf(err)) }()
	return s.transition(ctx, id, enums.ContractStatusCancelled, "contract already cancelled")
}

// ReactivateContract does not re-validate occupancy. Overlaps it creates are
// logged here and picked up by the overlap audit job.
func (s *service) ReactivateContract(ctx context.Context, id uuid.UUID) (contract *models.RentalContract, err error) {
	defer func() { s.metrics.IncCommand(commandReactivate, outcomeOf(err)) }()
	return s.transition(ctx, id, enums.ContractStatusActive, "contract already active")
}

func (s *service) transition(ctx context.Context, id uuid.UUID, target enums.ContractStatus, alreadyMsg string) (*models.RentalContract, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}

	var (
		contract *models.RentalContract
		overlaps []models.RentalContract
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		contract, err = s.repo.WithTx(tx).FindByIDForUpdate(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		if contract.Status == target {
			return pkgerrors.New(pkgerrors.CodeConflict, alreadyMsg)
		}
		if target == enums.ContractStatusActive {
			siblings, err := s.repo.WithTx(tx).ListByEquipment(ctx, contract.EquipmentID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load equipment contracts")
			}
			for _, c := range OverlappingActive(siblings, windowOf(*contract)) {
				if c.ID != contract.ID {
					overlaps = append(overlaps, c)
				}
			}
		}
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, contract.ID, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update contract status")
		}
		contract.Status = target
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithContractID(ctx, contract.ID.String()), map[string]any{
		"equipment_id": contract.EquipmentID.String(),
		"status":       string(target),
	})
	if len(overlaps) > 0 {
		ids := make([]string, 0, len(overlaps))
		for _, c := range overlaps {
			ids = append(ids, c.ID.String())
		}
		s.logg.Warn(s.logg.WithField(logCtx, "overlapping_contracts", ids), "reactivated contract overlaps active contracts")
	}
	s.logg.Info(logCtx, "rental contract status changed")
	return contract, nil
}

func (s *service) GetContract(ctx context.Context, id uuid.UUID) (*models.RentalContract, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "contract id is required")
	}
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return c, nil
}

func (s *service) ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]models.RentalContract, error) {
	if equipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "equipment id is required")
	}
	rows, err := s.repo.ListByEquipment(ctx, equipmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list rental contracts")
	}
	return rows, nil
}

func (s *service) OccupiedEquipment(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	active, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active contracts")
	}
	return sortedIDs(ComputeOccupied(active, asOf)), nil
}

func (s *service) AvailableEquipment(ctx context.Context, asOf time.Time, excludingContractID *uuid.UUID) ([]models.Equipment, error) {
	owned, err := s.equipment.ListOwned(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list owned equipment")
	}
	contracts, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active contracts")
	}
	if excludingContractID != nil {
		excluded, err := s.repo.FindByID(ctx, *excludingContractID)
		if err != nil {
			return nil, mapLookupError(err)
		}
		if excluded.Status != enums.ContractStatusActive {
			contracts = append(contracts, *excluded)
		}
	}
	return ComputeAvailable(owned, contracts, asOf, excludingContractID), nil
}

func buildContract(cmd CreateContractCommand) (*models.RentalContract, error) {
	fail := func(field, msg string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
	}
	if cmd.EquipmentID == uuid.Nil {
		return nil, fail("equipment_id", "equipment id is required")
	}
	clientName := strings.TrimSpace(cmd.ClientName)
	if clientName == "" {
		return nil, fail("client_name", "client name is required")
	}
	if !cmd.Price.IsPositive() {
		return nil, fail("price", "price must be positive")
	}
	if !cmd.Currency.IsValid() {
		return nil, fail("currency", fmt.Sprintf("invalid currency %q", cmd.Currency))
	}
	if !cmd.PaymentFrequency.IsValid() {
		return nil, fail("payment_frequency", fmt.Sprintf("invalid payment frequency %q", cmd.PaymentFrequency))
	}
	if cmd.StartDate.IsZero() {
		return nil, fail("start_date", "start date is required")
	}
	start := DateOf(cmd.StartDate)
	var end *time.Time
	if cmd.EndDate != nil {
		e := DateOf(*cmd.EndDate)
		if e.Before(start) {
			return nil, fail("end_date", "end date must not be before start date")
		}
		end = &e
	}
	var invoice *string
	if cmd.InvoiceRef != nil && strings.TrimSpace(*cmd.InvoiceRef) != "" {
		ref := strings.TrimSpace(*cmd.InvoiceRef)
		invoice = &ref
	}

	return &models.RentalContract{
		EquipmentID:      cmd.EquipmentID,
		ClientName:       clientName,
		ClientTaxID:      strings.TrimSpace(cmd.ClientTaxID),
		ClientEmail:      strings.TrimSpace(cmd.ClientEmail),
		ClientPhone:      strings.TrimSpace(cmd.ClientPhone),
		Price:            cmd.Price.Round(cmd.Currency.MinorUnits()),
		Currency:         cmd.Currency,
		PaymentFrequency: cmd.PaymentFrequency,
		StartDate:        start,
		EndDate:          end,
		Status:           enums.ContractStatusActive,
		InvoiceRef:       invoice,
	}, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "rental contract not found")
	}
	return err
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

type contractPayload struct {
	ContractID       string                 `json:"contract_id"`
	EquipmentID      string                 `json:"equipment_id"`
	Serial           string                 `json:"serial"`
	ClientName       string                 `json:"client_name"`
	ClientEmail      string                 `json:"client_email,omitempty"`
	Price            decimal.Decimal        `json:"price"`
	Currency         enums.Currency         `json:"currency"`
	PaymentFrequency enums.PaymentFrequency `json:"payment_frequency"`
	StartDate        string                 `json:"start_date"`
	EndDate          *string                `json:"end_date,omitempty"`
}

func contractEvent(c *models.RentalContract, eq *models.Equipment) notifications.Event {
	payload := contractPayload{
		ContractID:       c.ID.String(),
		EquipmentID:      c.EquipmentID.String(),
		Serial:           eq.Serial,
		ClientName:       c.ClientName,
		ClientEmail:      c.ClientEmail,
		Price:            c.Price,
		Currency:         c.Currency,
		PaymentFrequency: c.PaymentFrequency,
		StartDate:        c.StartDate.Format(time.DateOnly),
	}
	if c.EndDate != nil {
		end := c.EndDate.Format(time.DateOnly)
		payload.EndDate = &end
	}
	return notifications.Event{
		Type:          enums.NotificationEventRentalCreated,
		AggregateType: notifications.AggregateRentalContract,
		AggregateID:   c.ID.String(),
		OccurredAt:    c.CreatedAt,
		Data:          payload,
	}
}
