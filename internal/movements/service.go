package movements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/pagination"
)

// Service defines the ledger store operations.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.Movement, error)
	Get(ctx context.Context, id int64) (*models.Movement, error)
	History(ctx context.Context, equipmentID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

type service struct {
	repo Repository
}

// AppendInput captures the immutable data a movement requires.
type AppendInput struct {
	EquipmentID     uuid.UUID
	EmployeeID      uuid.UUID
	Type            enums.MovementType
	OccurredAt      time.Time
	ChargerIncluded bool
	Observations    string
	Condition       *enums.EquipmentStatus
}

// HistoryPage is one page of an equipment's custody history.
type HistoryPage struct {
	Items  []models.Movement `json:"items"`
	Cursor string            `json:"cursor"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	return &service{repo: repo}, nil
}

// Append inserts a new fact inside the caller's transaction. The caller owns
// locking and the alternation precondition.
func (s *service) Append(ctx context.Context, tx *gorm.DB, input AppendInput) (*models.Movement, error) {
	if err := ValidateAppend(input); err != nil {
		return nil, err
	}

	movement := &models.Movement{
		EquipmentID:     input.EquipmentID,
		EmployeeID:      input.EmployeeID,
		Type:            input.Type,
		OccurredAt:      input.OccurredAt.UTC(),
		ChargerIncluded: input.ChargerIncluded,
		Observations:    strings.TrimSpace(input.Observations),
		Condition:       input.Condition,
	}
	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "append movement")
	}
	return movement, nil
}

// ValidateAppend checks required fields and the type-specific condition rule.
func ValidateAppend(input AppendInput) error {
	if input.EquipmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "equipment id is required")
	}
	if input.EmployeeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "employee id is required")
	}
	if input.OccurredAt.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "timestamp is required")
	}
	switch input.Type {
	case enums.MovementTypeDelivery:
		if input.Condition != nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "condition is only allowed on a return").
				WithDetails(map[string]any{"field": "final_condition"})
		}
	case enums.MovementTypeReturn:
		if input.Condition == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "final condition is required on a return").
				WithDetails(map[string]any{"field": "final_condition"})
		}
		if !input.Condition.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid final condition %q", *input.Condition)).
				WithDetails(map[string]any{"field": "final_condition"})
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid movement type %q", input.Type))
	}
	return nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Movement, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id is required")
	}
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, MapLookupError(err)
	}
	return m, nil
}

func (s *service) History(ctx context.Context, equipmentID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if equipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "equipment id is required")
	}
	afterID, err := pagination.ParseSeqCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	normalized := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByEquipmentPage(ctx, equipmentID, afterID, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list movements")
	}

	page := &HistoryPage{Items: rows}
	if len(rows) > normalized {
		page.Items = rows[:normalized]
		page.Cursor = pagination.EncodeSeqCursor(page.Items[normalized-1].ID)
	}
	return page, nil
}

// MapLookupError converts repository lookup failures into typed errors.
func MapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "movement not found")
	}
	return err
}
