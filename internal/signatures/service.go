package signatures

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/internal/movements"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
)

const (
	commandAttach     = "attach_signature"
	commandInvalidate = "invalidate_signature"
	commandConfirm    = "confirm_signature"

	maxDocumentRefLength = 1024
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Status is the signature view of one movement.
type Status struct {
	MovementID  int64                `json:"movement_id"`
	State       enums.SignatureState `json:"state"`
	DocumentRef *string              `json:"document_ref,omitempty"`
	Valid       *bool                `json:"valid"`
}

// Service drives the proof-of-custody document lifecycle on a movement.
// It never touches equipment availability.
type Service interface {
	AttachSignedDocument(ctx context.Context, movementID int64, documentRef string) (*Status, error)
	Invalidate(ctx context.Context, movementID int64) (*Status, error)
	Confirm(ctx context.Context, movementID int64) (*Status, error)
	State(ctx context.Context, movementID int64) (*Status, error)
}

// StateOf derives the signature state from the two mutable movement columns.
func StateOf(m models.Movement) enums.SignatureState {
	switch {
	case m.SignatureValid != nil && !*m.SignatureValid:
		return enums.SignatureStateRejected
	case m.SignedDocumentRef != nil:
		return enums.SignatureStateSigned
	default:
		return enums.SignatureStateUnsigned
	}
}

func statusOf(m models.Movement) *Status {
	return &Status{
		MovementID:  m.ID,
		State:       StateOf(m),
		DocumentRef: m.SignedDocumentRef,
		Valid:       m.SignatureValid,
	}
}

type ServiceParams struct {
	TxRunner txRunner
	Repo     movements.Repository
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
}

type service struct {
	tx      txRunner
	repo    movements.Repository
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      params.TxRunner,
		repo:    params.Repo,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

func (s *service) AttachSignedDocument(ctx context.Context, movementID int64, documentRef string) (status *Status, err error) {
	defer func() { s.metrics.IncCommand(commandAttach, outcomeOf(err)) }()

	ref := strings.TrimSpace(documentRef)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document reference is required").
			WithDetails(map[string]any{"field": "document_ref"})
	}
	if len(ref) > maxDocumentRefLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "document reference is too long").
			WithDetails(map[string]any{"field": "document_ref"})
	}

	return s.mutate(ctx, movementID, "signed document attached", func(m *models.Movement) (movements.SignatureUpdate, error) {
		if StateOf(*m) == enums.SignatureStateSigned {
			return movements.SignatureUpdate{}, pkgerrors.New(pkgerrors.CodeConflict, "movement already has a signed document")
		}
		return movements.SignatureUpdate{DocumentRef: &ref, Valid: nil}, nil
	})
}

func (s *service) Invalidate(ctx context.Context, movementID int64) (status *Status, err error) {
	defer func() { s.metrics.IncCommand(commandInvalidate, outcomeOf(err)) }()

	return s.mutate(ctx, movementID, "signature invalidated", func(m *models.Movement) (movements.SignatureUpdate, error) {
		switch StateOf(*m) {
		case enums.SignatureStateUnsigned:
			return movements.SignatureUpdate{}, pkgerrors.New(pkgerrors.CodeConflict, "no signed document attached")
		case enums.SignatureStateRejected:
			return movements.SignatureUpdate{}, pkgerrors.New(pkgerrors.CodeConflict, "signature already rejected")
		}
		invalid := false
		return movements.SignatureUpdate{DocumentRef: m.SignedDocumentRef, Valid: &invalid}, nil
	})
}

// Confirm marks a pending signed document as verified.
func (s *service) Confirm(ctx context.Context, movementID int64) (status *Status, err error) {
	defer func() { s.metrics.IncCommand(commandConfirm, outcomeOf(err)) }()

	return s.mutate(ctx, movementID, "signature confirmed", func(m *models.Movement) (movements.SignatureUpdate, error) {
		if StateOf(*m) != enums.SignatureStateSigned || m.SignatureValid != nil {
			return movements.SignatureUpdate{}, pkgerrors.New(pkgerrors.CodeConflict, "signature is not pending confirmation")
		}
		valid := true
		return movements.SignatureUpdate{DocumentRef: m.SignedDocumentRef, Valid: &valid}, nil
	})
}

func (s *service) State(ctx context.Context, movementID int64) (*Status, error) {
	if movementID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id is required")
	}
	m, err := s.repo.FindByID(ctx, movementID)
	if err != nil {
		return nil, movements.MapLookupError(err)
	}
	return statusOf(*m), nil
}

func (s *service) mutate(ctx context.Context, movementID int64, logMsg string, decide func(*models.Movement) (movements.SignatureUpdate, error)) (*Status, error) {
	if movementID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement id is required")
	}

	var movement *models.Movement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		m, err := repo.FindByIDForUpdate(ctx, movementID)
		if err != nil {
			return movements.MapLookupError(err)
		}
		update, err := decide(m)
		if err != nil {
			return err
		}
		if err := repo.UpdateSignature(ctx, m.ID, update); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update signature")
		}
		m.SignedDocumentRef = update.DocumentRef
		m.SignatureValid = update.Valid
		movement = m
		return nil
	})
	if err != nil {
		return nil, err
	}

	status := statusOf(*movement)
	s.logg.Info(s.logg.WithField(s.logg.WithMovementID(ctx, movement.ID), "signature_state", string(status.State)), logMsg)
	return status, nil
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
