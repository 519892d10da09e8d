package equipment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
)

// Service is the read surface of the equipment catalog.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Equipment, error)
	List(ctx context.Context) ([]models.Equipment, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("equipment repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Equipment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "equipment id is required")
	}
	eq, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, MapLookupError(err)
	}
	return eq, nil
}

func (s *service) List(ctx context.Context) ([]models.Equipment, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list equipment")
	}
	return rows, nil
}

// MapLookupError converts repository lookup failures into typed errors.
func MapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "equipment not found")
	}
	return err
}
