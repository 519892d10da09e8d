package employees

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/internal/repo"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
)

// Repository is the read-only employee directory.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Employee, error)
}

type repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var emp models.Employee
	if err := r.DB(ctx).Where("id = ?", id).First(&emp).Error; err != nil {
		return nil, err
	}
	return &emp, nil
}

// FindByIDForUpdate row-locks the employee so concurrent deliveries to the
// same person serialize.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Employee, error) {
	var emp models.Employee
	if err := r.ForUpdate(ctx).Where("id = ?", id).First(&emp).Error; err != nil {
		return nil, err
	}
	return &emp, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Employee, error) {
	out := make(map[uuid.UUID]models.Employee, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Employee
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// MapLookupError converts repository lookup failures into typed errors.
func MapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "employee not found")
	}
	return err
}
