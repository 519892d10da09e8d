package equipment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/internal/repo"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// Repository exposes the equipment catalog. MarkAssigned and MarkReturned are
// the only writers of the cached availability flag.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Equipment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Equipment, error)
	List(ctx context.Context) ([]models.Equipment, error)
	ListOwned(ctx context.Context) ([]models.Equipment, error)
	MarkAssigned(ctx context.Context, id uuid.UUID) error
	MarkReturned(ctx context.Context, id uuid.UUID, condition enums.EquipmentStatus) error
}

type repository struct {
	repo.Base
}

// NewRepository returns an equipment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Equipment, error) {
	var eq models.Equipment
	if err := r.DB(ctx).Where("id = ?", id).First(&eq).Error; err != nil {
		return nil, err
	}
	return &eq, nil
}

// FindByIDForUpdate locks the equipment row until the surrounding transaction ends.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Equipment, error) {
	var eq models.Equipment
	if err := r.ForUpdate(ctx).
		Where("id = ?", id).
		First(&eq).Error; err != nil {
		return nil, err
	}
	return &eq, nil
}

func (r *repository) List(ctx context.Context) ([]models.Equipment, error) {
	var rows []models.Equipment
	if err := r.DB(ctx).Order("serial ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOwned returns active equipment that is not provider-owned, the pool the
// rental ledger draws from.
func (r *repository) ListOwned(ctx context.Context) ([]models.Equipment, error) {
	var rows []models.Equipment
	if err := r.DB(ctx).
		Where("active = ? AND provider_id IS NULL", true).
		Order("serial ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkAssigned(ctx context.Context, id uuid.UUID) error {
	return r.updateRow(ctx, id, map[string]any{
		"available":  false,
		"updated_at": time.Now().UTC(),
	})
}

func (r *repository) MarkReturned(ctx context.Context, id uuid.UUID, condition enums.EquipmentStatus) error {
	return r.updateRow(ctx, id, map[string]any{
		"available":  true,
		"status":     condition,
		"updated_at": time.Now().UTC(),
	})
}

func (r *repository) updateRow(ctx context.Context, id uuid.UUID, values map[string]any) error {
	res := r.DB(ctx).Model(&models.Equipment{}).Where("id = ?", id).UpdateColumns(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
