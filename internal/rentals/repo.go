package rentals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/internal/repo"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// Repository persists rental contracts. Contracts are never deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, contract *models.RentalContract) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RentalContract, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RentalContract, error)
	ListActive(ctx context.Context) ([]models.RentalContract, error)
	ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]models.RentalContract, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ContractStatus) error
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

func (r *repository) Create(ctx context.Context, contract *models.RentalContract) error {
	return r.DB(ctx).Create(contract).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RentalContract, error) {
	var c models.RentalContract
	if err := r.DB(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.RentalContract, error) {
	var c models.RentalContract
	if err := r.ForUpdate(ctx).
		Where("id = ?", id).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.RentalContract, error) {
	var rows []models.RentalContract
	if err := r.DB(ctx).
		Where("status = ?", enums.ContractStatusActive).
		Order("start_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]models.RentalContract, error) {
	var rows []models.RentalContract
	if err := r.DB(ctx).
		Where("equipment_id = ?", equipmentID).
		Order("start_date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.ContractStatus) error {
	res := r.DB(ctx).
		Model(&models.RentalContract{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
