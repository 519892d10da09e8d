package movements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/internal/repo"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
)

// SignatureUpdate carries the only two movement fields that may change after
// insert. Nil values clear the column.
type SignatureUpdate struct {
	DocumentRef *string
	Valid       *bool
}

// Repository is the append-only ledger store. It has no generic update or
// delete; signature changes go through UpdateSignature.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.Movement) error
	FindByID(ctx context.Context, id int64) (*models.Movement, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*models.Movement, error)
	ListAll(ctx context.Context) ([]models.Movement, error)
	ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]models.Movement, error)
	ListByEmployeeEquipment(ctx context.Context, employeeID uuid.UUID) ([]models.Movement, error)
	ListByEquipmentPage(ctx context.Context, equipmentID uuid.UUID, afterID int64, limit int) ([]models.Movement, error)
	UpdateSignature(ctx context.Context, id int64, update SignatureUpdate) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, movement *models.Movement) error {
	return r.DB(ctx).Create(movement).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Movement, error) {
	var m models.Movement
	if err := r.DB(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id int64) (*models.Movement, error) {
	var m models.Movement
	if err := r.ForUpdate(ctx).
		Where("id = ?", id).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) ListAll(ctx context.Context) ([]models.Movement, error) {
	var rows []models.Movement
	if err := r.DB(ctx).
		Order("occurred_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]models.Movement, error) {
	var rows []models.Movement
	if err := r.DB(ctx).
		Where("equipment_id = ?", equipmentID).
		Order("occurred_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByEmployeeEquipment returns the full history of every equipment the
// employee ever appears on, so a replay sees returns made by anyone.
func (r *repository) ListByEmployeeEquipment(ctx context.Context, employeeID uuid.UUID) ([]models.Movement, error) {
	touched := r.DB(ctx).
		Model(&models.Movement{}).
		Select("equipment_id").
		Where("employee_id = ?", employeeID)
	var rows []models.Movement
	if err := r.DB(ctx).
		Where("equipment_id IN (?)", touched).
		Order("occurred_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByEquipmentPage pages one equipment's history by ledger sequence. The
// custody guard never appends a movement dated before the previous one, so
// sequence order matches replay order within an equipment.
func (r *repository) ListByEquipmentPage(ctx context.Context, equipmentID uuid.UUID, afterID int64, limit int) ([]models.Movement, error) {
	query := r.DB(ctx).Where("equipment_id = ?", equipmentID)
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	var rows []models.Movement
	if err := query.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) UpdateSignature(ctx context.Context, id int64, update SignatureUpdate) error {
	res := r.DB(ctx).
		Model(&models.Movement{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"signed_document_ref": update.DocumentRef,
			"signature_valid":     update.Valid,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
