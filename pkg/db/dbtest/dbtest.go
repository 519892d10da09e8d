// Package dbtest opens isolated in-memory sqlite databases carrying the full
// ledger schema for repository and service tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
)

// Open returns a fresh schema-migrated database. The pool is capped at one
// connection so concurrent transactions serialize the way row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

// EquipmentOption tweaks a seeded equipment row.
type EquipmentOption func(*models.Equipment)

func WithStatus(status enums.EquipmentStatus) EquipmentOption {
	return func(e *models.Equipment) { e.Status = status }
}

func Unavailable() EquipmentOption {
	return func(e *models.Equipment) { e.Available = false }
}

func Inactive() EquipmentOption {
	return func(e *models.Equipment) { e.Active = false }
}

func ProviderOwned() EquipmentOption {
	return func(e *models.Equipment) {
		provider := uuid.New()
		e.ProviderID = &provider
	}
}

// SeedEquipment inserts an active, operational, available equipment row.
func SeedEquipment(t testing.TB, db *gorm.DB, opts ...EquipmentOption) models.Equipment {
	t.Helper()
	eq := models.Equipment{
		ID:        uuid.New(),
		Serial:    "SN-" + uuid.NewString()[:8],
		Name:      "Laptop",
		Status:    enums.EquipmentStatusOperational,
		Available: true,
		Active:    true,
	}
	for _, opt := range opts {
		opt(&eq)
	}
	require.NoError(t, db.Create(&eq).Error)
	return eq
}

// SeedEmployee inserts an employee row; active controls the active flag.
func SeedEmployee(t testing.TB, db *gorm.DB, active bool) models.Employee {
	t.Helper()
	emp := models.Employee{
		ID:        uuid.New(),
		FirstName: "Ana",
		LastName:  "Ruiz",
		Email:     "ana@example.com",
		Active:    active,
	}
	require.NoError(t, db.Create(&emp).Error)
	return emp
}

// SeedMovement appends a raw movement without going through the custody guard.
func SeedMovement(t testing.TB, db *gorm.DB, equipmentID, employeeID uuid.UUID, typ enums.MovementType, at time.Time) models.Movement {
	t.Helper()
	m := models.Movement{
		EquipmentID: equipmentID,
		EmployeeID:  employeeID,
		Type:        typ,
		OccurredAt:  at.UTC(),
	}
	if typ == enums.MovementTypeReturn {
		cond := enums.EquipmentStatusOperational
		m.Condition = &cond
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}
