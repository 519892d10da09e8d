package assignments

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/equipledger-backend/internal/employees"
	"github.com/angelmondragon/equipledger-backend/internal/equipment"
	"github.com/angelmondragon/equipledger-backend/internal/movements"
	"github.com/angelmondragon/equipledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
)

func newTestService(t *testing.T, db *gorm.DB, buf *bytes.Buffer) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Movements: movements.NewRepository(db),
		Equipment: equipment.NewRepository(db),
		Employees: employees.NewRepository(db),
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: buf}),
		Metrics:   metrics.NewLedgerMetrics(prometheus.NewRegistry()),
		Now:       func() time.Time { return t0 },
	})
	require.NoError(t, err)
	return svc
}

func TestCurrentAssignmentsFromLedger(t *testing.T) {
	db := dbtest.Open(t)
	e1 := dbtest.SeedEquipment(t, db, dbtest.Unavailable())
	e2 := dbtest.SeedEquipment(t, db)
	u1 := dbtest.SeedEmployee(t, db, true)
	u2 := dbtest.SeedEmployee(t, db, true)

	dbtest.SeedMovement(t, db, e1.ID, u1.ID, enums.MovementTypeDelivery, t0)
	dbtest.SeedMovement(t, db, e2.ID, u2.ID, enums.MovementTypeDelivery, t0.Add(time.Minute))
	dbtest.SeedMovement(t, db, e2.ID, u2.ID, enums.MovementTypeReturn, t0.Add(2*time.Minute))

	svc := newTestService(t, db, &bytes.Buffer{})
	got, err := svc.CurrentAssignments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, Assignment{
		EmployeeID:     u1.ID,
		EmployeeName:   u1.FullName(),
		EmployeeActive: true,
		EquipmentID:    e1.ID,
	}, got[0])

	again, err := svc.CurrentAssignments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestCurrentAssignmentsKeepsUnknownEmployees(t *testing.T) {
	db := dbtest.Open(t)
	e1 := dbtest.SeedEquipment(t, db, dbtest.Unavailable())
	ghost := uuid.New()
	dbtest.SeedMovement(t, db, e1.ID, ghost, enums.MovementTypeDelivery, t0)

	got, err := newTestService(t, db, &bytes.Buffer{}).CurrentAssignments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ghost, got[0].EmployeeID)
	assert.Empty(t, got[0].EmployeeName)
}

func TestReconcileCleanLedger(t *testing.T) {
	db := dbtest.Open(t)
	e1 := dbtest.SeedEquipment(t, db, dbtest.Unavailable())
	dbtest.SeedEquipment(t, db)
	u1 := dbtest.SeedEmployee(t, db, true)
	dbtest.SeedMovement(t, db, e1.ID, u1.ID, enums.MovementTypeDelivery, t0)

	report, err := newTestService(t, db, &bytes.Buffer{}).Reconcile(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Clean())
	assert.True(t, report.BijectionHolds)
	assert.Equal(t, 1, report.UnavailableCount)
	assert.Equal(t, 1, report.MappedEmployees)
	assert.Equal(t, 2, report.EquipmentChecked)
	assert.Equal(t, t0, report.CheckedAt)
}

func TestReconcileReportsDriftWithoutRepairing(t *testing.T) {
	db := dbtest.Open(t)
	// flag says assigned but the ledger has no delivery
	stale := dbtest.SeedEquipment(t, db, dbtest.Unavailable())
	// flag says available but the ledger holds it
	held := dbtest.SeedEquipment(t, db)
	u1 := dbtest.SeedEmployee(t, db, true)
	dbtest.SeedMovement(t, db, held.ID, u1.ID, enums.MovementTypeDelivery, t0)

	buf := &bytes.Buffer{}
	report, err := newTestService(t, db, buf).Reconcile(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())
	require.Len(t, report.AvailabilityMismatches, 2)

	byID := map[string]AvailabilityMismatch{}
	for _, m := range report.AvailabilityMismatches {
		byID[m.EquipmentID.String()] = m
	}
	assert.Nil(t, byID[stale.ID.String()].LedgerHolder)
	require.NotNil(t, byID[held.ID.String()].LedgerHolder)
	assert.Equal(t, u1.ID, *byID[held.ID.String()].LedgerHolder)
	assert.Contains(t, buf.String(), "ledger drift detected")

	repo := equipment.NewRepository(db)
	reloaded, err := repo.FindByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.Available, "reconcile must not repair the flag")
}

func TestReconcileReportsAlternationViolations(t *testing.T) {
	db := dbtest.Open(t)
	e1 := dbtest.SeedEquipment(t, db)
	u1 := dbtest.SeedEmployee(t, db, true)
	dbtest.SeedMovement(t, db, e1.ID, u1.ID, enums.MovementTypeReturn, t0)

	report, err := newTestService(t, db, &bytes.Buffer{}).Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, ViolationOrphanReturn, report.Violations[0].Kind)
	assert.Empty(t, report.AvailabilityMismatches)
}

func TestReconcileFlagsEmployeeHoldingTwoItems(t *testing.T) {
	db := dbtest.Open(t)
	e1 := dbtest.SeedEquipment(t, db, dbtest.Unavailable())
	e2 := dbtest.SeedEquipment(t, db, dbtest.Unavailable())
	u1 := dbtest.SeedEmployee(t, db, true)
	dbtest.SeedMovement(t, db, e1.ID, u1.ID, enums.MovementTypeDelivery, t0)
	dbtest.SeedMovement(t, db, e2.ID, u1.ID, enums.MovementTypeDelivery, t0.Add(time.Minute))

	report, err := newTestService(t, db, &bytes.Buffer{}).Reconcile(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Clean())
	assert.False(t, report.BijectionHolds)
	assert.Empty(t, report.AvailabilityMismatches)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, ViolationSecondHolding, report.Violations[0].Kind)
	assert.Equal(t, e2.ID, report.Violations[0].EquipmentID)
}
