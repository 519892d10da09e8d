package assignments

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/equipledger-backend/internal/employees"
	"github.com/angelmondragon/equipledger-backend/internal/equipment"
	"github.com/angelmondragon/equipledger-backend/internal/movements"
	pkgerrors "github.com/angelmondragon/equipledger-backend/pkg/errors"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
)

const (
	DriftKindAvailability = "availability_mismatch"
	DriftKindAlternation  = "alternation_violation"
	DriftKindBijection    = "bijection"
)

// Service exposes read views and audits built on Reduce.
type Service interface {
	CurrentAssignments(ctx context.Context) ([]Assignment, error)
	Reconcile(ctx context.Context) (*DriftReport, error)
}

// Assignment is one employee currently holding equipment, as the return
// screen lists it.
type Assignment struct {
	EmployeeID     uuid.UUID
	EmployeeName   string
	EmployeeActive bool
	EquipmentID    uuid.UUID
}

// AvailabilityMismatch is equipment whose cached flag disagrees with the ledger.
type AvailabilityMismatch struct {
	EquipmentID  uuid.UUID  `json:"equipment_id"`
	Serial       string     `json:"serial"`
	Available    bool       `json:"available"`
	LedgerHolder *uuid.UUID `json:"ledger_holder,omitempty"`
}

// DriftReport summarises one reconciliation pass. Drift is reported, never repaired.
type DriftReport struct {
	CheckedAt              time.Time              `json:"checked_at"`
	EquipmentChecked       int                    `json:"equipment_checked"`
	UnavailableCount       int                    `json:"unavailable_count"`
	HeldCount              int                    `json:"held_count"`
	MappedEmployees        int                    `json:"mapped_employees"`
	BijectionHolds         bool                   `json:"bijection_holds"`
	AvailabilityMismatches []AvailabilityMismatch `json:"availability_mismatches"`
	Violations             []Violation            `json:"violations"`
}

// Clean reports whether the pass found no drift at all.
func (r DriftReport) Clean() bool {
	return r.BijectionHolds && len(r.AvailabilityMismatches) == 0 && len(r.Violations) == 0
}

type ServiceParams struct {
	Movements movements.Repository
	Equipment equipment.Repository
	Employees employees.Repository
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
	Now       func() time.Time
}

type service struct {
	movements movements.Repository
	equipment equipment.Repository
	employees employees.Repository
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Movements == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	if params.Equipment == nil {
		return nil, fmt.Errorf("equipment repository required")
	}
	if params.Employees == nil {
		return nil, fmt.Errorf("employees repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		movements: params.Movements,
		equipment: params.Equipment,
		employees: params.Employees,
		logg:      params.Logger,
		metrics:   params.Metrics,
		now:       now,
	}, nil
}

// CurrentAssignments lists holders sorted by employee id. An employee missing
// from the directory is still listed, without a name.
func (s *service) CurrentAssignments(ctx context.Context) ([]Assignment, error) {
	rows, err := s.movements.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ledger")
	}
	byEmployee := Reduce(rows).ByEmployee

	ids := make([]uuid.UUID, 0, len(byEmployee))
	for employeeID := range byEmployee {
		ids = append(ids, employeeID)
	}
	directory, err := s.employees.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load employees")
	}

	out := make([]Assignment, 0, len(byEmployee))
	for employeeID, equipmentID := range byEmployee {
		a := Assignment{EmployeeID: employeeID, EquipmentID: equipmentID}
		if emp, ok := directory[employeeID]; ok {
			a.EmployeeName = emp.FullName()
			a.EmployeeActive = emp.Active
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EmployeeID.String() < out[j].EmployeeID.String()
	})
	return out, nil
}

func (s *service) Reconcile(ctx context.Context) (*DriftReport, error) {
	rows, err := s.movements.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ledger")
	}
	catalog, err := s.equipment.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load equipment")
	}

	snap := Reduce(rows)
	report := &DriftReport{
		CheckedAt:              s.now().UTC(),
		EquipmentChecked:       len(catalog),
		HeldCount:              len(snap.ByEquipment),
		MappedEmployees:        len(snap.ByEmployee),
		AvailabilityMismatches: []AvailabilityMismatch{},
		Violations:             snap.Violations,
	}
	if report.Violations == nil {
		report.Violations = []Violation{}
	}

	for _, eq := range catalog {
		if !eq.Available {
			report.UnavailableCount++
		}
		holder, held := snap.ByEquipment[eq.ID]
		if eq.Available != held {
			continue
		}
		mismatch := AvailabilityMismatch{
			EquipmentID: eq.ID,
			Serial:      eq.Serial,
			Available:   eq.Available,
		}
		if held {
			h := holder
			mismatch.LedgerHolder = &h
		}
		report.AvailabilityMismatches = append(report.AvailabilityMismatches, mismatch)
	}
	report.BijectionHolds = report.UnavailableCount == report.MappedEmployees

	s.publish(ctx, report)
	return report, nil
}

func (s *service) publish(ctx context.Context, report *DriftReport) {
	s.metrics.SetDrift(DriftKindAvailability, len(report.AvailabilityMismatches))
	s.metrics.SetDrift(DriftKindAlternation, len(report.Violations))
	bijection := 0
	if !report.BijectionHolds {
		bijection = 1
	}
	s.metrics.SetDrift(DriftKindBijection, bijection)

	if report.Clean() {
		s.logg.Info(ctx, "ledger reconciliation clean")
		return
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"availability_mismatches": len(report.AvailabilityMismatches),
		"alternation_violations":  len(report.Violations),
		"unavailable_count":       report.UnavailableCount,
		"mapped_employees":        report.MappedEmployees,
	})
	s.logg.Warn(ctx, "ledger drift detected")
}
