package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/equipledger-backend/internal/assignments"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context) (*assignments.DriftReport, error)
}

// LedgerReconcileJobParams configure the custody drift audit.
type LedgerReconcileJobParams struct {
	Logger     *logger.Logger
	Reconciler reconciler
}

// NewLedgerReconcileJob builds the job that replays the ledger and compares it
// with the cached availability flags. Drift is reported, never repaired.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	return &ledgerReconcileJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
	}, nil
}

type ledgerReconcileJob struct {
	logg       *logger.Logger
	reconciler reconciler
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("ledger reconcile: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"equipment_checked":       report.EquipmentChecked,
		"availability_mismatches": len(report.AvailabilityMismatches),
		"alternation_violations":  len(report.Violations),
		"bijection_holds":         report.BijectionHolds,
	})
	j.logg.Info(logCtx, "ledger reconcile complete")
	return nil
}
