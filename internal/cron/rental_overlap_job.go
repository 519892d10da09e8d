package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/equipledger-backend/internal/rentals"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
)

const driftKindRentalOverlap = "rental_overlap"

type ownedEquipmentLister interface {
	ListOwned(ctx context.Context) ([]models.Equipment, error)
}

type contractLister interface {
	ListByEquipment(ctx context.Context, equipmentID uuid.UUID) ([]models.RentalContract, error)
}

// RentalOverlapJobParams configure the rental overlap audit.
type RentalOverlapJobParams struct {
	Logger    *logger.Logger
	Equipment ownedEquipmentLister
	Contracts contractLister
	Metrics   *metrics.LedgerMetrics
}

// NewRentalOverlapJob builds the job that finds equipment with Active
// contracts whose date ranges intersect, e.g. after a reactivation.
func NewRentalOverlapJob(params RentalOverlapJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Equipment == nil {
		return nil, fmt.Errorf("equipment lister required")
	}
	if params.Contracts == nil {
		return nil, fmt.Errorf("contracts lister required")
	}
	return &rentalOverlapJob{
		logg:      params.Logger,
		equipment: params.Equipment,
		contracts: params.Contracts,
		metrics:   params.Metrics,
	}, nil
}

type rentalOverlapJob struct {
	logg      *logger.Logger
	equipment ownedEquipmentLister
	contracts contractLister
	metrics   *metrics.LedgerMetrics
}

func (j *rentalOverlapJob) Name() string { return "rental-overlap-audit" }

func (j *rentalOverlapJob) Run(ctx context.Context) error {
	owned, err := j.equipment.ListOwned(ctx)
	if err != nil {
		return fmt.Errorf("list owned equipment: %w", err)
	}

	var (
		errs        error
		overlapping int
	)
	for _, eq := range owned {
		contracts, err := j.contracts.ListByEquipment(ctx, eq.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("list contracts for %s: %w", eq.ID, err))
			continue
		}
		pairs := overlappingPairs(contracts)
		if len(pairs) == 0 {
			continue
		}
		overlapping++
		logCtx := j.logg.WithFields(j.logg.WithEquipmentID(ctx, eq.ID.String()), map[string]any{
			"serial":   eq.Serial,
			"overlaps": pairs,
		})
		j.logg.Warn(logCtx, "active rental contracts overlap")
	}

	j.metrics.SetDrift(driftKindRentalOverlap, overlapping)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"equipment_checked":     len(owned),
		"equipment_overlapping": overlapping,
	})
	j.logg.Info(logCtx, "rental overlap audit complete")
	return errs
}

// overlappingPairs lists "a/b" contract id pairs of Active contracts sharing a day.
func overlappingPairs(contracts []models.RentalContract) []string {
	var pairs []string
	for i, c := range contracts {
		if c.Status != enums.ContractStatusActive {
			continue
		}
		window := rentals.Window{Start: c.StartDate, End: c.EndDate}
		for _, other := range rentals.OverlappingActive(contracts[i+1:], window) {
			pairs = append(pairs, c.ID.String()+"/"+other.ID.String())
		}
	}
	return pairs
}
