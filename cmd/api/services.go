package main

import (
	"fmt"

	"github.com/angelmondragon/equipledger-backend/api/routes"
	"github.com/angelmondragon/equipledger-backend/internal/assignments"
	"github.com/angelmondragon/equipledger-backend/internal/custody"
	"github.com/angelmondragon/equipledger-backend/internal/employees"
	"github.com/angelmondragon/equipledger-backend/internal/equipment"
	"github.com/angelmondragon/equipledger-backend/internal/movements"
	"github.com/angelmondragon/equipledger-backend/internal/notifications"
	"github.com/angelmondragon/equipledger-backend/internal/rentals"
	"github.com/angelmondragon/equipledger-backend/internal/signatures"
	"github.com/angelmondragon/equipledger-backend/pkg/config"
	"github.com/angelmondragon/equipledger-backend/pkg/db"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
)

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, publisher notifications.Publisher, ledgerMetrics *metrics.LedgerMetrics) (routes.Services, error) {
	conn := dbClient.DB()
	equipmentRepo := equipment.NewRepository(conn)
	movementsRepo := movements.NewRepository(conn)
	employeesRepo := employees.NewRepository(conn)

	equipmentSvc, err := equipment.NewService(equipmentRepo)
	if err != nil {
		return routes.Services{}, fmt.Errorf("equipment service: %w", err)
	}
	movementsSvc, err := movements.NewService(movementsRepo)
	if err != nil {
		return routes.Services{}, fmt.Errorf("movements service: %w", err)
	}
	notifier, err := notifications.NewService(notifications.ServiceParams{
		Repo:      notifications.NewRepository(conn),
		Publisher: publisher,
		Logger:    logg,
		Metrics:   ledgerMetrics,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("notifications service: %w", err)
	}
	assignmentsSvc, err := assignments.NewService(assignments.ServiceParams{
		Movements: movementsRepo,
		Equipment: equipmentRepo,
		Employees: employeesRepo,
		Logger:    logg,
		Metrics:   ledgerMetrics,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("assignments service: %w", err)
	}
	custodySvc, err := custody.NewService(custody.ServiceParams{
		TxRunner:            dbClient,
		Equipment:           equipmentRepo,
		Employees:           employeesRepo,
		MovementsRepo:       movementsRepo,
		Movements:           movementsSvc,
		Notifier:            notifier,
		Logger:              logg,
		Metrics:             ledgerMetrics,
		EnforceReturnHolder: cfg.Ledger.EnforceReturnHolder,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("custody service: %w", err)
	}
	rentalsSvc, err := rentals.NewService(rentals.ServiceParams{
		TxRunner:  dbClient,
		Repo:      rentals.NewRepository(conn),
		Equipment: equipmentRepo,
		Notifier:  notifier,
		Logger:    logg,
		Metrics:   ledgerMetrics,
		Config:    cfg.Rentals,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("rentals service: %w", err)
	}
	signaturesSvc, err := signatures.NewService(signatures.ServiceParams{
		TxRunner: dbClient,
		Repo:     movementsRepo,
		Logger:   logg,
		Metrics:  ledgerMetrics,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("signatures service: %w", err)
	}

	return routes.Services{
		Equipment:     equipmentSvc,
		Movements:     movementsSvc,
		Assignments:   assignmentsSvc,
		Custody:       custodySvc,
		Rentals:       rentalsSvc,
		Signatures:    signaturesSvc,
		Notifications: notifier,
	}, nil
}
