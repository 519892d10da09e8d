package cron

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/equipledger-backend/internal/assignments"
	"github.com/angelmondragon/equipledger-backend/pkg/db/models"
	"github.com/angelmondragon/equipledger-backend/pkg/enums"
	"github.com/angelmondragon/equipledger-backend/pkg/logger"
	"github.com/angelmondragon/equipledger-backend/pkg/metrics"
)

type fakeReconciler struct {
	report *assignments.DriftReport
	err    error
	calls  int
}

func (f *fakeReconciler) Reconcile(context.Context) (*assignments.DriftReport, error) {
	f.calls++
	return f.report, f.err
}

func TestLedgerReconcileJob(t *testing.T) {
	buf := &bytes.Buffer{}
	rec := &fakeReconciler{report: &assignments.DriftReport{EquipmentChecked: 4, BijectionHolds: true}}
	job, err := NewLedgerReconcileJob(LedgerReconcileJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: buf}),
		Reconciler: rec,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if job.Name() != "ledger-reconcile" {
		t.Fatalf("unexpected job name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if rec.calls != 1 {
		t.Fatalf("expected one reconcile call, got %d", rec.calls)
	}
	if !strings.Contains(buf.String(), "ledger reconcile complete") {
		t.Fatalf("expected completion log, got %s", buf.String())
	}

	rec.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected reconcile failure to surface")
	}
}

type fakeOwned struct {
	rows []models.Equipment
}

func (f *fakeOwned) ListOwned(context.Context) ([]models.Equipment, error) { return f.rows, nil }

type fakeContracts struct {
	byEquipment map[uuid.UUID][]models.RentalContract
	failFor     uuid.UUID
}

func (f *fakeContracts) ListByEquipment(_ context.Context, id uuid.UUID) ([]models.RentalContract, error) {
	if id == f.failFor {
		return nil, errors.New("query failed")
	}
	return f.byEquipment[id], nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRentalOverlapJobReportsOverlapsAndKeepsGoing(t *testing.T) {
	clean, overlapping, broken := uuid.New(), uuid.New(), uuid.New()
	end := date(2025, 3, 31)
	contracts := &fakeContracts{
		byEquipment: map[uuid.UUID][]models.RentalContract{
			clean: {
				{ID: uuid.New(), EquipmentID: clean, Status: enums.ContractStatusActive, StartDate: date(2025, 1, 1), EndDate: &end},
				{ID: uuid.New(), EquipmentID: clean, Status: enums.ContractStatusActive, StartDate: date(2025, 4, 1)},
				{ID: uuid.New(), EquipmentID: clean, Status: enums.ContractStatusCancelled, StartDate: date(2025, 2, 1)},
			},
			overlapping: {
				{ID: uuid.New(), EquipmentID: overlapping, Status: enums.ContractStatusActive, StartDate: date(2025, 1, 1)},
				{ID: uuid.New(), EquipmentID: overlapping, Status: enums.ContractStatusActive, StartDate: date(2025, 6, 1)},
			},
		},
		failFor: broken,
	}

	buf := &bytes.Buffer{}
	reg := prometheus.NewRegistry()
	job, err := NewRentalOverlapJob(RentalOverlapJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test", Output: buf}),
		Equipment: &fakeOwned{rows: []models.Equipment{{ID: clean}, {ID: broken}, {ID: overlapping}}},
		Contracts: contracts,
		Metrics:   metrics.NewLedgerMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "query failed") {
		t.Fatalf("expected per-equipment failure to surface, got %v", err)
	}
	if !strings.Contains(buf.String(), "active rental contracts overlap") {
		t.Fatal("expected overlap warning")
	}
	if strings.Count(buf.String(), "active rental contracts overlap") != 1 {
		t.Fatal("expected exactly one equipment flagged")
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var gauge float64 = -1
	for _, mf := range mfs {
		if mf.GetName() != "ledger_drift_items" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "kind" && label.GetValue() == driftKindRentalOverlap {
					gauge = m.GetGauge().GetValue()
				}
			}
		}
	}
	if gauge != 1 {
		t.Fatalf("expected rental_overlap gauge 1, got %v", gauge)
	}
}

type fakeRedisStore struct {
	values map[string]string
}

func (f *fakeRedisStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) DelIfEquals(_ context.Context, key, value string) (bool, error) {
	if v, ok := f.values[key]; !ok || v != value {
		return false, nil
	}
	delete(f.values, key)
	return true, nil
}

func TestRedisLockIsExclusiveAndLeaseScoped(t *testing.T) {
	store := &fakeRedisStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "cron:reconcile:lock", 0)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := NewRedisLock(store, "cron:reconcile:lock", time.Minute)
	ctx := context.Background()

	lease, ok, err := first.TryAcquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, _ := second.TryAcquire(ctx); ok {
		t.Fatal("second worker must not acquire a held lock")
	}

	// simulate TTL expiry and takeover by another worker
	store.values["cron:reconcile:lock"] = "other-worker"
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if store.values["cron:reconcile:lock"] != "other-worker" {
		t.Fatal("stale lease must not drop another worker's lock")
	}

	delete(store.values, "cron:reconcile:lock")
	lease, ok, _ = second.TryAcquire(ctx)
	if !ok {
		t.Fatal("lock should be free")
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if _, held := store.values["cron:reconcile:lock"]; held {
		t.Fatal("owner release must drop the lock")
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("double release: %v", err)
	}

	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected nil client to be rejected")
	}
}
