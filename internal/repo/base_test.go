package repo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type lockedRow struct {
	ID   uuid.UUID `gorm:"type:text;primaryKey"`
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&lockedRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)
	if withCtx.Statement == nil || withCtx.Statement.Context != ctx {
		t.Fatalf("expected context to flow through")
	}

	if base.DB(nil) != db {
		t.Fatalf("expected nil context to return raw connection")
	}
}

func TestBaseForUpdateReadsInsideTransaction(t *testing.T) {
	db := newTestDB(t)
	row := lockedRow{ID: uuid.New(), Name: "SN-1"}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var got lockedRow
		if err := NewBase(tx).ForUpdate(context.Background()).Where("id = ?", row.ID).First(&got).Error; err != nil {
			return err
		}
		if got.Name != "SN-1" {
			t.Fatalf("unexpected row %+v", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("locked read failed: %v", err)
	}
}
