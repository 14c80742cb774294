package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/orderflow-agent/internal/domain"
)

// newTestDB opens a per-test in-memory database. With no models it is left
// empty so error paths can be exercised; otherwise the full schema is
// migrated.
func newTestDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if migrate {
		if err := AutoMigrate(db); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// seedThread creates a tenant, a customer and an open SMS thread.
func seedThread(t *testing.T, db *gorm.DB) *domain.Thread {
	t.Helper()
	ctx := context.Background()
	ten, err := CreateTenant(ctx, db, "Pizzeria", "da", "45", "DKK", []AddressInput{{Channel: domain.ChannelSMS, Address: "+4570000000"}})
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	c, err := GetOrCreateCustomer(ctx, db, ten.ID, CustomerInfo{Phone: "+4512345678"})
	if err != nil {
		t.Fatalf("GetOrCreateCustomer: %v", err)
	}
	th, err := GetOrCreateThread(ctx, db, ThreadKey{TenantID: ten.ID, CustomerID: c.ID, Channel: domain.ChannelSMS}, time.Now(), 0)
	if err != nil {
		t.Fatalf("GetOrCreateThread: %v", err)
	}
	return th
}
