// Package testutil holds fixtures shared by the ledger, reconcile, payment and
// worker tests.
package testutil

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/database"
	"github.com/ChinthakaSandaruwan/property-system-sub000/internal/models"
)

// NewDB opens a migrated SQLite database in a temp dir. A single connection
// keeps concurrent tests serialised instead of failing with SQLITE_BUSY.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

// NewLogger returns a logger that discards output.
func NewLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// SeedProperty inserts an available property with the given rent terms.
func SeedProperty(t *testing.T, db *gorm.DB, rent, deposit string) *models.Property {
	t.Helper()

	p := &models.Property{
		Title:           "Test property",
		MonthlyRent:     decimal.RequireFromString(rent),
		SecurityDeposit: decimal.RequireFromString(deposit),
		IsAvailable:     true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed property: %v", err)
	}
	return p
}
