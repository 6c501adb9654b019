package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"gibier-backend/internal/catalogs"
	"gibier-backend/internal/database"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// SetupDB ouvre une base SQLite mémoire isolée, migre le schéma, alimente
// les catalogues et branche database.DB pour les handlers.
func SetupDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Un nom par test: les bases ":memory:" partagées fuient entre tests
	dsn := fmt.Sprintf("file:test%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("ouverture base de test: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migration base de test: %v", err)
	}
	catalogs.Seed(db)

	database.DB = db
	return db
}
