// Package dbtest opens throwaway sqlite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"irdinv/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated database in t's temp dir.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "irdinv.db") + "?_busy_timeout=5000"
	g, err := db.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	g.Logger = logger.Default.LogMode(logger.Silent)
	if err := db.Migrate(g, true); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := g.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return g
}
