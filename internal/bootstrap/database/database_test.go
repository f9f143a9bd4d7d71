package database

import (
	"context"
	"path/filepath"
	"testing"

	"safetyportal/internal/bootstrap/config"
)

func TestOpenSQLiteCreatesDirectory(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "nested", "portal.sqlite")

	db, err := Open(context.Background(), config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var fk int
	if err := db.Raw("PRAGMA foreign_keys").Scan(&fk).Error; err != nil {
		t.Fatalf("read pragma: %v", err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatal("Open() expected error for unknown driver")
	}
}
