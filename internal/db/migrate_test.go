package db

import (
	"path/filepath"
	"testing"
)

const testMigrationsDir = "migrations"

func TestMigrateUpAndVersion(t *testing.T) {
	database := newTestDB(t)

	if err := database.MigrateUp(testMigrationsDir); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}

	version, dirty, err := database.MigrateVersion(testMigrationsDir)
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	if dirty {
		t.Error("database dirty after clean migration")
	}
	latest, err := GetLatestMigrationVersion(testMigrationsDir)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion: %v", err)
	}
	if version != latest {
		t.Errorf("version = %d, want latest %d", version, latest)
	}

	// Running again is a no-op.
	if err := database.MigrateUp(testMigrationsDir); err != nil {
		t.Errorf("second MigrateUp: %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	database := newTestDB(t)
	if err := database.MigrateUp(testMigrationsDir); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if err := database.MigrateDown(testMigrationsDir); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}

	version, _, err := database.MigrateVersion(testMigrationsDir)
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	latest, _ := GetLatestMigrationVersion(testMigrationsDir)
	if version != latest-1 {
		t.Errorf("version after down = %d, want %d", version, latest-1)
	}
}

func TestCheckMigrations(t *testing.T) {
	database := newTestDB(t)

	outstanding, err := database.CheckMigrations(testMigrationsDir)
	if !outstanding || err == nil {
		t.Error("fresh database should report outstanding migrations")
	}

	if err := database.MigrateUp(testMigrationsDir); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	outstanding, err = database.CheckMigrations(testMigrationsDir)
	if outstanding || err != nil {
		t.Errorf("migrated database reports outstanding=%v err=%v", outstanding, err)
	}
}

func TestGetLatestMigrationVersionMissingDir(t *testing.T) {
	if _, err := GetLatestMigrationVersion(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for empty migrations directory")
	}
}
