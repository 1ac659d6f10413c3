package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/banshee-data/drivewise/internal/db"
)

const defaultMigrationsDir = "internal/db/migrations"

// runMigrateCommand handles the 'migrate' subcommand dispatching.
func runMigrateCommand(args []string) {
	if len(args) < 1 {
		printMigrateHelp()
		os.Exit(1)
	}

	dbPath := os.Getenv("DRIVEWISE_DB")
	if dbPath == "" {
		dbPath = "drivewise.db"
	}
	migrationsDir := os.Getenv("DRIVEWISE_MIGRATIONS")
	if migrationsDir == "" {
		migrationsDir = defaultMigrationsDir
	}

	database, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch args[0] {
	case "up":
		if err := database.MigrateUp(migrationsDir); err != nil {
			log.Fatalf("migrate up failed: %v", err)
		}
		log.Print("migrations applied")

	case "down":
		if err := database.MigrateDown(migrationsDir); err != nil {
			log.Fatalf("migrate down failed: %v", err)
		}
		log.Print("rolled back one migration")

	case "status":
		version, dirty, err := database.MigrateVersion(migrationsDir)
		if err != nil {
			log.Fatalf("migrate status failed: %v", err)
		}
		latest, err := db.GetLatestMigrationVersion(migrationsDir)
		if err != nil {
			log.Fatalf("migrate status failed: %v", err)
		}
		fmt.Printf("current version: %d (dirty=%v), latest available: %d\n", version, dirty, latest)

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: drivewise migrate force <version_number>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("invalid version number %q: %v", args[1], err)
		}
		if err := database.MigrateForce(migrationsDir, version); err != nil {
			log.Fatalf("migrate force failed: %v", err)
		}
		log.Printf("forced migration version to %d", version)

	default:
		printMigrateHelp()
		os.Exit(1)
	}
}

func printMigrateHelp() {
	fmt.Println("Usage: drivewise migrate <up|down|status|force VERSION>")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  DRIVEWISE_DB          database path (default drivewise.db)")
	fmt.Println("  DRIVEWISE_MIGRATIONS  migrations directory (default internal/db/migrations)")
}
