package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/database"
)

func main() {
	target := flag.String("target", "global", "Migration target: global or tenant")
	tenantID := flag.String("tenant", "", "Tenant site ID (required for tenant migrations)")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	switch *target {
	case "global":
		db, err := database.NewGlobalDB(cfg.Database.Global)
		if err != nil {
			log.Fatalf("Failed to connect to global DB: %v", err)
		}
		defer db.Close()
		if err := runMigrations(db, "migrations/global"); err != nil {
			log.Fatal(err)
		}
	case "tenant":
		if *tenantID == "" {
			log.Fatal("--tenant flag required for tenant migrations")
		}

		// The tenant's database file is derived from its schema name, which
		// lives in the global registry.
		globalDB, err := database.NewGlobalDB(cfg.Database.Global)
		if err != nil {
			log.Fatalf("Failed to connect to global DB: %v", err)
		}

		var schemaName string
		err = globalDB.QueryRow("SELECT schema_name FROM tenant_sites WHERE id = ?", *tenantID).Scan(&schemaName)
		globalDB.Close()
		if err != nil {
			log.Fatalf("Failed to resolve tenant site: %v", err)
		}

		pool := database.NewTenantDBPool(cfg.Database.Tenant)
		defer pool.CloseAll()

		db, err := pool.Get(*tenantID, schemaName)
		if err != nil {
			log.Fatalf("Failed to connect to tenant DB: %v", err)
		}

		if err := runMigrations(db, "migrations/tenant"); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatal("Invalid target: must be 'global' or 'tenant'")
	}

	fmt.Println("Migration completed successfully")
}

func runMigrations(db *sql.DB, dir string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migration directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) == ".sql" {
			content, err := os.ReadFile(filepath.Join(dir, file.Name()))
			if err != nil {
				return fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
			}

			log.Printf("Applying migration: %s", file.Name())
			if _, err := db.Exec(string(content)); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", file.Name(), err)
			}
		}
	}
	return nil
}
