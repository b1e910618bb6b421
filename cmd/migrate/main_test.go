package main

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"gatehouse/internal/engine/features"
	"gatehouse/internal/platform/repositories"
)

// A fresh global database must come up with a usable feature catalog: the
// registry loads non-empty and a stock role resolves to real entitlements,
// so gated admin routes are reachable without manual bootstrap.
func TestGlobalMigrationsSeedCatalog(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	defer db.Close()

	if err := runMigrations(db, "../../migrations/global"); err != nil {
		t.Fatalf("Migrations failed: %v", err)
	}

	featureRepo := repositories.NewFeatureRepository(db)
	catalog, err := featureRepo.List()
	if err != nil {
		t.Fatalf("Failed to load feature catalog: %v", err)
	}
	if len(catalog) == 0 {
		t.Fatal("Seeded catalog should not be empty")
	}

	registry := features.NewRegistry(catalog)
	if _, ok := registry.IDForSlug("membership"); !ok {
		t.Error("Expected membership feature in the seeded catalog")
	}

	role, err := featureRepo.GetRole("editor")
	if err != nil {
		t.Fatalf("Failed to load role: %v", err)
	}
	if role == nil || len(role.FeatureSlugs) == 0 {
		t.Fatalf("Seeded editor role should carry entitlements, got %+v", role)
	}

	// The seeded content parent implies its gallery child.
	effective := features.NewSet([]string{mustID(t, registry, "content")})
	if !features.CanAccess(registry, effective, "content_galleries") {
		t.Error("Seeded parent feature should grant its child")
	}

	// Re-running the same migrations is a no-op, not an error.
	if err := runMigrations(db, "../../migrations/global"); err != nil {
		t.Fatalf("Re-running migrations failed: %v", err)
	}
}

func mustID(t *testing.T, registry *features.Registry, slug string) string {
	t.Helper()
	id, ok := registry.IDForSlug(slug)
	if !ok {
		t.Fatalf("Missing feature slug %s", slug)
	}
	return id
}
