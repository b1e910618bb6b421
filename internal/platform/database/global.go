package database

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gatehouse/internal/platform/config"
)

// NewGlobalDB opens the shared database holding identities, the tenant
// registry, features, access groups, membership codes, relay tokens and
// audit rows. Tenant content lives in per-tenant databases (see tenant.go).
func NewGlobalDB(cfg config.GlobalDBConfig) (*sql.DB, error) {
	dsn := cfg.Path
	if len(dsn) > 5 && dsn[:5] == "file:" {
		dsn = dsn[5:]
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}
