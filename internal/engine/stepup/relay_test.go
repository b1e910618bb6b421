package stepup

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}

	query := `
	CREATE TABLE relay_tokens (
		token TEXT PRIMARY KEY,
		cookie_payload TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		consumed_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE mfa_factors (
		id TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL,
		secret TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		confirmed_at INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE recovery_codes (
		id TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL,
		code_hash TEXT NOT NULL,
		used_at INTEGER
	);
	`
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Failed to create tables: %v", err)
	}
	return db
}

func TestRelayService_MintAndConsumeOnce(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewRelayService(NewRepository(db), time.Minute)

	token, err := svc.Mint(`{"access":"a","refresh":"r"}`)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a token")
	}

	payload, err := svc.Consume(token)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if payload != `{"access":"a","refresh":"r"}` {
		t.Errorf("Unexpected payload: %s", payload)
	}

	// Second consumption must fail: the token is read-once.
	if _, err := svc.Consume(token); !errors.Is(err, ErrRelayInvalid) {
		t.Errorf("Expected ErrRelayInvalid on replay, got %v", err)
	}

	// The spent row is gone entirely.
	var count int
	if err := db.QueryRow(`SELECT COUNT(1) FROM relay_tokens`).Scan(&count); err != nil {
		t.Fatalf("Count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected no relay token rows after consumption, got %d", count)
	}
}

func TestRelayService_ExpiredToken(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewRepository(db)
	svc := NewRelayService(repo, time.Minute)

	// Insert an already expired token directly.
	now := time.Now().Unix()
	if _, err := db.Exec(`
		INSERT INTO relay_tokens (token, cookie_payload, expires_at, consumed_at, created_at)
		VALUES ('stale', 'payload', ?, NULL, ?)
	`, now-10, now-70); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}

	if _, err := svc.Consume("stale"); !errors.Is(err, ErrRelayInvalid) {
		t.Errorf("Expected ErrRelayInvalid for expired token, got %v", err)
	}

	// Sweeper removes it.
	n, err := repo.DeleteExpiredRelayTokens(now)
	if err != nil {
		t.Fatalf("DeleteExpiredRelayTokens failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 swept token, got %d", n)
	}
}

func TestRelayService_UnknownOrEmptyToken(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewRelayService(NewRepository(db), time.Minute)

	if _, err := svc.Consume("never-minted"); !errors.Is(err, ErrRelayInvalid) {
		t.Errorf("Expected ErrRelayInvalid for unknown token, got %v", err)
	}
	if _, err := svc.Consume(""); !errors.Is(err, ErrRelayInvalid) {
		t.Errorf("Expected ErrRelayInvalid for empty token, got %v", err)
	}
}
