package stepup

import (
	"database/sql"
	"time"

	"gatehouse/internal/platform/models"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateRelayToken(token *models.RelayToken) error {
	_, err := r.db.Exec(`
		INSERT INTO relay_tokens (token, cookie_payload, expires_at, consumed_at, created_at)
		VALUES (?, ?, ?, NULL, ?)
	`, token.Token, token.CookiePayload, token.ExpiresAt, token.CreatedAt)
	return err
}

// ClaimRelayToken atomically marks an unconsumed, unexpired token as
// consumed. Zero rows affected means a second reader, an expired token, or
// no such token at all; all collapse to "not claimable". The payload is
// only read after the claim succeeds, so two concurrent readers cannot both
// obtain it.
func (r *Repository) ClaimRelayToken(token string, now int64) (string, bool, error) {
	res, err := r.db.Exec(`
		UPDATE relay_tokens SET consumed_at = ?
		WHERE token = ? AND consumed_at IS NULL AND expires_at > ?
	`, now, token, now)
	if err != nil {
		return "", false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if affected == 0 {
		return "", false, nil
	}

	var payload string
	if err := r.db.QueryRow(`SELECT cookie_payload FROM relay_tokens WHERE token = ?`, token).Scan(&payload); err != nil {
		return "", false, err
	}

	// The record is spent; remove it so the payload does not linger.
	if _, err := r.db.Exec(`DELETE FROM relay_tokens WHERE token = ?`, token); err != nil {
		return "", false, err
	}
	return payload, true, nil
}

// DeleteExpiredRelayTokens is sweeper hygiene. Expired tokens are already
// unredeemable through the claim predicate.
func (r *Repository) DeleteExpiredRelayTokens(now int64) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM relay_tokens WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *Repository) CreateFactor(factor *models.MFAFactor) error {
	_, err := r.db.Exec(`
		INSERT INTO mfa_factors (id, identity_id, secret, label, confirmed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, factor.ID, factor.IdentityID, factor.Secret, factor.Label, factor.ConfirmedAt, factor.CreatedAt)
	return err
}

func (r *Repository) GetFactor(id string) (*models.MFAFactor, error) {
	factor := &models.MFAFactor{}
	err := r.db.QueryRow(`
		SELECT id, identity_id, secret, label, confirmed_at, created_at
		FROM mfa_factors WHERE id = ?
	`, id).Scan(&factor.ID, &factor.IdentityID, &factor.Secret, &factor.Label, &factor.ConfirmedAt, &factor.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return factor, nil
}

func (r *Repository) ListConfirmedFactors(identityID string) ([]models.MFAFactor, error) {
	rows, err := r.db.Query(`
		SELECT id, identity_id, secret, label, confirmed_at, created_at
		FROM mfa_factors WHERE identity_id = ? AND confirmed_at IS NOT NULL
	`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MFAFactor
	for rows.Next() {
		var f models.MFAFactor
		if err := rows.Scan(&f.ID, &f.IdentityID, &f.Secret, &f.Label, &f.ConfirmedAt, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) ConfirmFactor(id string, now int64) error {
	_, err := r.db.Exec(`UPDATE mfa_factors SET confirmed_at = ? WHERE id = ?`, now, id)
	return err
}

func (r *Repository) DeleteFactor(id string) error {
	_, err := r.db.Exec(`DELETE FROM mfa_factors WHERE id = ?`, id)
	return err
}

func (r *Repository) CountConfirmedFactors(identityID string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(1) FROM mfa_factors WHERE identity_id = ? AND confirmed_at IS NOT NULL
	`, identityID).Scan(&count)
	return count, err
}

func (r *Repository) InsertRecoveryCodes(codes []models.RecoveryCode) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range codes {
		if _, err := tx.Exec(`
			INSERT INTO recovery_codes (id, identity_id, code_hash, used_at)
			VALUES (?, ?, ?, NULL)
		`, c.ID, c.IdentityID, c.CodeHash); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) ListUnusedRecoveryCodes(identityID string) ([]models.RecoveryCode, error) {
	rows, err := r.db.Query(`
		SELECT id, identity_id, code_hash FROM recovery_codes
		WHERE identity_id = ? AND used_at IS NULL
	`, identityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RecoveryCode
	for rows.Next() {
		var c models.RecoveryCode
		if err := rows.Scan(&c.ID, &c.IdentityID, &c.CodeHash); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkRecoveryCodeUsed burns a recovery code. Conditional on unused so a
// replayed code loses.
func (r *Repository) MarkRecoveryCodeUsed(id string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE recovery_codes SET used_at = ? WHERE id = ? AND used_at IS NULL
	`, time.Now().Unix(), id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
