package codes

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

func (r *Repository) CreateBatch(batch *models.CodeBatch) error {
	_, err := r.db.Exec(`
		INSERT INTO code_batches (id, group_id, name, use_type, code_hash, code, max_uses, use_count, status, expires_at, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, batch.ID, batch.GroupID, batch.Name, batch.UseType, batch.CodeHash, batch.Code, batch.MaxUses, batch.UseCount, batch.Status, batch.ExpiresAt, batch.CreatedBy, batch.CreatedAt, batch.UpdatedAt)
	return err
}

func (r *Repository) InsertCodes(batchID string, codes []models.MembershipCode) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO membership_codes (id, batch_id, code_hash, code, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range codes {
		if _, err := stmt.Exec(c.ID, batchID, c.CodeHash, c.Code, c.Status, c.CreatedAt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) GetBatchByID(id string) (*models.CodeBatch, error) {
	batch := &models.CodeBatch{}
	err := r.db.QueryRow(`
		SELECT id, group_id, name, use_type, code_hash, code, max_uses, use_count, status, expires_at, created_by, created_at, updated_at
		FROM code_batches WHERE id = ?
	`, id).Scan(&batch.ID, &batch.GroupID, &batch.Name, &batch.UseType, &batch.CodeHash, &batch.Code, &batch.MaxUses, &batch.UseCount, &batch.Status, &batch.ExpiresAt, &batch.CreatedBy, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return batch, nil
}

// GetMultiUseBatchByHash finds a multi-use batch whose shared code matches
// the digest.
func (r *Repository) GetMultiUseBatchByHash(hash string) (*models.CodeBatch, error) {
	batch := &models.CodeBatch{}
	err := r.db.QueryRow(`
		SELECT id, group_id, name, use_type, code_hash, code, max_uses, use_count, status, expires_at, created_by, created_at, updated_at
		FROM code_batches WHERE code_hash = ? AND use_type = ?
	`, hash, models.UseTypeMulti).Scan(&batch.ID, &batch.GroupID, &batch.Name, &batch.UseType, &batch.CodeHash, &batch.Code, &batch.MaxUses, &batch.UseCount, &batch.Status, &batch.ExpiresAt, &batch.CreatedBy, &batch.CreatedAt, &batch.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return batch, nil
}

// GetSingleCodeByHash finds one single-use code row by digest, along with
// its batch (which carries the group and expiry).
func (r *Repository) GetSingleCodeByHash(hash string) (*models.MembershipCode, *models.CodeBatch, error) {
	code := &models.MembershipCode{}
	batch := &models.CodeBatch{}
	err := r.db.QueryRow(`
		SELECT c.id, c.batch_id, c.code_hash, c.code, c.status, c.redeemed_by_member_id, c.redeemed_at, c.created_at,
		       b.id, b.group_id, b.name, b.use_type, b.max_uses, b.use_count, b.status, b.expires_at
		FROM membership_codes c
		JOIN code_batches b ON b.id = c.batch_id
		WHERE c.code_hash = ?
	`, hash).Scan(
		&code.ID, &code.BatchID, &code.CodeHash, &code.Code, &code.Status, &code.RedeemedByMemberID, &code.RedeemedAt, &code.CreatedAt,
		&batch.ID, &batch.GroupID, &batch.Name, &batch.UseType, &batch.MaxUses, &batch.UseCount, &batch.Status, &batch.ExpiresAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	return code, batch, nil
}

// RedeemSingle transitions a code open -> redeemed, but only if it is still
// open. Zero rows affected means another request won the race (or the code
// was already spent); the caller reports that as a redemption failure, not
// an exception. This conditional write is the invariant's enforcement --
// handlers never read-check-write.
func (r *Repository) RedeemSingle(codeID, memberID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE membership_codes
		SET status = ?, redeemed_by_member_id = ?, redeemed_at = ?
		WHERE id = ? AND status = ?
	`, models.CodeRedeemed, memberID, time.Now().Unix(), codeID, models.CodeOpen)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RedeemMulti increments the batch use count, but only while it is still
// under the cap. A NULL max_uses is unlimited. Zero rows affected means the
// cap was hit, possibly by a concurrent redeemer.
func (r *Repository) RedeemMulti(batchID string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE code_batches
		SET use_count = use_count + 1, updated_at = ?
		WHERE id = ? AND status = ? AND (max_uses IS NULL OR use_count < max_uses)
	`, time.Now().Unix(), batchID, models.BatchOpen)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *Repository) InsertRedemption(red *models.Redemption) error {
	_, err := r.db.Exec(`
		INSERT INTO code_redemptions (id, batch_id, contact_id, redeemed_at)
		VALUES (?, ?, ?, ?)
	`, red.ID, red.BatchID, red.ContactID, red.RedeemedAt)
	return err
}

func (r *Repository) ListCodes(batchID string) ([]models.MembershipCode, error) {
	rows, err := r.db.Query(`
		SELECT id, batch_id, code_hash, code, status, redeemed_by_member_id, redeemed_at, created_at
		FROM membership_codes WHERE batch_id = ? ORDER BY created_at, id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MembershipCode
	for rows.Next() {
		var c models.MembershipCode
		if err := rows.Scan(&c.ID, &c.BatchID, &c.CodeHash, &c.Code, &c.Status, &c.RedeemedByMemberID, &c.RedeemedAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) ListRedemptions(batchID string) ([]models.Redemption, error) {
	rows, err := r.db.Query(`
		SELECT id, batch_id, contact_id, redeemed_at
		FROM code_redemptions WHERE batch_id = ? ORDER BY redeemed_at, id
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Redemption
	for rows.Next() {
		var red models.Redemption
		if err := rows.Scan(&red.ID, &red.BatchID, &red.ContactID, &red.RedeemedAt); err != nil {
			return nil, err
		}
		out = append(out, red)
	}
	return out, rows.Err()
}

// ExpireBatches marks open batches past their expiry. Hygiene only: the
// redemption path checks expiry itself and does not depend on this.
func (r *Repository) ExpireBatches(now int64) (int64, error) {
	res, err := r.db.Exec(`
		UPDATE code_batches SET status = ?, updated_at = ?
		WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?
	`, models.BatchExpired, now, models.BatchOpen, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
