package repositories

import (
	"database/sql"
	"time"

	"gatehouse/internal/platform/models"
)

type IdentityRepository struct {
	db *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Create(identity *models.Identity) error {
	_, err := r.db.Exec(`
		INSERT INTO identities (id, email, metadata_type, metadata_role, tenant_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, identity.ID, identity.Email, identity.MetadataType, identity.MetadataRole, identity.TenantID, identity.CreatedAt, identity.UpdatedAt)
	return err
}

func (r *IdentityRepository) GetByID(id string) (*models.Identity, error) {
	identity := &models.Identity{}
	err := r.db.QueryRow(`
		SELECT id, email, metadata_type, metadata_role, tenant_id, created_at, updated_at
		FROM identities WHERE id = ?
	`, id).Scan(&identity.ID, &identity.Email, &identity.MetadataType, &identity.MetadataRole, &identity.TenantID, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return identity, nil
}

func (r *IdentityRepository) GetByEmail(email string) (*models.Identity, error) {
	identity := &models.Identity{}
	err := r.db.QueryRow(`
		SELECT id, email, metadata_type, metadata_role, tenant_id, created_at, updated_at
		FROM identities WHERE email = ?
	`, email).Scan(&identity.ID, &identity.Email, &identity.MetadataType, &identity.MetadataRole, &identity.TenantID, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return identity, nil
}

func (r *IdentityRepository) UpdateMetadataRole(id, metadataType, metadataRole string) error {
	_, err := r.db.Exec(`
		UPDATE identities SET metadata_type = ?, metadata_role = ?, updated_at = ? WHERE id = ?
	`, metadataType, metadataRole, time.Now().Unix(), id)
	return err
}

type TenantSiteRepository struct {
	db *sql.DB
}

func NewTenantSiteRepository(db *sql.DB) *TenantSiteRepository {
	return &TenantSiteRepository{db: db}
}

func (r *TenantSiteRepository) GetByID(id string) (*models.TenantSite, error) {
	site := &models.TenantSite{}
	err := r.db.QueryRow(`
		SELECT id, schema_name, name, membership_enabled, site_mode, locked, created_at, updated_at
		FROM tenant_sites WHERE id = ?
	`, id).Scan(&site.ID, &site.SchemaName, &site.Name, &site.MembershipEnabled, &site.SiteMode, &site.Locked, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	featureIDs, err := r.featureIDs(id)
	if err != nil {
		return nil, err
	}
	site.FeatureIDs = featureIDs
	return site, nil
}

func (r *TenantSiteRepository) featureIDs(tenantID string) ([]string, error) {
	rows, err := r.db.Query(`SELECT feature_id FROM tenant_features WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetFeatures replaces the tenant's enabled-feature set. An empty set is
// meaningful: it reads as "all features enabled" at evaluation time.
func (r *TenantSiteRepository) SetFeatures(tenantID string, featureIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tenant_features WHERE tenant_id = ?`, tenantID); err != nil {
		return err
	}
	for _, fid := range featureIDs {
		if _, err := tx.Exec(`INSERT INTO tenant_features (tenant_id, feature_id) VALUES (?, ?)`, tenantID, fid); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`UPDATE tenant_sites SET updated_at = ? WHERE id = ?`, time.Now().Unix(), tenantID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *TenantSiteRepository) UpdateSiteMode(tenantID, siteMode string, locked bool) error {
	_, err := r.db.Exec(`
		UPDATE tenant_sites SET site_mode = ?, locked = ?, updated_at = ? WHERE id = ?
	`, siteMode, locked, time.Now().Unix(), tenantID)
	return err
}

type FeatureRepository struct {
	db *sql.DB
}

func NewFeatureRepository(db *sql.DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

func (r *FeatureRepository) List() ([]models.Feature, error) {
	rows, err := r.db.Query(`SELECT id, slug, COALESCE(parent_id, '') FROM features`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var features []models.Feature
	for rows.Next() {
		var f models.Feature
		if err := rows.Scan(&f.ID, &f.Slug, &f.ParentID); err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func (r *FeatureRepository) GetRole(slug string) (*models.Role, error) {
	role := &models.Role{}
	err := r.db.QueryRow(`SELECT slug, label FROM roles WHERE slug = ?`, slug).Scan(&role.Slug, &role.Label)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.Query(`
		SELECT f.slug FROM role_features rf JOIN features f ON f.id = rf.feature_id
		WHERE rf.role_slug = ?
	`, slug)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var fs string
		if err := rows.Scan(&fs); err != nil {
			return nil, err
		}
		role.FeatureSlugs = append(role.FeatureSlugs, fs)
	}
	return role, rows.Err()
}

func (r *FeatureRepository) SetRoleFeatures(roleSlug string, featureIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM role_features WHERE role_slug = ?`, roleSlug); err != nil {
		return err
	}
	for _, fid := range featureIDs {
		if _, err := tx.Exec(`INSERT INTO role_features (role_slug, feature_id) VALUES (?, ?)`, roleSlug, fid); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type AccessGroupRepository struct {
	db *sql.DB
}

func NewAccessGroupRepository(db *sql.DB) *AccessGroupRepository {
	return &AccessGroupRepository{db: db}
}

func (r *AccessGroupRepository) Create(group *models.AccessGroup) error {
	_, err := r.db.Exec(`
		INSERT INTO access_groups (id, uid, name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, group.ID, group.UID, group.Name, group.Status, group.CreatedAt, group.UpdatedAt)
	return err
}

func (r *AccessGroupRepository) GetByID(id string) (*models.AccessGroup, error) {
	group := &models.AccessGroup{}
	err := r.db.QueryRow(`
		SELECT id, uid, name, status, created_at, updated_at FROM access_groups WHERE id = ?
	`, id).Scan(&group.ID, &group.UID, &group.Name, &group.Status, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return group, nil
}

func (r *AccessGroupRepository) List() ([]models.AccessGroup, error) {
	rows, err := r.db.Query(`SELECT id, uid, name, status, created_at, updated_at FROM access_groups ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.AccessGroup
	for rows.Next() {
		var g models.AccessGroup
		if err := rows.Scan(&g.ID, &g.UID, &g.Name, &g.Status, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// Grant makes the contact a member of the group. Idempotent: granting an
// existing membership (including a revoked one) reactivates it without
// duplicating the row. Code redemption and admin assignment both land here.
func (r *AccessGroupRepository) Grant(groupID, contactID string) error {
	_, err := r.db.Exec(`
		INSERT INTO group_memberships (group_id, contact_id, status, granted_at, revoked_at)
		VALUES (?, ?, ?, ?, NULL)
		ON CONFLICT(group_id, contact_id)
		DO UPDATE SET status = ?, revoked_at = NULL
	`, groupID, contactID, models.MembershipActive, time.Now().Unix(), models.MembershipActive)
	return err
}

func (r *AccessGroupRepository) Revoke(groupID, contactID string) error {
	_, err := r.db.Exec(`
		UPDATE group_memberships SET status = ?, revoked_at = ?
		WHERE group_id = ? AND contact_id = ?
	`, models.MembershipRevoked, time.Now().Unix(), groupID, contactID)
	return err
}

// HeldGroups returns the ids of groups the contact actively holds. Revoked
// memberships do not count.
func (r *AccessGroupRepository) HeldGroups(contactID string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT group_id FROM group_memberships WHERE contact_id = ? AND status = ?
	`, contactID, models.MembershipActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *AccessGroupRepository) Holds(contactID, groupID string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(1) FROM group_memberships WHERE contact_id = ? AND group_id = ? AND status = ?
	`, contactID, groupID, models.MembershipActive).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
