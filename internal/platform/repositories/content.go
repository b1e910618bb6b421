package repositories

import (
	"database/sql"
	"encoding/json"

	"gatehouse/internal/platform/models"
)

// ContentRepository reads gated content from a tenant database. Constructed
// per request around the pool connection the tenant middleware resolved.
type ContentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) GetPageBySlug(slug string) (*models.Page, error) {
	page := &models.Page{}
	err := r.db.QueryRow(`
		SELECT id, slug, title, body, access_level, required_group_id, visibility_mode, restricted_message
		FROM pages WHERE slug = ?
	`, slug).Scan(&page.ID, &page.Slug, &page.Title, &page.Body,
		&page.Policy.AccessLevel, &page.Policy.RequiredGroupID, &page.Policy.VisibilityMode, &page.Policy.RestrictedMessage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return page, nil
}

func (r *ContentRepository) GetGalleryBySlug(slug string) (*models.Gallery, error) {
	gallery := &models.Gallery{}
	err := r.db.QueryRow(`
		SELECT id, slug, title, access_level, required_group_id, visibility_mode, restricted_message
		FROM galleries WHERE slug = ?
	`, slug).Scan(&gallery.ID, &gallery.Slug, &gallery.Title,
		&gallery.Policy.AccessLevel, &gallery.Policy.RequiredGroupID, &gallery.Policy.VisibilityMode, &gallery.Policy.RestrictedMessage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return gallery, nil
}

func (r *ContentRepository) ListMedia(galleryID string) ([]models.MediaItem, error) {
	rows, err := r.db.Query(`
		SELECT id, gallery_id, url, caption, group_tags FROM media_items WHERE gallery_id = ? ORDER BY id
	`, galleryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.MediaItem
	for rows.Next() {
		var item models.MediaItem
		var tagsJSON string
		if err := rows.Scan(&item.ID, &item.GalleryID, &item.URL, &item.Caption, &tagsJSON); err != nil {
			return nil, err
		}
		if tagsJSON != "" {
			if err := json.Unmarshal([]byte(tagsJSON), &item.GroupTags); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
