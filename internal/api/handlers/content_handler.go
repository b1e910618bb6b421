package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/julienschmidt/httprouter"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/engine/access"
	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/database"
	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

type ContentHandler struct {
	siteRepo *repositories.TenantSiteRepository
	dbPool   *database.TenantDBPool
	groups   *repositories.AccessGroupRepository
	domains  config.DomainsConfig
}

func NewContentHandler(siteRepo *repositories.TenantSiteRepository, dbPool *database.TenantDBPool, groups *repositories.AccessGroupRepository, domains config.DomainsConfig) *ContentHandler {
	return &ContentHandler{
		siteRepo: siteRepo,
		dbPool:   dbPool,
		groups:   groups,
		domains:  domains,
	}
}

type PageResponse struct {
	ID                string `json:"id"`
	Slug              string `json:"slug"`
	Title             string `json:"title"`
	Body              string `json:"body,omitempty"`
	Restricted        bool   `json:"restricted,omitempty"`
	RestrictedMessage string `json:"restricted_message,omitempty"`
}

// GetPage serves one gated page. Anonymous callers are fine for public
// content; gating runs the evaluator against the caller built fresh from
// this request, so a membership revoked a second ago already counts.
func (h *ContentHandler) GetPage(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	site, contentRepo, ok := h.resolveSite(w, params.ByName("tenant_id"))
	if !ok {
		return
	}

	caller, err := h.buildCaller(r)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}

	if !h.siteOpen(w, r, site, caller) {
		return
	}

	page, err := contentRepo.GetPageBySlug(params.ByName("page_slug"))
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if page == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Page not found", nil)
		return
	}

	decision := access.Evaluate(page.Policy, caller)
	if !decision.Allowed {
		if decision.RedirectToSignIn {
			h.redirectToSignIn(w, r)
			return
		}
		// Title plus restricted message; the body stays server-side.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PageResponse{
			ID:                page.ID,
			Slug:              page.Slug,
			Title:             page.Title,
			Restricted:        true,
			RestrictedMessage: decision.RestrictedMessage,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PageResponse{
		ID:    page.ID,
		Slug:  page.Slug,
		Title: page.Title,
		Body:  page.Body,
	})
}

type GalleryResponse struct {
	ID                string             `json:"id"`
	Slug              string             `json:"slug"`
	Title             string             `json:"title"`
	Items             []models.MediaItem `json:"items,omitempty"`
	Restricted        bool               `json:"restricted,omitempty"`
	RestrictedMessage string             `json:"restricted_message,omitempty"`
}

// GetGallery serves a gallery. Once the gallery itself is accessible, each
// media item's own group tags filter the item list; the gallery is never
// gated on its strictest item.
func (h *ContentHandler) GetGallery(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	site, contentRepo, ok := h.resolveSite(w, params.ByName("tenant_id"))
	if !ok {
		return
	}

	caller, err := h.buildCaller(r)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}

	if !h.siteOpen(w, r, site, caller) {
		return
	}

	gallery, err := contentRepo.GetGalleryBySlug(params.ByName("gallery_slug"))
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if gallery == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Gallery not found", nil)
		return
	}

	decision := access.Evaluate(gallery.Policy, caller)
	if !decision.Allowed {
		if decision.RedirectToSignIn {
			h.redirectToSignIn(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(GalleryResponse{
			ID:                gallery.ID,
			Slug:              gallery.Slug,
			Title:             gallery.Title,
			Restricted:        true,
			RestrictedMessage: decision.RestrictedMessage,
		})
		return
	}

	items, err := contentRepo.ListMedia(gallery.ID)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GalleryResponse{
		ID:    gallery.ID,
		Slug:  gallery.Slug,
		Title: gallery.Title,
		Items: access.FilterMedia(items, caller),
	})
}

func (h *ContentHandler) resolveSite(w http.ResponseWriter, tenantID string) (*models.TenantSite, *repositories.ContentRepository, bool) {
	site, err := h.siteRepo.GetByID(tenantID)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return nil, nil, false
	}
	if site == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Site not found", nil)
		return nil, nil, false
	}

	db, err := h.dbPool.Get(site.ID, site.SchemaName)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to connect to tenant database", nil)
		return nil, nil, false
	}
	return site, repositories.NewContentRepository(db), true
}

// buildCaller assembles the request-scoped caller. Held groups are looked
// up on every request, not cached on the session.
func (h *ContentHandler) buildCaller(r *http.Request) (access.Caller, error) {
	claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
	if !ok {
		return access.Caller{}, nil
	}

	held, err := h.groups.HeldGroups(claims.UserID)
	if err != nil {
		return access.Caller{}, err
	}
	heldSet := make(map[string]bool, len(held))
	for _, id := range held {
		heldSet[id] = true
	}

	return access.Caller{
		Authenticated: true,
		ContactID:     claims.UserID,
		Type:          claims.Type,
		Admin:         claims.Type == models.IdentityTypeAdmin || claims.Type == models.IdentityTypeSuperadmin,
		HeldGroups:    heldSet,
	}, nil
}

// siteOpen blocks non-admin traffic to a coming-soon site.
func (h *ContentHandler) siteOpen(w http.ResponseWriter, r *http.Request, site *models.TenantSite, caller access.Caller) bool {
	if site.SiteMode == models.SiteModeComingSoon && !caller.Admin {
		httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "This site is not yet live", nil)
		return false
	}
	return true
}

func (h *ContentHandler) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	signIn := h.domains.SignInPath
	if signIn == "" {
		signIn = "/sign-in"
	}
	http.Redirect(w, r, signIn+"?redirect="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
}
