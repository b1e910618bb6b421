package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/api/middleware"
	"gatehouse/internal/engine/features"
	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/audit"
	"gatehouse/internal/platform/repositories"
)

type ViewAsHandler struct {
	siteRepo    *repositories.TenantSiteRepository
	featureRepo *repositories.FeatureRepository
	audit       *audit.Logger
}

func NewViewAsHandler(siteRepo *repositories.TenantSiteRepository, featureRepo *repositories.FeatureRepository, auditLogger *audit.Logger) *ViewAsHandler {
	return &ViewAsHandler{siteRepo: siteRepo, featureRepo: featureRepo, audit: auditLogger}
}

type EnterViewAsRequest struct {
	TenantID string `json:"tenant_id"`
	RoleSlug string `json:"role_slug"`
}

// Enter starts impersonation. Only the actual superadmin predicate counts
// here; from the next request on, evaluation runs under the emulated
// tenant and role.
func (h *ViewAsHandler) Enter(w http.ResponseWriter, r *http.Request) {
	gate, ok := r.Context().Value(apiContext.Gate).(*middleware.GateContext)
	if !ok || !gate.Superadmin {
		httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "Superadmin required", nil)
		return
	}

	var req EnterViewAsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.TenantID == "" || req.RoleSlug == "" {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "tenant_id and role_slug are required", nil)
		return
	}

	site, err := h.siteRepo.GetByID(req.TenantID)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if site == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Tenant site not found", nil)
		return
	}
	role, err := h.featureRepo.GetRole(req.RoleSlug)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if role == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Role not found", nil)
		return
	}

	raw, err := json.Marshal(features.ViewAs{TenantID: req.TenantID, RoleSlug: req.RoleSlug})
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to start impersonation", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ViewAsCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.audit.Log(r.Context(), "view_as.enter", "tenant_site", req.TenantID, map[string]interface{}{
		"role_slug": req.RoleSlug,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"tenant_id": req.TenantID, "role_slug": req.RoleSlug})
}

// Exit clears impersonation. The one thing the real superadmin status is
// still good for while impersonating.
func (h *ViewAsHandler) Exit(w http.ResponseWriter, r *http.Request) {
	gate, ok := r.Context().Value(apiContext.Gate).(*middleware.GateContext)
	if !ok || !gate.Superadmin {
		httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "Superadmin required", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.ViewAsCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.audit.Log(r.Context(), "view_as.exit", "tenant_site", "", nil)

	w.WriteHeader(http.StatusNoContent)
}
