package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "gatehouse/internal/api/context"
	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/audit"
	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

type SiteHandler struct {
	siteRepo *repositories.TenantSiteRepository
	audit    *audit.Logger
}

func NewSiteHandler(siteRepo *repositories.TenantSiteRepository, auditLogger *audit.Logger) *SiteHandler {
	return &SiteHandler{siteRepo: siteRepo, audit: auditLogger}
}

type SiteModeResponse struct {
	SiteMode string `json:"site_mode"`
	Locked   bool   `json:"locked"`
}

func (h *SiteHandler) GetSiteMode(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	site, err := h.siteRepo.GetByID(params.ByName("tenant_id"))
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if site == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Tenant site not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SiteModeResponse{SiteMode: site.SiteMode, Locked: site.Locked})
}

type UpdateSiteModeRequest struct {
	SiteMode string `json:"site_mode"`
	Locked   bool   `json:"locked"`
}

func (h *SiteHandler) UpdateSiteMode(w http.ResponseWriter, r *http.Request) {
	if !requireActualSuperadmin(w, r) {
		return
	}
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	tenantID := params.ByName("tenant_id")

	var req UpdateSiteModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.SiteMode != models.SiteModeLive && req.SiteMode != models.SiteModeComingSoon {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "site_mode must be live or coming_soon", nil)
		return
	}

	site, err := h.siteRepo.GetByID(tenantID)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if site == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Tenant site not found", nil)
		return
	}

	if err := h.siteRepo.UpdateSiteMode(tenantID, req.SiteMode, req.Locked); err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to update site mode", nil)
		return
	}

	h.audit.Log(r.Context(), "tenant.site_mode.update", "tenant_site", tenantID, map[string]interface{}{
		"site_mode": req.SiteMode, "locked": req.Locked,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SiteModeResponse{SiteMode: req.SiteMode, Locked: req.Locked})
}
