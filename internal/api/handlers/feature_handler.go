package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/api/middleware"
	"gatehouse/internal/engine/features"
	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/audit"
	"gatehouse/internal/platform/repositories"
)

type FeatureHandler struct {
	featureRepo *repositories.FeatureRepository
	siteRepo    *repositories.TenantSiteRepository
	registry    *features.Registry
	audit       *audit.Logger
}

func NewFeatureHandler(featureRepo *repositories.FeatureRepository, siteRepo *repositories.TenantSiteRepository, registry *features.Registry, auditLogger *audit.Logger) *FeatureHandler {
	return &FeatureHandler{
		featureRepo: featureRepo,
		siteRepo:    siteRepo,
		registry:    registry,
		audit:       auditLogger,
	}
}

type SetFeaturesRequest struct {
	FeatureIDs []string `json:"feature_ids"`
}

// UpdateRoleFeatures replaces a role's entitled features. The superadmin
// feature id is always stripped before saving: superadmin is a predicate,
// never a feature assignment.
func (h *FeatureHandler) UpdateRoleFeatures(w http.ResponseWriter, r *http.Request) {
	if !requireActualSuperadmin(w, r) {
		return
	}
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	roleSlug := params.ByName("role_slug")

	var req SetFeaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	role, err := h.featureRepo.GetRole(roleSlug)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if role == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Role not found", nil)
		return
	}

	featureIDs := h.stripSuperadmin(req.FeatureIDs)
	if err := h.featureRepo.SetRoleFeatures(roleSlug, featureIDs); err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to update role features", nil)
		return
	}

	h.audit.Log(r.Context(), "role.features.update", "role", roleSlug, map[string]interface{}{
		"feature_ids": featureIDs,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"feature_ids": featureIDs})
}

// UpdateTenantFeatures replaces a tenant's enabled features. Saving an
// empty list is allowed and means default-open.
func (h *FeatureHandler) UpdateTenantFeatures(w http.ResponseWriter, r *http.Request) {
	if !requireActualSuperadmin(w, r) {
		return
	}
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	tenantID := params.ByName("tenant_id")

	var req SetFeaturesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
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

	if err := h.siteRepo.SetFeatures(tenantID, req.FeatureIDs); err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to update tenant features", nil)
		return
	}

	h.audit.Log(r.Context(), "tenant.features.update", "tenant_site", tenantID, map[string]interface{}{
		"feature_ids": req.FeatureIDs,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"feature_ids": req.FeatureIDs})
}

func (h *FeatureHandler) stripSuperadmin(featureIDs []string) []string {
	superadminID, hasSuperadminFeature := h.registry.IDForSlug(features.SuperadminSlug)
	out := make([]string, 0, len(featureIDs))
	for _, id := range featureIDs {
		if hasSuperadminFeature && id == superadminID {
			continue
		}
		out = append(out, id)
	}
	return out
}

// requireActualSuperadmin enforces the real predicate server-side, on top
// of the route gate. Impersonation does not count.
func requireActualSuperadmin(w http.ResponseWriter, r *http.Request) bool {
	gate, ok := r.Context().Value(apiContext.Gate).(*middleware.GateContext)
	if !ok || !gate.Superadmin || gate.ViewAs != nil {
		httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "Superadmin required", nil)
		return false
	}
	return true
}
