package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "gatehouse/internal/api/context"
	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/audit"
	"gatehouse/internal/platform/identity"
	"gatehouse/internal/platform/repositories"
)

type IdentityHandler struct {
	identityRepo   *repositories.IdentityRepository
	identityClient *identity.Client
	audit          *audit.Logger
}

func NewIdentityHandler(identityRepo *repositories.IdentityRepository, identityClient *identity.Client, auditLogger *audit.Logger) *IdentityHandler {
	return &IdentityHandler{
		identityRepo:   identityRepo,
		identityClient: identityClient,
		audit:          auditLogger,
	}
}

type UpdateRoleRequest struct {
	RoleSlug string `json:"role_slug"`
}

// UpdateRole changes an identity's role. The local metadata is the fallback
// record for role resolution during an identity-service outage, and the
// central service stays authoritative: the change is pushed there via
// sync-user-role. A failed push is reported, not rolled back; the next
// remote resolution wins either way.
func (h *IdentityHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	if !requireActualSuperadmin(w, r) {
		return
	}
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	identityID := params.ByName("identity_id")

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	ident, err := h.identityRepo.GetByID(identityID)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if ident == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Identity not found", nil)
		return
	}

	if err := h.identityRepo.UpdateMetadataRole(ident.ID, ident.MetadataType, req.RoleSlug); err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to update role", nil)
		return
	}

	synced := false
	if h.identityClient.Configured() {
		if err := h.identityClient.SyncUserRole(r.Context(), ident.ID, req.RoleSlug); err != nil {
			log.Warn().Err(err).Str("identity_id", ident.ID).Msg("failed to sync role to identity service")
		} else {
			synced = true
		}
	}

	h.audit.Log(r.Context(), "identity.role.update", "identity", ident.ID, map[string]interface{}{
		"role_slug": req.RoleSlug,
		"synced":    synced,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"identity_id": ident.ID,
		"role_slug":   req.RoleSlug,
		"synced":      synced,
	})
}
