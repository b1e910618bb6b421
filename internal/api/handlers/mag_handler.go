package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	apiContext "gatehouse/internal/api/context"
	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/audit"
	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

type MAGHandler struct {
	groups *repositories.AccessGroupRepository
	audit  *audit.Logger
}

func NewMAGHandler(groups *repositories.AccessGroupRepository, auditLogger *audit.Logger) *MAGHandler {
	return &MAGHandler{groups: groups, audit: auditLogger}
}

type CreateMAGRequest struct {
	UID  string `json:"uid"`
	Name string `json:"name"`
}

func (h *MAGHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMAGRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.Name == "" {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "name is required", nil)
		return
	}

	now := time.Now().Unix()
	group := &models.AccessGroup{
		ID:        "mag_" + uuid.NewString(),
		UID:       req.UID,
		Name:      req.Name,
		Status:    models.AccessGroupActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.groups.Create(group); err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to create access group", nil)
		return
	}

	h.audit.Log(r.Context(), "mag.create", "access_group", group.ID, map[string]interface{}{"name": group.Name})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
}

func (h *MAGHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.List()
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(groups)
}

type AssignMemberRequest struct {
	ContactID string `json:"contact_id"`
}

// AssignMember is the admin path to membership. It converges with code
// redemption on the same idempotent grant: assigning twice neither errors
// nor duplicates.
func (h *MAGHandler) AssignMember(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	magID := params.ByName("mag_id")

	var req AssignMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.ContactID == "" {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "contact_id is required", nil)
		return
	}

	group, err := h.groups.GetByID(magID)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if group == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Access group not found", nil)
		return
	}

	if err := h.groups.Grant(magID, req.ContactID); err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to grant membership", nil)
		return
	}

	h.audit.Log(r.Context(), "mag.member.assign", "access_group", magID, map[string]interface{}{"contact_id": req.ContactID})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"granted": true})
}

func (h *MAGHandler) RevokeMember(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	magID := params.ByName("mag_id")
	contactID := params.ByName("contact_id")

	if err := h.groups.Revoke(magID, contactID); err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to revoke membership", nil)
		return
	}

	h.audit.Log(r.Context(), "mag.member.revoke", "access_group", magID, map[string]interface{}{"contact_id": contactID})

	w.WriteHeader(http.StatusNoContent)
}
