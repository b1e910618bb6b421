package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/engine/codes"
	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/pkg/validator"
	"gatehouse/internal/platform/audit"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

type CodeHandler struct {
	svc    *codes.Service
	repo   *codes.Repository
	groups *repositories.AccessGroupRepository
	audit  *audit.Logger
}

func NewCodeHandler(svc *codes.Service, repo *codes.Repository, groups *repositories.AccessGroupRepository, auditLogger *audit.Logger) *CodeHandler {
	return &CodeHandler{svc: svc, repo: repo, groups: groups, audit: auditLogger}
}

type RedeemRequest struct {
	Code string `json:"code"`
}

type RedeemResponse struct {
	Success bool   `json:"success"`
	MagID   string `json:"mag_id"`
}

// Redeem is the member-facing entry point. Expected failures come back as
// structured 4xx results; only genuine faults become 500s.
func (h *CodeHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if err := validator.RedeemInput(req.Code); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	result, err := h.svc.Redeem(req.Code, claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, codes.ErrInvalidCode):
			httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "invalid code", nil)
		case errors.Is(err, codes.ErrExpired):
			httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeExpired, "expired", nil)
		case errors.Is(err, codes.ErrAlreadyUsed):
			httperrors.WriteError(w, http.StatusConflict, httperrors.ErrCodeConflict, "already used", nil)
		case errors.Is(err, codes.ErrLimitReached):
			httperrors.WriteError(w, http.StatusConflict, httperrors.ErrCodeConflict, "limit reached", nil)
		case errors.Is(err, codes.ErrRedemptionRace):
			httperrors.WriteError(w, http.StatusConflict, httperrors.ErrCodeConflict, "already used", nil)
		default:
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Redemption failed", nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RedeemResponse{Success: true, MagID: result.GroupID})
}

type CreateBatchRequest struct {
	UseType      string `json:"use_type"`
	MagID        string `json:"mag_id"`
	Name         string `json:"name"`
	NumCodes     int    `json:"num_codes"`
	Code         string `json:"code"`
	MaxUses      *int   `json:"max_uses"`
	ExpiresAt    *int64 `json:"expires_at"`
	Prefix       string `json:"prefix"`
	Suffix       string `json:"suffix"`
	RandomLength int    `json:"random_length"`
	ExcludeChars string `json:"exclude_chars"`
}

type CreateBatchResponse struct {
	Batch *models.CodeBatch       `json:"batch"`
	Codes []models.MembershipCode `json:"codes,omitempty"`
}

func (h *CodeHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	group, err := h.groups.GetByID(req.MagID)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if group == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Access group not found", nil)
		return
	}

	switch req.UseType {
	case models.UseTypeSingle:
		if req.NumCodes < 1 || req.NumCodes > 10000 {
			httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "num_codes must be between 1 and 10000", nil)
			return
		}
		batch, codeRows, err := h.svc.CreateSingleUseBatch(req.MagID, req.Name, claims.UserID, codes.BatchOptions{
			NumCodes:     req.NumCodes,
			ExpiresAt:    req.ExpiresAt,
			Prefix:       req.Prefix,
			Suffix:       req.Suffix,
			RandomLength: req.RandomLength,
			ExcludeChars: req.ExcludeChars,
		})
		if err != nil {
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to create batch", nil)
			return
		}
		h.audit.Log(r.Context(), "membership_codes.batch.create", "code_batch", batch.ID, map[string]interface{}{
			"use_type": batch.UseType, "mag_id": batch.GroupID, "num_codes": len(codeRows),
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CreateBatchResponse{Batch: batch, Codes: codeRows})

	case models.UseTypeMulti:
		if req.Code == "" {
			httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "code is required for multi_use batches", nil)
			return
		}
		batch, err := h.svc.CreateMultiUseCode(req.MagID, req.Code, claims.UserID, codes.MultiUseOptions{
			Name:      req.Name,
			MaxUses:   req.MaxUses,
			ExpiresAt: req.ExpiresAt,
		})
		if err != nil {
			if errors.Is(err, codes.ErrInvalidCode) {
				httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "invalid code", nil)
				return
			}
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to create batch", nil)
			return
		}
		h.audit.Log(r.Context(), "membership_codes.batch.create", "code_batch", batch.ID, map[string]interface{}{
			"use_type": batch.UseType, "mag_id": batch.GroupID,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(CreateBatchResponse{Batch: batch})

	default:
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "use_type must be single_use or multi_use", nil)
	}
}

type BatchCodesResponse struct {
	Batch       *models.CodeBatch        `json:"batch"`
	Codes       []models.MembershipCode  `json:"codes,omitempty"`
	Redemptions []models.Redemption      `json:"redemptions,omitempty"`
}

// ListBatchCodes reports per-code status for single-use batches and the
// redemption log for multi-use ones.
func (h *CodeHandler) ListBatchCodes(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	batchID := params.ByName("batch_id")

	batch, err := h.repo.GetBatchByID(batchID)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if batch == nil {
		httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Batch not found", nil)
		return
	}

	resp := BatchCodesResponse{Batch: batch}
	if batch.UseType == models.UseTypeSingle {
		codeRows, err := h.repo.ListCodes(batchID)
		if err != nil {
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
			return
		}
		resp.Codes = codeRows
	} else {
		redemptions, err := h.repo.ListRedemptions(batchID)
		if err != nil {
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
			return
		}
		resp.Redemptions = redemptions
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
