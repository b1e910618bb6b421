package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/api/middleware"
	"gatehouse/internal/engine/stepup"
	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/config"
)

type MFAHandler struct {
	factors    *stepup.FactorService
	relay      *stepup.RelayService
	tokenSvc   *auth.TokenService
	sessionCfg config.SessionConfig
	domains    config.DomainsConfig
}

func NewMFAHandler(factors *stepup.FactorService, relay *stepup.RelayService, tokenSvc *auth.TokenService, sessionCfg config.SessionConfig, domains config.DomainsConfig) *MFAHandler {
	return &MFAHandler{
		factors:    factors,
		relay:      relay,
		tokenSvc:   tokenSvc,
		sessionCfg: sessionCfg,
		domains:    domains,
	}
}

type EnrollRequest struct {
	Label string `json:"label"`
}

type EnrollResponse struct {
	FactorID        string `json:"factor_id"`
	ProvisioningURL string `json:"provisioning_url"`
}

func (h *MFAHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	factor, provisioningURL, err := h.factors.Enroll(claims.UserID, claims.Email, req.Label)
	if err != nil {
		log.Error().Err(err).Msg("factor enrollment failed")
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Enrollment failed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(EnrollResponse{
		FactorID:        factor.ID,
		ProvisioningURL: provisioningURL,
	})
}

func (h *MFAHandler) EnrollQR(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	provisioningURL := r.URL.Query().Get("url")
	if provisioningURL == "" {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "url parameter required", nil)
		return
	}

	png, err := h.factors.ProvisioningQR(params.ByName("factor_id"), claims.UserID, provisioningURL, size)
	if err != nil {
		switch {
		case errors.Is(err, stepup.ErrFactorNotFound):
			httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Factor not found", nil)
		case errors.Is(err, stepup.ErrNotFactorOwner):
			httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "Not your factor", nil)
		default:
			httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, err.Error(), nil)
		}
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

type ConfirmEnrollRequest struct {
	FactorID string `json:"factor_id"`
	Passcode string `json:"passcode"`
}

type ConfirmEnrollResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

func (h *MFAHandler) ConfirmEnroll(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req ConfirmEnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	recovery, err := h.factors.Confirm(req.FactorID, claims.UserID, req.Passcode)
	if err != nil {
		switch {
		case errors.Is(err, stepup.ErrFactorNotFound):
			httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Factor not found", nil)
		case errors.Is(err, stepup.ErrNotFactorOwner):
			httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "Not your factor", nil)
		case errors.Is(err, stepup.ErrChallengeFailed):
			httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Incorrect passcode", nil)
		default:
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Confirmation failed", nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ConfirmEnrollResponse{RecoveryCodes: recovery})
}

type ChallengeRequest struct {
	Passcode string `json:"passcode"`
	Redirect string `json:"redirect"`
}

type ChallengeResponse struct {
	RelayURL string `json:"relay_url"`
}

// Challenge verifies the second factor and mints the relay token. The
// client then navigates to the relay URL; the token rides as a query
// parameter and carries no credentials itself. The elevated cookies are
// written only by the relay endpoint, on a document response, so the
// browser is guaranteed to have committed them before the next navigation.
func (h *MFAHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)

	var req ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if err := h.factors.VerifyChallenge(claims.UserID, req.Passcode); err != nil {
		if errors.Is(err, stepup.ErrChallengeFailed) {
			httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "Second-factor challenge failed", nil)
			return
		}
		log.Error().Err(err).Msg("challenge verification failed")
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Challenge failed", nil)
		return
	}

	pair, err := h.tokenSvc.GenerateSessionPair(claims.UserID, claims.TenantID, claims.Role, claims.Type, claims.Email, auth.AALElevated)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to generate session", nil)
		return
	}

	payload, err := json.Marshal(pair)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to prepare relay", nil)
		return
	}

	token, err := h.relay.Mint(string(payload))
	if err != nil {
		log.Error().Err(err).Msg("relay token mint failed")
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to prepare relay", nil)
		return
	}

	relayURL := "/mfa/success?t=" + url.QueryEscape(token) +
		"&redirect=" + url.QueryEscape(sanitizeRedirect(req.Redirect, h.domains.DashboardPath))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ChallengeResponse{RelayURL: relayURL})
}

// RelaySuccess is the document endpoint that finishes the step-up. Exactly
// one request per token gets the elevated cookies; a replayed URL is sent
// back to the challenge with an error flag.
func (h *MFAHandler) RelaySuccess(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("t")
	redirect := sanitizeRedirect(r.URL.Query().Get("redirect"), h.domains.DashboardPath)

	payload, err := h.relay.Consume(token)
	if err != nil {
		if !errors.Is(err, stepup.ErrRelayInvalid) {
			log.Error().Err(err).Msg("relay consume failed")
		}
		http.Redirect(w, r, h.domains.ChallengePath+"?error=relay_expired", http.StatusFound)
		return
	}

	var pair auth.SessionPair
	if err := json.Unmarshal([]byte(payload), &pair); err != nil {
		log.Error().Err(err).Msg("relay payload corrupt")
		http.Redirect(w, r, h.domains.ChallengePath+"?error=relay_expired", http.StatusFound)
		return
	}

	SetSessionCookies(w, &pair, h.sessionCfg)
	http.Redirect(w, r, redirect, http.StatusFound)
}

type UnenrollResponse struct {
	Removed bool `json:"removed"`
}

func (h *MFAHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
	params := r.Context().Value(apiContext.Params).(httprouter.Params)

	isSuperadmin := false
	if gate, ok := r.Context().Value(apiContext.Gate).(*middleware.GateContext); ok {
		isSuperadmin = gate.Superadmin
	}

	err := h.factors.Unenroll(params.ByName("factor_id"), claims.UserID, isSuperadmin)
	if err != nil {
		switch {
		case errors.Is(err, stepup.ErrFactorNotFound):
			httperrors.WriteError(w, http.StatusNotFound, httperrors.ErrCodeNotFound, "Factor not found", nil)
		case errors.Is(err, stepup.ErrNotFactorOwner):
			httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "Not your factor", nil)
		case errors.Is(err, stepup.ErrLastSuperadminFactor):
			httperrors.WriteError(w, http.StatusConflict, httperrors.ErrCodeConflict,
				"The last factor of a superadmin cannot be self-removed; use the recovery path", nil)
		default:
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Unenroll failed", nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(UnenrollResponse{Removed: true})
}

// sanitizeRedirect confines redirects to local paths so the relay cannot be
// pointed off-site.
func sanitizeRedirect(redirect, fallback string) string {
	if redirect == "" {
		return fallback
	}
	if !strings.HasPrefix(redirect, "/") || strings.HasPrefix(redirect, "//") {
		return fallback
	}
	return redirect
}
