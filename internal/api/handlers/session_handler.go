package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	httperrors "gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/identity"
	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

const (
	AccessCookieName  = "gh_access"
	RefreshCookieName = "gh_refresh"
)

type SessionHandler struct {
	identityRepo   *repositories.IdentityRepository
	identityClient *identity.Client
	tokenSvc       *auth.TokenService
	sessionCfg     config.SessionConfig
}

func NewSessionHandler(identityRepo *repositories.IdentityRepository, identityClient *identity.Client, tokenSvc *auth.TokenService, sessionCfg config.SessionConfig) *SessionHandler {
	return &SessionHandler{
		identityRepo:   identityRepo,
		identityClient: identityClient,
		tokenSvc:       tokenSvc,
		sessionCfg:     sessionCfg,
	}
}

type ExchangeRequest struct {
	ProviderToken string `json:"provider_token"`
	Email         string `json:"email"`
}

type SessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	AAL          string `json:"aal"`
}

// Exchange trades an identity-provider credential for the local session
// pair at baseline assurance. Primary authentication is the provider's job;
// this endpoint only verifies the credential against it and mints the
// session the middleware consumes. No local fallback here: if the provider
// is down, sign-in waits.
func (h *SessionHandler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.ProviderToken == "" || req.Email == "" {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "provider_token and email are required", nil)
		return
	}

	check, err := h.identityClient.CheckUser(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, identity.ErrUnavailable) {
			httperrors.WriteError(w, http.StatusServiceUnavailable, httperrors.ErrCodeServiceUnavailable, "Identity service unavailable", nil)
			return
		}
		log.Error().Err(err).Str("call", "check-user").Msg("session exchange failed")
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Session exchange failed", nil)
		return
	}
	if !check.Exists {
		httperrors.WriteError(w, http.StatusUnauthorized, httperrors.ErrCodeUnauthorized, "Unknown user", nil)
		return
	}

	roleSlug, err := h.identityClient.ValidateUser(r.Context(), req.ProviderToken)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNotAuthorized):
			httperrors.WriteError(w, http.StatusForbidden, httperrors.ErrCodeForbidden, "Not authorized for this application", nil)
			return
		case errors.Is(err, identity.ErrUnavailable):
			httperrors.WriteError(w, http.StatusServiceUnavailable, httperrors.ErrCodeServiceUnavailable, "Identity service unavailable", nil)
			return
		default:
			log.Error().Err(err).Str("call", "validate-user").Msg("session exchange failed")
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Session exchange failed", nil)
			return
		}
	}

	ident, err := h.identityRepo.GetByEmail(req.Email)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if ident == nil {
		// First sign-in through this application: create the local record.
		now := time.Now().Unix()
		ident = &models.Identity{
			ID:           "idn_" + uuid.NewString(),
			Email:        req.Email,
			MetadataType: models.IdentityTypeMember,
			MetadataRole: roleSlug,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := h.identityRepo.Create(ident); err != nil {
			httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to create identity", nil)
			return
		}
	} else if roleSlug != ident.MetadataRole {
		// The remote answer is authoritative; keep the local fallback role in
		// step with it so an outage falls back to fresh metadata, not to
		// whatever the first sign-in recorded.
		if err := h.identityRepo.UpdateMetadataRole(ident.ID, ident.MetadataType, roleSlug); err != nil {
			log.Warn().Err(err).Str("identity_id", ident.ID).Msg("failed to refresh local role metadata")
		} else {
			ident.MetadataRole = roleSlug
		}
	}

	pair, err := h.tokenSvc.GenerateSessionPair(ident.ID, ident.TenantID, roleSlug, ident.MetadataType, ident.Email, auth.AALBaseline)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to generate session", nil)
		return
	}

	SetSessionCookies(w, pair, h.sessionCfg)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		AAL:          auth.AALBaseline,
	})
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh reissues a baseline session. Elevation does not survive refresh;
// the step-up flow is the only way to aal2.
func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, http.StatusBadRequest, httperrors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}
	if req.RefreshToken == "" {
		if cookie, err := r.Cookie(RefreshCookieName); err == nil {
			req.RefreshToken = cookie.Value
		}
	}

	claims, err := h.tokenSvc.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		httperrors.WriteError(w, http.StatusUnauthorized, httperrors.ErrCodeUnauthorized, "Invalid refresh token", nil)
		return
	}

	ident, err := h.identityRepo.GetByID(claims.Subject)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Database error", nil)
		return
	}
	if ident == nil {
		httperrors.WriteError(w, http.StatusUnauthorized, httperrors.ErrCodeUnauthorized, "Identity not found", nil)
		return
	}

	pair, err := h.tokenSvc.GenerateSessionPair(ident.ID, ident.TenantID, ident.MetadataRole, ident.MetadataType, ident.Email, auth.AALBaseline)
	if err != nil {
		httperrors.WriteError(w, http.StatusInternalServerError, httperrors.ErrCodeInternal, "Failed to generate session", nil)
		return
	}

	SetSessionCookies(w, pair, h.sessionCfg)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		AAL:          auth.AALBaseline,
	})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookies(w, h.sessionCfg)
	w.WriteHeader(http.StatusNoContent)
}

// SetSessionCookies writes the access/refresh pair onto a response. The
// step-up relay endpoint reuses this so elevated cookies ride a document
// response.
func SetSessionCookies(w http.ResponseWriter, pair *auth.SessionPair, cfg config.SessionConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookieName,
		Value:    pair.AccessToken,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(cfg.AccessTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		Domain:   cfg.CookieDomain,
		MaxAge:   int(cfg.RefreshTokenTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSessionCookies(w http.ResponseWriter, cfg config.SessionConfig) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   cfg.CookieDomain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
