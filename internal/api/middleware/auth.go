package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/auth"
)

const (
	AccessCookieName  = "gh_access"
	RefreshCookieName = "gh_refresh"
)

type AuthMiddleware struct {
	tokenSvc *auth.TokenService
}

func NewAuthMiddleware(tokenSvc *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc}
}

// Handle validates the session credential from the Authorization header or
// the access cookie. The raw token is kept in context as well: role
// resolution presents it to the external identity service as the caller's
// bearer credential.
func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing session credential", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(token)
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired session", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		ctx = context.WithValue(ctx, apiContext.Bearer, token)
		next(w, r.WithContext(ctx))
	}
}

// RequireElevated gates endpoints that need a step-up-verified session.
func (m *AuthMiddleware) RequireElevated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}
		if !claims.Elevated() {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Elevated session required", nil)
			return
		}
		next(w, r)
	}
}

// Optional attaches claims when a valid credential is present and lets the
// request through anonymously otherwise. Used on public content routes
// where gating depends on who the caller is, if anyone.
func (m *AuthMiddleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next(w, r)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(token)
		if err != nil {
			next(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		ctx = context.WithValue(ctx, apiContext.Bearer, token)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie, err := r.Cookie(AccessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
