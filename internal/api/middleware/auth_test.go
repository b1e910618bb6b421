package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/config"
)

func testTokenService() *auth.TokenService {
	return auth.NewTokenService(config.SessionConfig{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
}

func TestAuthMiddleware(t *testing.T) {
	tokenSvc := testTokenService()
	middleware := NewAuthMiddleware(tokenSvc)

	pair, err := tokenSvc.GenerateSessionPair("idn_1", "tnt_1", "editor", "member", "m@example.com", auth.AALBaseline)
	if err != nil {
		t.Fatalf("Failed to generate session pair: %v", err)
	}

	t.Run("Bearer Header", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			claims := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if claims.UserID != "idn_1" {
				t.Errorf("Expected idn_1, got %s", claims.UserID)
			}
			bearer := r.Context().Value(apiContext.Bearer).(string)
			if bearer != pair.AccessToken {
				t.Error("Raw token should be kept in context")
			}
			w.WriteHeader(http.StatusOK)
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
	})

	t.Run("Access Cookie", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.AddCookie(&http.Cookie{Name: AccessCookieName, Value: pair.AccessToken})

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Cookie credential rejected: %v", rr.Code)
		}
	})

	t.Run("Missing Credential", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not run without a credential")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %v", rr.Code)
		}
	})

	t.Run("Invalid Token", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")

		rr := httptest.NewRecorder()
		handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
			t.Error("Handler should not run with a bad token")
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %v", rr.Code)
		}
	})
}

func TestAuthMiddleware_Optional(t *testing.T) {
	tokenSvc := testTokenService()
	middleware := NewAuthMiddleware(tokenSvc)

	t.Run("Anonymous Passes Through", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)

		rr := httptest.NewRecorder()
		handler := middleware.Optional(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
				t.Error("Anonymous request should carry no claims")
			}
			w.WriteHeader(http.StatusOK)
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Expected 200, got %v", rr.Code)
		}
	})

	t.Run("Valid Credential Attaches Claims", func(t *testing.T) {
		pair, _ := tokenSvc.GenerateSessionPair("idn_1", "tnt_1", "editor", "member", "m@example.com", auth.AALBaseline)
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

		rr := httptest.NewRecorder()
		handler := middleware.Optional(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
			if !ok || claims.UserID != "idn_1" {
				t.Error("Expected claims in context")
			}
			w.WriteHeader(http.StatusOK)
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Expected 200, got %v", rr.Code)
		}
	})

	t.Run("Garbage Token Degrades To Anonymous", func(t *testing.T) {
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")

		rr := httptest.NewRecorder()
		handler := middleware.Optional(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Value(apiContext.Claims).(*auth.Claims); ok {
				t.Error("Invalid token should not attach claims")
			}
			w.WriteHeader(http.StatusOK)
		})
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Expected 200, got %v", rr.Code)
		}
	})
}

func TestRequireElevated(t *testing.T) {
	tokenSvc := testTokenService()
	middleware := NewAuthMiddleware(tokenSvc)

	run := func(aal string) int {
		pair, _ := tokenSvc.GenerateSessionPair("idn_1", "tnt_1", "editor", "member", "m@example.com", aal)
		req, _ := http.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)

		rr := httptest.NewRecorder()
		handler := middleware.Handle(middleware.RequireElevated(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := run(auth.AALBaseline); code != http.StatusForbidden {
		t.Errorf("Baseline session should be forbidden, got %v", code)
	}
	if code := run(auth.AALElevated); code != http.StatusOK {
		t.Errorf("Elevated session should pass, got %v", code)
	}
}
