package middleware

import (
	"context"
	"database/sql"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/engine/features"
	"gatehouse/internal/engine/roles"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

type stubRoleSource struct {
	res roles.Resolution
}

func (s *stubRoleSource) Resolve(_ context.Context, _ roles.Subject) roles.Resolution {
	return s.res
}

func gateFor(db *sql.DB, remote roles.Resolution) *FeatureGateMiddleware {
	registry := features.NewRegistry([]models.Feature{
		{ID: "f_membership", Slug: "membership"},
		{ID: "f_content", Slug: "content"},
	})
	resolver := roles.NewResolver(&stubRoleSource{res: remote}, roles.NewLocalMetadataRoleSource())
	return NewFeatureGateMiddleware(
		resolver,
		repositories.NewIdentityRepository(db),
		repositories.NewFeatureRepository(db),
		repositories.NewTenantSiteRepository(db),
		registry,
		"superadmin",
		"/admin/dashboard",
	)
}

func expectIdentity(mock sqlmock.Sqlmock, metadataType, metadataRole string) {
	rows := sqlmock.NewRows([]string{"id", "email", "metadata_type", "metadata_role", "tenant_id", "created_at", "updated_at"}).
		AddRow("idn_1", "a@example.com", metadataType, metadataRole, "tnt_1", 1700000000, 1700000000)
	mock.ExpectQuery("FROM identities WHERE id").WithArgs("idn_1").WillReturnRows(rows)
}

func expectSite(mock sqlmock.Sqlmock, tenantID string, featureIDs ...string) {
	rows := sqlmock.NewRows([]string{"id", "schema_name", "name", "membership_enabled", "site_mode", "locked", "created_at", "updated_at"}).
		AddRow(tenantID, "tenant_one", "Tenant One", true, "live", false, 1700000000, 1700000000)
	mock.ExpectQuery("FROM tenant_sites WHERE id").WithArgs(tenantID).WillReturnRows(rows)

	featureRows := sqlmock.NewRows([]string{"feature_id"})
	for _, id := range featureIDs {
		featureRows.AddRow(id)
	}
	mock.ExpectQuery("SELECT feature_id FROM tenant_features").WithArgs(tenantID).WillReturnRows(featureRows)
}

func expectRole(mock sqlmock.Sqlmock, slug string, featureSlugs ...string) {
	mock.ExpectQuery("FROM roles WHERE slug").WithArgs(slug).
		WillReturnRows(sqlmock.NewRows([]string{"slug", "label"}).AddRow(slug, slug))

	slugRows := sqlmock.NewRows([]string{"slug"})
	for _, s := range featureSlugs {
		slugRows.AddRow(s)
	}
	mock.ExpectQuery("FROM role_features rf").WithArgs(slug).WillReturnRows(slugRows)
}

func gateRequest(t *testing.T, middleware *FeatureGateMiddleware, path string, cookies ...*http.Cookie) (*httptest.ResponseRecorder, *GateContext) {
	t.Helper()
	req, _ := http.NewRequest("GET", path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}

	claims := &auth.Claims{UserID: "idn_1", TenantID: "tnt_1", Type: "member"}
	ctx := context.WithValue(req.Context(), apiContext.Claims, claims)
	ctx = context.WithValue(ctx, apiContext.Bearer, "raw-token")
	req = req.WithContext(ctx)

	var gate *GateContext
	rr := httptest.NewRecorder()
	handler := middleware.Handle(func(w http.ResponseWriter, r *http.Request) {
		gate, _ = r.Context().Value(apiContext.Gate).(*GateContext)
		w.WriteHeader(http.StatusOK)
	})
	handler.ServeHTTP(rr, req)
	return rr, gate
}

func TestFeatureGate_AllowsEntitledRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}
	defer db.Close()

	middleware := gateFor(db, roles.Resolution{Outcome: roles.OutcomeFound, Slug: "editor", Source: roles.SourceRemote})

	expectIdentity(mock, "admin", "editor")
	expectSite(mock, "tnt_1") // no rows: every feature enabled
	expectRole(mock, "editor", "membership")

	rr, gate := gateRequest(t, middleware, "/api/v1/admin/mags")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %v: %s", rr.Code, rr.Body.String())
	}
	if gate == nil || gate.RoleSlug != "editor" || gate.Superadmin {
		t.Errorf("Unexpected gate state: %+v", gate)
	}
}

func TestFeatureGate_DeniesMissingFeature(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}
	defer db.Close()

	middleware := gateFor(db, roles.Resolution{Outcome: roles.OutcomeFound, Slug: "editor", Source: roles.SourceRemote})

	expectIdentity(mock, "admin", "editor")
	// Tenant only enables content; the role's membership entitlement is
	// intersected away.
	expectSite(mock, "tnt_1", "f_content")
	expectRole(mock, "editor", "membership", "content")

	rr, _ := gateRequest(t, middleware, "/api/v1/admin/mags")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %v", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, "/admin/dashboard") {
		t.Errorf("Denial should carry the dashboard redirect, got %s", body)
	}
}

func TestFeatureGate_SuperadminByMetadata(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}
	defer db.Close()

	// Remote says nothing; the stored metadata pair alone carries it.
	middleware := gateFor(db, roles.Resolution{Outcome: roles.OutcomeNone, Source: roles.SourceRemote})

	expectIdentity(mock, "superadmin", "superadmin")

	rr, gate := gateRequest(t, middleware, "/api/v1/admin/roles/editor/features")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %v: %s", rr.Code, rr.Body.String())
	}
	if gate == nil || !gate.Superadmin || !gate.Effective.All {
		t.Errorf("Expected full-access superadmin gate, got %+v", gate)
	}
}

func TestFeatureGate_ViewAsRestrictsSuperadmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}
	defer db.Close()

	middleware := gateFor(db, roles.Resolution{Outcome: roles.OutcomeFound, Slug: "superadmin", Source: roles.SourceRemote})

	expectIdentity(mock, "superadmin", "superadmin")
	// Under view-as the emulated tenant and role are loaded and computed.
	expectSite(mock, "tnt_2")
	expectRole(mock, "editor", "content")

	cookie := &http.Cookie{
		Name:  ViewAsCookieName,
		Value: base64.RawURLEncoding.EncodeToString([]byte(`{"tenant_id":"tnt_2","role_slug":"editor"}`)),
	}

	// Superadmin-only routes deny while impersonating.
	rr, _ := gateRequest(t, middleware, "/api/v1/admin/roles/editor/features", cookie)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 under view-as, got %v", rr.Code)
	}
}

func TestFeatureGate_ViewAsIgnoredForNonSuperadmin(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}
	defer db.Close()

	middleware := gateFor(db, roles.Resolution{Outcome: roles.OutcomeFound, Slug: "editor", Source: roles.SourceRemote})

	expectIdentity(mock, "admin", "editor")
	// The caller's own tenant is used; the cookie must not switch it.
	expectSite(mock, "tnt_1")
	expectRole(mock, "editor", "membership")

	cookie := &http.Cookie{
		Name:  ViewAsCookieName,
		Value: base64.RawURLEncoding.EncodeToString([]byte(`{"tenant_id":"tnt_other","role_slug":"superadmin"}`)),
	}

	rr, gate := gateRequest(t, middleware, "/api/v1/admin/mags", cookie)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %v: %s", rr.Code, rr.Body.String())
	}
	if gate == nil || gate.ViewAs != nil {
		t.Error("View-as cookie must be ignored for non-superadmins")
	}
}

func TestFeatureGate_UngatedPathPasses(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open sqlmock: %v", err)
	}
	defer db.Close()

	middleware := gateFor(db, roles.Resolution{Outcome: roles.OutcomeNone, Source: roles.SourceRemote})

	expectIdentity(mock, "member", "")
	expectSite(mock, "tnt_1")

	// The dashboard landing page carries no feature requirement, so even a
	// role-less caller lands safely.
	rr, _ := gateRequest(t, middleware, "/api/v1/admin/dashboard")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %v: %s", rr.Code, rr.Body.String())
	}
}
