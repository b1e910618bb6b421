package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/engine/features"
	"gatehouse/internal/engine/roles"
	"gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

const ViewAsCookieName = "gh_view_as"

// GateContext is the per-request authorization state: who the caller
// resolved to, whether they are actually superadmin, any active
// impersonation, and the effective capability set the request is evaluated
// under. Built fresh on every request; nothing survives to the next one.
type GateContext struct {
	Identity   *models.Identity
	Resolution roles.Resolution
	Superadmin bool
	ViewAs     *features.ViewAs
	RoleSlug   string
	Effective  features.Set
}

type FeatureGateMiddleware struct {
	resolver       *roles.Resolver
	identityRepo   *repositories.IdentityRepository
	featureRepo    *repositories.FeatureRepository
	siteRepo       *repositories.TenantSiteRepository
	registry       *features.Registry
	superadminSlug string
	dashboardPath  string
}

func NewFeatureGateMiddleware(
	resolver *roles.Resolver,
	identityRepo *repositories.IdentityRepository,
	featureRepo *repositories.FeatureRepository,
	siteRepo *repositories.TenantSiteRepository,
	registry *features.Registry,
	superadminSlug string,
	dashboardPath string,
) *FeatureGateMiddleware {
	return &FeatureGateMiddleware{
		resolver:       resolver,
		identityRepo:   identityRepo,
		featureRepo:    featureRepo,
		siteRepo:       siteRepo,
		registry:       registry,
		superadminSlug: superadminSlug,
		dashboardPath:  dashboardPath,
	}
}

// Handle resolves the caller's role, computes the effective feature set and
// enforces the route's required feature. Denial is a structured 403 with a
// safe redirect target, not a bare error: the client surfaces it as a
// blocking confirmation and then navigates to the dashboard.
func (m *FeatureGateMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		gate, err := m.buildGate(r, claims)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Authorization state could not be established", nil)
			return
		}

		if required, gated := features.RequiredFeature(routePath(r)); gated {
			if !m.permits(gate, required) {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden,
					"You do not have access to this area", map[string]interface{}{
						"redirect": m.dashboardPath,
					})
				return
			}
		}

		ctx := context.WithValue(r.Context(), apiContext.Gate, gate)
		if gate.ViewAs != nil {
			ctx = context.WithValue(ctx, apiContext.ViewAs, gate.ViewAs)
		}
		next(w, r.WithContext(ctx))
	}
}

func (m *FeatureGateMiddleware) buildGate(r *http.Request, claims *auth.Claims) (*GateContext, error) {
	identity, err := m.identityRepo.GetByID(claims.UserID)
	if err != nil {
		return nil, err
	}

	bearer, _ := r.Context().Value(apiContext.Bearer).(string)
	resolution := m.resolver.Resolve(r.Context(), roles.Subject{
		BearerToken: bearer,
		Identity:    identity,
	})

	// Recomputed every request: role changes take effect immediately.
	superadmin := roles.IsSuperadmin(identity, resolution, m.superadminSlug)

	gate := &GateContext{
		Identity:   identity,
		Resolution: resolution,
		Superadmin: superadmin,
	}

	if superadmin {
		gate.ViewAs = readViewAsCookie(r)
	}

	tenantID := claims.TenantID
	roleSlug := resolution.Slug
	if gate.ViewAs != nil {
		tenantID = gate.ViewAs.TenantID
		roleSlug = gate.ViewAs.RoleSlug
	}
	gate.RoleSlug = roleSlug

	// A real superadmin with no impersonation active holds everything.
	// Under view-as the emulated tenant+role is computed instead, so the
	// emulated restriction cannot be silently bypassed.
	if superadmin && gate.ViewAs == nil {
		gate.Effective = features.AllSet()
		return gate, nil
	}

	site, err := m.siteRepo.GetByID(tenantID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		gate.Effective = features.NewSet(nil)
		return gate, nil
	}

	var role *models.Role
	if roleSlug != "" {
		role, err = m.featureRepo.GetRole(roleSlug)
		if err != nil {
			return nil, err
		}
	}
	gate.Effective = features.Effective(m.registry, site, role)
	return gate, nil
}

func (m *FeatureGateMiddleware) permits(gate *GateContext, required string) bool {
	if required == features.SuperadminSlug {
		// Feature membership never satisfies this; only the predicate
		// does, and only outside impersonation.
		return gate.Superadmin && gate.ViewAs == nil
	}
	return features.CanAccess(m.registry, gate.Effective, required)
}

// routePath maps the API path onto the admin route table.
func routePath(r *http.Request) string {
	path := r.URL.Path
	const apiPrefix = "/api/v1"
	if len(path) > len(apiPrefix) && path[:len(apiPrefix)] == apiPrefix {
		return path[len(apiPrefix):]
	}
	return path
}

func readViewAsCookie(r *http.Request) *features.ViewAs {
	cookie, err := r.Cookie(ViewAsCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var va features.ViewAs
	if err := json.Unmarshal(raw, &va); err != nil {
		return nil
	}
	if va.TenantID == "" || va.RoleSlug == "" {
		return nil
	}
	return &va
}
