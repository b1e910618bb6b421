package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/api/handlers"
	"gatehouse/internal/api/middleware"
)

type Dependencies struct {
	SessionHandler  *handlers.SessionHandler
	MFAHandler      *handlers.MFAHandler
	CodeHandler     *handlers.CodeHandler
	MAGHandler      *handlers.MAGHandler
	FeatureHandler  *handlers.FeatureHandler
	SiteHandler     *handlers.SiteHandler
	ViewAsHandler   *handlers.ViewAsHandler
	ContentHandler  *handlers.ContentHandler
	IdentityHandler *handlers.IdentityHandler
	HealthHandler   *handlers.HealthHandler

	AuthMiddleware   *middleware.AuthMiddleware
	GateMiddleware   *middleware.FeatureGateMiddleware
	TenantMiddleware *middleware.TenantMiddleware
}

func NewRouter(deps *Dependencies) *httprouter.Router {
	router := httprouter.New()

	router.GET("/health", wrap(deps.HealthHandler.Health))

	// Session exchange and refresh
	router.POST("/api/v1/session/exchange",
		chain(deps.SessionHandler.Exchange, middleware.RateLimit("session")))
	router.POST("/api/v1/session/refresh",
		chain(deps.SessionHandler.Refresh, middleware.RateLimit("session")))
	router.POST("/api/v1/session/logout", wrap(deps.SessionHandler.Logout))

	// Middleware references
	authMid := deps.AuthMiddleware
	gateMid := deps.GateMiddleware
	tenantMid := deps.TenantMiddleware

	// Step-up authentication. The relay success endpoint is deliberately
	// unauthenticated: the single-use relay token is the credential.
	router.POST("/api/v1/mfa/factors",
		chain(deps.MFAHandler.Enroll, authMid.Handle, middleware.RateLimit("mfa")))
	router.GET("/api/v1/mfa/factors/:factor_id/qr",
		chain(deps.MFAHandler.EnrollQR, authMid.Handle))
	router.POST("/api/v1/mfa/factors/:factor_id/confirm",
		chain(deps.MFAHandler.ConfirmEnroll, authMid.Handle, middleware.RateLimit("mfa")))
	router.POST("/api/v1/mfa/challenge",
		chain(deps.MFAHandler.Challenge, authMid.Handle, middleware.RateLimit("mfa")))
	router.DELETE("/api/v1/mfa/factors/:factor_id",
		chain(deps.MFAHandler.Unenroll, authMid.Handle, gateMid.Handle))
	router.GET("/mfa/success", wrap(deps.MFAHandler.RelaySuccess))

	// Member code redemption
	router.POST("/api/v1/members/redeem-code",
		chain(deps.CodeHandler.Redeem, authMid.Handle, middleware.RateLimit("redeem")))

	// Access group administration
	router.POST("/api/v1/admin/mags",
		chain(deps.MAGHandler.Create, authMid.Handle, gateMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/admin/mags",
		chain(deps.MAGHandler.List, authMid.Handle, gateMid.Handle, tenantMid.Handle))
	router.POST("/api/v1/admin/mags/:mag_id/members",
		chain(deps.MAGHandler.AssignMember, authMid.Handle, gateMid.Handle, tenantMid.Handle))
	router.DELETE("/api/v1/admin/mags/:mag_id/members/:contact_id",
		chain(deps.MAGHandler.RevokeMember, authMid.Handle, gateMid.Handle, tenantMid.Handle))

	// Membership code administration
	router.POST("/api/v1/admin/membership-codes/batches",
		chain(deps.CodeHandler.CreateBatch, authMid.Handle, gateMid.Handle, tenantMid.Handle))
	router.GET("/api/v1/admin/membership-codes/batches/:batch_id/codes",
		chain(deps.CodeHandler.ListBatchCodes, authMid.Handle, gateMid.Handle, tenantMid.Handle))

	// Superadmin surfaces: role and tenant feature assignment, site mode.
	// The route table maps these onto the superadmin predicate; the handlers
	// re-check it server-side on the write paths.
	router.PATCH("/api/v1/admin/roles/:role_slug/features",
		chain(deps.FeatureHandler.UpdateRoleFeatures, authMid.Handle, gateMid.Handle))
	router.PATCH("/api/v1/admin/tenants/:tenant_id/features",
		chain(deps.FeatureHandler.UpdateTenantFeatures, authMid.Handle, gateMid.Handle))
	router.GET("/api/v1/admin/tenant-sites/:tenant_id/site-mode",
		chain(deps.SiteHandler.GetSiteMode, authMid.Handle, gateMid.Handle))
	router.PATCH("/api/v1/admin/tenant-sites/:tenant_id/site-mode",
		chain(deps.SiteHandler.UpdateSiteMode, authMid.Handle, gateMid.Handle))
	router.PATCH("/api/v1/admin/identities/:identity_id/role",
		chain(deps.IdentityHandler.UpdateRole, authMid.Handle, gateMid.Handle))

	// Impersonation. Exit must stay reachable while view-as is active, so
	// neither route carries a feature requirement; the handlers demand the
	// actual superadmin predicate instead.
	router.POST("/api/v1/view-as",
		chain(deps.ViewAsHandler.Enter, authMid.Handle, gateMid.Handle))
	router.DELETE("/api/v1/view-as",
		chain(deps.ViewAsHandler.Exit, authMid.Handle, gateMid.Handle))

	// Gated content. Anonymous callers pass through; gating happens in the
	// evaluator, never by hiding the route.
	router.GET("/api/v1/sites/:tenant_id/pages/:page_slug",
		chain(deps.ContentHandler.GetPage, authMid.Optional))
	router.GET("/api/v1/sites/:tenant_id/galleries/:gallery_slug",
		chain(deps.ContentHandler.GetGallery, authMid.Optional))

	return router
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}
