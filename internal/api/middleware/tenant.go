package middleware

import (
	"context"
	"database/sql"
	"net/http"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/pkg/errors"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/database"
	"gatehouse/internal/platform/models"
	"gatehouse/internal/platform/repositories"
)

type TenantContext struct {
	Site *models.TenantSite
	DB   *sql.DB
}

type TenantMiddleware struct {
	siteRepo *repositories.TenantSiteRepository
	dbPool   *database.TenantDBPool
}

func NewTenantMiddleware(siteRepo *repositories.TenantSiteRepository, dbPool *database.TenantDBPool) *TenantMiddleware {
	return &TenantMiddleware{
		siteRepo: siteRepo,
		dbPool:   dbPool,
	}
}

// Handle loads the tenant site the request acts within. An active view-as
// override (set upstream by the feature gate) switches the tenant to the
// impersonated one.
func (m *TenantMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)
		if !ok {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "No authentication claims found", nil)
			return
		}

		tenantID := claims.TenantID
		if gate, ok := r.Context().Value(apiContext.Gate).(*GateContext); ok && gate.ViewAs != nil {
			tenantID = gate.ViewAs.TenantID
		}

		site, err := m.siteRepo.GetByID(tenantID)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load tenant site", nil)
			return
		}
		if site == nil {
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Tenant site not found", nil)
			return
		}

		db, err := m.dbPool.Get(site.ID, site.SchemaName)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to connect to tenant database", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Tenant, &TenantContext{
			Site: site,
			DB:   db,
		})

		next(w, r.WithContext(ctx))
	}
}
