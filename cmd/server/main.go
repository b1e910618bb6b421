package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"gatehouse/internal/api"
	"gatehouse/internal/api/handlers"
	"gatehouse/internal/api/middleware"
	"gatehouse/internal/engine/codes"
	"gatehouse/internal/engine/features"
	"gatehouse/internal/engine/roles"
	"gatehouse/internal/engine/stepup"
	"gatehouse/internal/pkg/logger"
	"gatehouse/internal/platform/audit"
	"gatehouse/internal/platform/auth"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/database"
	"gatehouse/internal/platform/identity"
	"gatehouse/internal/platform/repositories"
)

func main() {
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	// Database Connections
	globalDB, err := database.NewGlobalDB(cfg.Database.Global)
	if err != nil {
		log.Fatalf("Failed to connect to global DB: %v", err)
	}
	defer globalDB.Close()

	tenantDBPool := database.NewTenantDBPool(cfg.Database.Tenant)
	defer tenantDBPool.CloseAll()

	// Repositories
	identityRepo := repositories.NewIdentityRepository(globalDB)
	siteRepo := repositories.NewTenantSiteRepository(globalDB)
	featureRepo := repositories.NewFeatureRepository(globalDB)
	groupRepo := repositories.NewAccessGroupRepository(globalDB)

	// The feature registry is loaded once at startup; the catalog only
	// changes with a deploy.
	featureList, err := featureRepo.List()
	if err != nil {
		log.Fatalf("Failed to load feature catalog: %v", err)
	}
	registry := features.NewRegistry(featureList)

	// Services
	tokenSvc := auth.NewTokenService(cfg.Session)
	identityClient := identity.NewClient(cfg.Identity)

	// Without a configured identity service there is no remote authority to
	// ask; the resolver runs on local metadata alone instead of attempting a
	// doomed call per request.
	var remoteSource roles.RoleSource
	if identityClient.Configured() {
		remoteSource = roles.NewRemoteRoleSource(identityClient)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := identityClient.ValidateAPIKey(ctx); err != nil {
			log.Printf("Identity API key validation failed: %v", err)
		}
		cancel()
	}
	resolver := roles.NewResolver(remoteSource, roles.NewLocalMetadataRoleSource())

	codeRepo := codes.NewRepository(globalDB)
	codeSvc := codes.NewService(codeRepo, groupRepo)

	stepupRepo := stepup.NewRepository(globalDB)
	relaySvc := stepup.NewRelayService(stepupRepo, cfg.Relay.TokenTTL)
	factorSvc := stepup.NewFactorService(stepupRepo, "gatehouse")

	auditLogger := audit.NewLogger(globalDB)

	// Handlers
	sessionHandler := handlers.NewSessionHandler(identityRepo, identityClient, tokenSvc, cfg.Session)
	mfaHandler := handlers.NewMFAHandler(factorSvc, relaySvc, tokenSvc, cfg.Session, cfg.Domains)
	codeHandler := handlers.NewCodeHandler(codeSvc, codeRepo, groupRepo, auditLogger)
	magHandler := handlers.NewMAGHandler(groupRepo, auditLogger)
	featureHandler := handlers.NewFeatureHandler(featureRepo, siteRepo, registry, auditLogger)
	siteHandler := handlers.NewSiteHandler(siteRepo, auditLogger)
	viewAsHandler := handlers.NewViewAsHandler(siteRepo, featureRepo, auditLogger)
	contentHandler := handlers.NewContentHandler(siteRepo, tenantDBPool, groupRepo, cfg.Domains)
	identityHandler := handlers.NewIdentityHandler(identityRepo, identityClient, auditLogger)
	healthHandler := handlers.NewHealthHandler(globalDB, identityClient)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	gateMiddleware := middleware.NewFeatureGateMiddleware(
		resolver, identityRepo, featureRepo, siteRepo, registry,
		cfg.Identity.SuperadminSlug, cfg.Domains.DashboardPath,
	)
	tenantMiddleware := middleware.NewTenantMiddleware(siteRepo, tenantDBPool)

	// Router
	deps := &api.Dependencies{
		SessionHandler:  sessionHandler,
		MFAHandler:      mfaHandler,
		CodeHandler:     codeHandler,
		MAGHandler:      magHandler,
		FeatureHandler:  featureHandler,
		SiteHandler:     siteHandler,
		ViewAsHandler:   viewAsHandler,
		ContentHandler:  contentHandler,
		IdentityHandler: identityHandler,
		HealthHandler:   healthHandler,

		AuthMiddleware:   authMiddleware,
		GateMiddleware:   gateMiddleware,
		TenantMiddleware: tenantMiddleware,
	}
	router := api.NewRouter(deps)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
