package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"gatehouse/internal/platform/identity"
)

type HealthHandler struct {
	db             *sql.DB
	identityClient *identity.Client
}

func NewHealthHandler(db *sql.DB, identityClient *identity.Client) *HealthHandler {
	return &HealthHandler{db: db, identityClient: identityClient}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Identity string `json:"identity"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok", Identity: "ok"}
	status := http.StatusOK

	if err := h.db.Ping(); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	// The identity service being down degrades role resolution but the
	// local fallback keeps the server useful, so it never fails the probe
	// on its own.
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.identityClient.Configured() {
		if err := h.identityClient.Health(ctx); err != nil {
			resp.Identity = "unreachable"
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		}
	} else {
		resp.Identity = "unconfigured"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
