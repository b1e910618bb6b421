package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apiContext "gatehouse/internal/api/context"
	"gatehouse/internal/platform/auth"
)

type AuditLog struct {
	ID           string                 `json:"id"`
	TenantID     string                 `json:"tenant_id"`
	UserID       string                 `json:"user_id"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	Metadata     map[string]interface{} `json:"metadata"`
	CreatedAt    int64                  `json:"created_at"`
}

type Logger struct {
	globalDB *sql.DB
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{globalDB: db}
}

// Log records an admin mutation. Best-effort: a failed audit write is logged
// and swallowed so it never fails the request that triggered it.
func (l *Logger) Log(ctx context.Context, action, resourceType, resourceID string, metadata map[string]interface{}) {
	var tenantID, userID string
	if claims, ok := ctx.Value(apiContext.Claims).(*auth.Claims); ok {
		tenantID = claims.TenantID
		userID = claims.UserID
	}

	metaJSON, _ := json.Marshal(metadata)

	_, err := l.globalDB.ExecContext(ctx, `
		INSERT INTO audit_logs (id, tenant_id, user_id, action, resource_type, resource_id, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, "aud_"+uuid.NewString(), tenantID, userID, action, resourceType, resourceID, string(metaJSON), time.Now().Unix())
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("failed to write audit log")
	}
}
