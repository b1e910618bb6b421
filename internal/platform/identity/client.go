package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"gatehouse/internal/platform/config"
)

// Sentinel outcomes for validate-user. A 401/403 from the service is an
// explicit denial and must never be confused with the service being down:
// the role resolver only falls back to local metadata on ErrUnavailable.
var (
	ErrNotAuthorized = errors.New("identity: not authorized for this application")
	ErrUnavailable   = errors.New("identity: service unavailable")
)

type Client struct {
	cfg    config.IdentityConfig
	client *http.Client
}

func NewClient(cfg config.IdentityConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Configured() bool {
	return c.cfg.BaseURL != ""
}

type assignment struct {
	Role string `json:"role"`
}

type orgRole struct {
	OrgID string `json:"org_id"`
	Role  string `json:"role"`
}

type validateUserResponse struct {
	Assignment        *assignment `json:"assignment"`
	OrganizationRoles []orgRole   `json:"organization_roles"`
}

// ValidateUser resolves the caller's role at the identity service. A 200
// with no usable role returns ("", nil): authenticated but no capability in
// this application. The bearer token is the caller's, the API key is ours.
func (c *Client) ValidateUser(ctx context.Context, bearerToken string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/validate-user", map[string]string{
		"application_id": c.cfg.ApplicationID,
	})
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("call", "validate-user").Msg("identity service unreachable")
		return "", ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body validateUserResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("identity: decoding validate-user response: %w", err)
		}
		// Prefer the assignment record, else the matching org role.
		if body.Assignment != nil && body.Assignment.Role != "" {
			return body.Assignment.Role, nil
		}
		for _, or := range body.OrganizationRoles {
			if or.OrgID == c.cfg.OrgID && or.Role != "" {
				return or.Role, nil
			}
		}
		return "", nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", ErrNotAuthorized
	case resp.StatusCode >= 500:
		log.Warn().Int("status", resp.StatusCode).Str("call", "validate-user").Msg("identity service error")
		return "", ErrUnavailable
	default:
		return "", fmt.Errorf("identity: validate-user returned status %d", resp.StatusCode)
	}
}

// SyncUserRole pushes a locally made role change back to the identity
// service so the central record stays authoritative.
func (c *Client) SyncUserRole(ctx context.Context, userID, roleSlug string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/sync-user-role", map[string]string{
		"user_id": userID,
		"role":    roleSlug,
		"org_id":  c.cfg.OrgID,
	})
	if err != nil {
		return err
	}
	return c.doExpectOK(req, "sync-user-role")
}

type CheckUserResult struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Exists bool   `json:"exists"`
}

func (c *Client) CheckUser(ctx context.Context, email string) (*CheckUserResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/check-user", map[string]string{
		"email":  email,
		"org_id": c.cfg.OrgID,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return nil, ErrUnavailable
		}
		return nil, fmt.Errorf("identity: check-user returned status %d", resp.StatusCode)
	}

	var result CheckUserResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return ErrUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ErrUnavailable
	}
	return nil
}

func (c *Client) ValidateAPIKey(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/validate-api-key", nil)
	if err != nil {
		return err
	}
	return c.doExpectOK(req, "validate-api-key")
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload map[string]string) (*http.Request, error) {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	return req, nil
}

func (c *Client) doExpectOK(req *http.Request, call string) error {
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("call", call).Msg("identity service unreachable")
		return ErrUnavailable
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrNotAuthorized
	case resp.StatusCode >= 500:
		log.Warn().Int("status", resp.StatusCode).Str("call", call).Msg("identity service error")
		return ErrUnavailable
	default:
		return fmt.Errorf("identity: %s returned status %d", call, resp.StatusCode)
	}
}
