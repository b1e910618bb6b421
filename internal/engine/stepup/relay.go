package stepup

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"gatehouse/internal/platform/models"
)

// ErrRelayInvalid covers an absent, expired, or already consumed relay
// token. The relay endpoint does not distinguish them to the client; all
// three send the caller back to the challenge with an error flag.
var ErrRelayInvalid = errors.New("relay token invalid or expired")

// RelayService hands an elevated session through a redirect. The token is
// single-use and short-lived; it travels as a URL query parameter and the
// elevated cookies are written on the outgoing document response at the
// relay endpoint, never from a background API call.
type RelayService struct {
	repo *Repository
	ttl  time.Duration
}

func NewRelayService(repo *Repository, ttl time.Duration) *RelayService {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &RelayService{repo: repo, ttl: ttl}
}

// Mint creates a relay token for an elevated cookie payload. The token
// carries no credentials itself; it is only the lookup key.
func (s *RelayService) Mint(cookiePayload string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	now := time.Now()
	err := s.repo.CreateRelayToken(&models.RelayToken{
		Token:         token,
		CookiePayload: cookiePayload,
		ExpiresAt:     now.Add(s.ttl).Unix(),
		CreatedAt:     now.Unix(),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Consume claims the token exactly once and returns its payload. A second
// caller with the same URL gets ErrRelayInvalid.
func (s *RelayService) Consume(token string) (string, error) {
	if token == "" {
		return "", ErrRelayInvalid
	}
	payload, ok, err := s.repo.ClaimRelayToken(token, time.Now().Unix())
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrRelayInvalid
	}
	return payload, nil
}
