package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gatehouse/internal/platform/config"
)

const (
	AALBaseline = "aal1"
	AALElevated = "aal2"
)

type Claims struct {
	UserID   string `json:"uid"`
	TenantID string `json:"tid"`
	Role     string `json:"role"`
	Type     string `json:"typ"`
	Email    string `json:"email"`
	AAL      string `json:"aal"`
	jwt.RegisteredClaims
}

func (c *Claims) Elevated() bool {
	return c.AAL == AALElevated
}

type TokenService struct {
	config config.SessionConfig
}

func NewTokenService(cfg config.SessionConfig) *TokenService {
	return &TokenService{config: cfg}
}

// SessionPair is the access/refresh cookie pair attached to responses.
type SessionPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (s *TokenService) GenerateSessionPair(userID, tenantID, role, typ, email, aal string) (*SessionPair, error) {
	access, err := s.generateAccessToken(userID, tenantID, role, typ, email, aal)
	if err != nil {
		return nil, err
	}
	refresh, err := s.generateRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &SessionPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) generateAccessToken(userID, tenantID, role, typ, email, aal string) (string, error) {
	claims := Claims{
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		Type:     typ,
		Email:    email,
		AAL:      aal,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.AccessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "gatehouse",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *TokenService) generateRefreshToken(userID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.RefreshTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    "gatehouse",
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func (s *TokenService) ValidateRefreshToken(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
