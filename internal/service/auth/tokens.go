package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer = "mentormatch"

	AudienceAPI      = "api"
	AudienceRealtime = "realtime"
)

var (
	ErrMissingSecret = errors.New("token secret is required")
	ErrInvalidToken  = errors.New("invalid token")
)

// Claims are the JWT claims carried by API tokens and realtime tickets.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HMAC-signed tokens.
type TokenManager struct {
	secret    []byte
	tokenTTL  time.Duration
	ticketTTL time.Duration
	now       func() time.Time
}

// NewTokenManager creates a TokenManager. tokenTTL bounds API tokens and
// ticketTTL bounds the single-purpose realtime tickets.
func NewTokenManager(secret string, tokenTTL, ticketTTL time.Duration) (*TokenManager, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &TokenManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		ticketTTL: ticketTTL,
		now:       time.Now,
	}, nil
}

// Issue signs an API token for the user.
func (m *TokenManager) Issue(userID, role string) (string, time.Time, error) {
	return m.sign(userID, role, AudienceAPI, m.tokenTTL)
}

// IssueTicket signs a short-lived token that may only be used to join the
// realtime channel.
func (m *TokenManager) IssueTicket(userID string) (string, time.Time, error) {
	return m.sign(userID, "", AudienceRealtime, m.ticketTTL)
}

// Verify validates an API token.
func (m *TokenManager) Verify(token string) (*Claims, error) {
	return m.parse(token, AudienceAPI)
}

// VerifyIdentity validates a realtime ticket or an API token and returns its
// subject.
func (m *TokenManager) VerifyIdentity(token string) (string, error) {
	claims, err := m.parse(token, AudienceRealtime)
	if err != nil {
		claims, err = m.parse(token, AudienceAPI)
		if err != nil {
			return "", err
		}
	}
	return claims.Subject, nil
}

func (m *TokenManager) sign(userID, role, audience string, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (m *TokenManager) parse(token, audience string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
