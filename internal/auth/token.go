package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/orderline/orders-bff/internal/domain"
)

// TokenType separates the purposes a token may be used for.
type TokenType string

const (
	TokenTypeAccess    TokenType = "user"
	TokenTypeRefresh   TokenType = "refresh"
	TokenTypeHyperlink TokenType = "hyperlink"
)

// Subject identifies the contact a token is issued to.
type Subject struct {
	ContactID string
	Email     string
	Phone     string
	Role      domain.Role
}

// Claims describes JWT payload.
type Claims struct {
	ContactID     string      `json:"cid"`
	Email         string      `json:"email"`
	Phone         string      `json:"phone"`
	Role          domain.Role `json:"role"`
	Type          TokenType   `json:"type"`
	OpportunityID string      `json:"opp,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttls   map[TokenType]time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager. Non-positive lifetimes fall back to 1h, 7d and 24h.
func NewTokenManager(secret string, accessTTL, refreshTTL, hyperlinkTTL time.Duration) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if hyperlinkTTL <= 0 {
		hyperlinkTTL = 24 * time.Hour
	}
	return &TokenManager{
		secret: []byte(secret),
		ttls: map[TokenType]time.Duration{
			TokenTypeAccess:    accessTTL,
			TokenTypeRefresh:   refreshTTL,
			TokenTypeHyperlink: hyperlinkTTL,
		},
		now: time.Now,
	}
}

// Issue builds and signs a token. opportunityID binds hyperlink tokens to one opportunity.
func (tm *TokenManager) Issue(subject Subject, typ TokenType, opportunityID string) (string, time.Time, error) {
	ttl, ok := tm.ttls[typ]
	if !ok {
		return "", time.Time{}, errors.New("unknown token type")
	}
	if typ == TokenTypeHyperlink && opportunityID == "" {
		return "", time.Time{}, errors.New("hyperlink token requires an opportunity")
	}
	issuedAt := tm.now()
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		ContactID:     subject.ContactID,
		Email:         subject.Email,
		Phone:         subject.Phone,
		Role:          subject.Role,
		Type:          typ,
		OpportunityID: opportunityID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject.ContactID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	}, jwt.WithTimeFunc(tm.now))
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
