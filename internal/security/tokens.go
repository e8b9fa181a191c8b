package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or signed by another key.
	ErrInvalidToken = errors.New("invalid token")
	// ErrEmptySecret is returned by NewTokenProvider when no signing secret is given.
	ErrEmptySecret = errors.New("session secret is empty")
)

// SessionClaims holds JWT claims for the browser session cookie.
type SessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UserID returns the subject claim.
func (c *SessionClaims) UserID() string { return c.Subject }

// TokenProvider issues and validates HS256 session tokens.
type TokenProvider struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	clock    clockwork.Clock
}

// NewTokenProvider returns a TokenProvider that signs with secret. issuer and audience are
// set on issued claims and required on validation.
func NewTokenProvider(secret []byte, issuer, audience string, ttl time.Duration, clock clockwork.Clock) (*TokenProvider, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenProvider{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		clock:    clock,
	}, nil
}

// TTL returns the lifetime of issued tokens.
func (p *TokenProvider) TTL() time.Duration { return p.ttl }

// Issue signs a session token for the given user.
// Returns the token string and its expiration time.
func (p *TokenProvider) Issue(userID, username, role string) (token string, expiresAt time.Time, err error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.clock.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: username,
		Role:     role,
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Validate parses and validates a session token (signature, exp, iss, aud).
func (p *TokenProvider) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.clock.Now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RandomSecret returns n random bytes, used when no session secret is configured outside production.
func RandomSecret(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func generateJTI() (string, error) {
	b, err := RandomSecret(16)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
