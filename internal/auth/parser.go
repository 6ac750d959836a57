package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the marketplace profile acting on a request.
type Claims struct {
	ProfileID int64 `json:"profile_id"`
	jwt.RegisteredClaims
}

// Parser validates HS256 access tokens.
type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

// Enabled reports whether a signing secret is configured.
func (p *Parser) Enabled() bool {
	return len(p.secret) > 0
}

func (p *Parser) Parse(token string) (*Claims, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ProfileID <= 0 {
		return nil, fmt.Errorf("%w: missing profile_id", ErrInvalidToken)
	}
	return claims, nil
}

// Issue signs a token for profileID. It is used by tests and local tooling.
func (p *Parser) Issue(profileID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}
