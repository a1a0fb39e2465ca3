package auth

import (
	"fmt"
	"match-chat/domain"
	"match-chat/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity carried by a bearer token. The user id travels in "sub".
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) UserID() string { return c.Subject }

// TokenService validates HS256 bearer tokens. Generate exists for tools and tests,
// the server never issues tokens itself.
type TokenService struct {
	secret []byte
	issuer string
}

func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer}
}

func (s *TokenService) Generate(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate checks signature, expiry and issuer and returns the claims.
// Every failure is reported as ErrUnauthenticated.
func (s *TokenService) Validate(raw string) (Claims, error) {
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: missing token", errors.ErrUnauthenticated)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: token has no subject", errors.ErrUnauthenticated)
	}
	if err := domain.ValidateID(claims.Subject); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	return claims, nil
}
