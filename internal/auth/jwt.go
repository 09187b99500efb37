package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/peopleops/internal/identity"
	"github.com/wolfeidau/peopleops/internal/models"
)

// SessionClaims are the claims the identity service puts in session tokens.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTResolver verifies identity service session tokens locally using the
// shared HS256 secret, avoiding a round-trip per request.
type JWTResolver struct {
	secret   []byte
	audience string
}

// NewJWTResolver creates a resolver. If audience is empty the aud claim is not checked.
func NewJWTResolver(secret, audience string) (*JWTResolver, error) {
	if err := checkSecret(secret); err != nil {
		return nil, err
	}

	return &JWTResolver{secret: []byte(secret), audience: audience}, nil
}

// ResolveToken verifies the token signature and expiry and returns the principal
// named by its subject. Any failure is reported as identity.ErrInvalidToken.
func (v *JWTResolver) ResolveToken(ctx context.Context, tokenString string) (*models.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		log.Debug().Err(err).Msg("JWT parse error")
		return nil, fmt.Errorf("%w: %w", identity.ErrInvalidToken, err)
	}

	if !parsed.Valid {
		return nil, identity.ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", identity.ErrInvalidToken)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", identity.ErrInvalidToken)
	}

	return &models.Principal{
		PrincipalID: claims.Subject,
		Email:       claims.Email,
	}, nil
}

// IssueToken creates a signed HS256 session token. Used by development tooling
// and tests; production tokens come from the identity service.
func IssueToken(secret, subject, email, audience string, ttl time.Duration) (string, error) {
	if err := checkSecret(secret); err != nil {
		return "", err
	}

	now := time.Now()
	claims := &SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "peopleops",
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func checkSecret(secret string) error {
	if secret == "" {
		return errors.New("JWT secret not provided")
	}
	if len(secret) < 32 {
		return errors.New("JWT secret must be at least 32 bytes (256 bits) for HMAC-SHA256")
	}
	return nil
}
