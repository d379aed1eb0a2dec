package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bouncer/internal/domain"
)

const issuerName = "bouncer"

type jwtClaims struct {
	jwt.RegisteredClaims
	Email string           `json:"email"`
	Name  string           `json:"name,omitempty"`
	Kind  domain.TokenKind `json:"kind"`
}

// JWTIssuer signs and verifies HS256 session tokens.
type JWTIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewJWTIssuer returns an issuer that signs JWTs with HS256 using the given secret.
// It satisfies both domain.TokenIssuer and domain.TokenVerifier.
func NewJWTIssuer(secret string) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret), now: time.Now}
}

func (i *JWTIssuer) Issue(userID, email, name string, kind domain.TokenKind, expiry time.Duration) (string, error) {
	now := i.now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuerName,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		Email: email,
		Name:  name,
		Kind:  kind,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (i *JWTIssuer) key(*jwt.Token) (any, error) {
	return i.secret, nil
}

// Verify parses the token, checks signature, issuer and expiry, and returns the session snapshot.
func (i *JWTIssuer) Verify(token string) (*domain.Session, error) {
	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, i.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthenticated)
	}
	if claims.Kind != domain.TokenKindAccess && claims.Kind != domain.TokenKindRefresh {
		return nil, fmt.Errorf("%w: unknown token kind", domain.ErrUnauthenticated)
	}
	return &domain.Session{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}
