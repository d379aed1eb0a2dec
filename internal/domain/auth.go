package domain

import (
	"context"
	"time"
)

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Session is an immutable snapshot of an authenticated identity, derived from a verified token.
// swagger:model Session
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Kind      TokenKind `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer issues signed session tokens for an authenticated user.
type TokenIssuer interface {
	Issue(userID, email, name string, kind TokenKind, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the session it encodes.
type TokenVerifier interface {
	Verify(token string) (*Session, error)
}

// Identity is the subset of the identity provider's user info the app relies on.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityProvider wraps the OAuth sign-in flow of the external identity service.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// MailGrant is a decrypted OAuth grant authorizing mail sends from Address.
type MailGrant struct {
	Address      string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// MailGrantProvider runs the separate OAuth flow that authorizes sending mail.
type MailGrantProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*MailGrant, error)
}

// TokenSealer encrypts OAuth tokens before they are persisted.
type TokenSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// LoginResult is returned after a completed sign-in.
type LoginResult struct {
	Profile      *Profile
	AccessToken  string
	RefreshToken string
}

// AuthService defines sign-in, session and mail-grant operations.
type AuthService interface {
	LoginURL(state string) string
	CompleteLogin(ctx context.Context, code string) (*LoginResult, error)
	Verify(token string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (string, *Session, error)
	GmailURL(state string) string
	ConnectGmail(ctx context.Context, userID, code string) (string, error)
	DisconnectGmail(ctx context.Context, userID string) error
}
