package domain

import (
	"context"
	"time"
)

// Profile is the per-user record created on first sign-in. ID is the user identifier.
// swagger:model Profile
type Profile struct {
	ID            string    `json:"id"`
	GoogleSubject string    `json:"-"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"display_name"`
	GmailAddress  *string   `json:"gmail_address"`
	QRCode        *string   `json:"qr_code"`
	CreatedAt     time.Time `json:"created_at"`

	// Sealed Gmail tokens; never serialized.
	GmailAccessToken  *string    `json:"-"`
	GmailRefreshToken *string    `json:"-"`
	GmailTokenExpiry  *time.Time `json:"-"`
}

// GmailConnected reports whether the profile holds a Gmail grant.
func (p *Profile) GmailConnected() bool {
	return p.GmailRefreshToken != nil && *p.GmailRefreshToken != ""
}

// SealedMailGrant is a Gmail grant as persisted: tokens are sealed ciphertext.
type SealedMailGrant struct {
	Address      string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// ProfileRepository defines the interface for profile storage.
type ProfileRepository interface {
	UpsertByGoogleSubject(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) (*Profile, error)
	SetMailGrant(ctx context.Context, id string, grant SealedMailGrant) error
	ClearMailGrant(ctx context.Context, id string) error
	SetQRCode(ctx context.Context, id, qrCode string) error
	Delete(ctx context.Context, id string) error
}

// ProfileService defines profile and account operations.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	UpdateDisplayName(ctx context.Context, userID, displayName string) (*Profile, error)
	EnsureQRCode(ctx context.Context, userID string) (string, error)
	DeleteAccount(ctx context.Context, userID string) error
}
