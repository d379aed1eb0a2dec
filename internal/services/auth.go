package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bouncer/internal/clock"
	"bouncer/internal/domain"
)

type authService struct {
	identity       domain.IdentityProvider
	grants         domain.MailGrantProvider
	profileRepo    domain.ProfileRepository
	issuer         domain.TokenIssuer
	verifier       domain.TokenVerifier
	sealer         domain.TokenSealer
	sessionTTL     time.Duration
	refreshTTL     time.Duration
	clock          clock.Clock
	logger         *slog.Logger
	contextTimeout time.Duration
}

// AuthConfig holds the token lifetimes of issued sessions.
type AuthConfig struct {
	SessionTTL time.Duration
	RefreshTTL time.Duration
}

// NewAuthService creates an AuthService on top of the Google sign-in and Gmail grant flows.
func NewAuthService(identity domain.IdentityProvider,
	grants domain.MailGrantProvider,
	profileRepo domain.ProfileRepository,
	issuer domain.TokenIssuer,
	verifier domain.TokenVerifier,
	sealer domain.TokenSealer,
	cfg AuthConfig,
	c clock.Clock,
	logger *slog.Logger,
	timeout time.Duration,
) domain.AuthService {
	return &authService{
		identity:       identity,
		grants:         grants,
		profileRepo:    profileRepo,
		issuer:         issuer,
		verifier:       verifier,
		sealer:         sealer,
		sessionTTL:     cfg.SessionTTL,
		refreshTTL:     cfg.RefreshTTL,
		clock:          c,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *authService) LoginURL(state string) string {
	return s.identity.AuthCodeURL(state)
}

// CompleteLogin exchanges the authorization code, upserts the profile keyed by the
// Google subject and issues an access and a refresh token.
func (s *authService) CompleteLogin(ctx context.Context, code string) (*domain.LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: authorization code is required", domain.ErrInvalidInput)
	}
	id, err := s.identity.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	profile := &domain.Profile{
		GoogleSubject: id.Subject,
		Email:         id.Email,
		DisplayName:   id.Name,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.profileRepo.UpsertByGoogleSubject(ctx, profile); err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	access, err := s.issuer.Issue(profile.ID, profile.Email, profile.DisplayName, domain.TokenKindAccess, s.sessionTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.issuer.Issue(profile.ID, profile.Email, profile.DisplayName, domain.TokenKindRefresh, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	s.logger.InfoContext(ctx, "user signed in", "user_id", profile.ID)
	return &domain.LoginResult{Profile: profile, AccessToken: access, RefreshToken: refresh}, nil
}

// Verify accepts access tokens only.
func (s *authService) Verify(token string) (*domain.Session, error) {
	session, err := s.verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	if session.Kind != domain.TokenKindAccess {
		return nil, fmt.Errorf("%w: not an access token", domain.ErrUnauthenticated)
	}
	return session, nil
}

// Refresh exchanges a refresh token for a new access token. The profile must still exist.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (string, *domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	session, err := s.verifier.Verify(refreshToken)
	if err != nil {
		return "", nil, err
	}
	if session.Kind != domain.TokenKindRefresh {
		return "", nil, fmt.Errorf("%w: not a refresh token", domain.ErrUnauthenticated)
	}
	profile, err := s.profileRepo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: account no longer exists", domain.ErrUnauthenticated)
		}
		return "", nil, fmt.Errorf("get profile: %w", err)
	}
	access, err := s.issuer.Issue(profile.ID, profile.Email, profile.DisplayName, domain.TokenKindAccess, s.sessionTTL)
	if err != nil {
		return "", nil, fmt.Errorf("issue access token: %w", err)
	}
	return access, &domain.Session{
		UserID:    profile.ID,
		Email:     profile.Email,
		Name:      profile.DisplayName,
		Kind:      domain.TokenKindAccess,
		ExpiresAt: s.clock.Now().Add(s.sessionTTL),
	}, nil
}

func (s *authService) GmailURL(state string) string {
	return s.grants.AuthCodeURL(state)
}

// ConnectGmail completes the Gmail grant flow and stores the sealed grant on the profile.
// It returns the granted mailbox address.
func (s *authService) ConnectGmail(ctx context.Context, userID, code string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("%w: authorization code is required", domain.ErrInvalidInput)
	}
	grant, err := s.grants.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	sealed, err := sealGrant(s.sealer, grant)
	if err != nil {
		return "", err
	}
	if err := s.profileRepo.SetMailGrant(ctx, userID, *sealed); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("store gmail grant: %w", err)
	}
	s.logger.InfoContext(ctx, "gmail connected", "user_id", userID)
	return grant.Address, nil
}

func (s *authService) DisconnectGmail(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := s.profileRepo.ClearMailGrant(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("clear gmail grant: %w", err)
	}
	return nil
}
