package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bouncer/internal/domain"
)

// MaxDisplayNameLength bounds profile display names.
const MaxDisplayNameLength = 100

type profileService struct {
	profileRepo    domain.ProfileRepository
	eventRepo      domain.EventRepository
	rsvpRepo       domain.RSVPRepository
	events         domain.EventService
	logger         *slog.Logger
	contextTimeout time.Duration
}

func NewProfileService(profileRepo domain.ProfileRepository,
	eventRepo domain.EventRepository,
	rsvpRepo domain.RSVPRepository,
	events domain.EventService,
	logger *slog.Logger,
	timeout time.Duration,
) domain.ProfileService {
	return &profileService{
		profileRepo:    profileRepo,
		eventRepo:      eventRepo,
		rsvpRepo:       rsvpRepo,
		events:         events,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	return s.profileRepo.GetByID(ctx, userID)
}

func (s *profileService) UpdateDisplayName(ctx context.Context, userID, displayName string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, fmt.Errorf("%w: display name is required", domain.ErrInvalidInput)
	}
	if len([]rune(displayName)) > MaxDisplayNameLength {
		return nil, fmt.Errorf("%w: display name must be at most %d characters", domain.ErrInvalidInput, MaxDisplayNameLength)
	}
	return s.profileRepo.UpdateDisplayName(ctx, userID, displayName)
}

// EnsureQRCode returns the user's check-in QR payload, which is the user id.
// It is stored on first request.
func (s *profileService) EnsureQRCode(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.QRCode != nil && *profile.QRCode != "" {
		return *profile.QRCode, nil
	}
	if err := s.profileRepo.SetQRCode(ctx, userID, profile.ID); err != nil {
		return "", fmt.Errorf("set qr code: %w", err)
	}
	return profile.ID, nil
}

// DeleteAccount removes the user's RSVPs, each event they own (with its RSVPs and
// tickets), then the profile. Like event deletion it stops at the first failing stage.
func (s *profileService) DeleteAccount(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.profileRepo.GetByID(ctx, userID); err != nil {
		return err
	}
	if err := s.rsvpRepo.DeleteByUserID(ctx, userID); err != nil {
		return &domain.CascadeError{Stage: "rsvps", Err: err}
	}
	events, err := s.eventRepo.ListByOwnerID(ctx, userID)
	if err != nil {
		return &domain.CascadeError{Stage: "events", Err: err}
	}
	for _, e := range events {
		if err := s.events.DeleteEvent(ctx, e.ID, userID); err != nil {
			var cascade *domain.CascadeError
			if errors.As(err, &cascade) {
				return &domain.CascadeError{Stage: "event " + e.ID + " " + cascade.Stage, Err: cascade.Err}
			}
			return &domain.CascadeError{Stage: "event " + e.ID, Err: err}
		}
	}
	if err := s.profileRepo.Delete(ctx, userID); err != nil {
		return &domain.CascadeError{Stage: "profile", Err: err}
	}
	s.logger.InfoContext(ctx, "account deleted", "user_id", userID, "events", len(events))
	return nil
}
