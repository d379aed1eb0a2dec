package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"bouncer/internal/clock"
	"bouncer/internal/domain"
)

// MaxPaymentProofSize is the largest accepted payment-proof image.
const MaxPaymentProofSize = 5 << 20

// ProofURLExpiry is how long a payment-proof view URL stays valid.
const ProofURLExpiry = 15 * time.Minute

type paymentProofService struct {
	eventRepo      domain.EventRepository
	rsvpRepo       domain.RSVPRepository
	store          domain.ObjectStore
	clock          clock.Clock
	contextTimeout time.Duration
}

func NewPaymentProofService(eventRepo domain.EventRepository,
	rsvpRepo domain.RSVPRepository,
	store domain.ObjectStore,
	c clock.Clock,
	timeout time.Duration,
) domain.PaymentProofService {
	return &paymentProofService{
		eventRepo:      eventRepo,
		rsvpRepo:       rsvpRepo,
		store:          store,
		clock:          c,
		contextTimeout: timeout,
	}
}

// Upload stores the image under "{userID}_{eventID}_{unix-millis}.{ext}" and returns that key.
func (s *paymentProofService) Upload(ctx context.Context, upload domain.PaymentProofUpload) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if upload.UserID == "" || upload.EventID == "" || upload.Body == nil {
		return "", fmt.Errorf("%w: user, event and file are required", domain.ErrInvalidInput)
	}
	mediaType, _, err := mime.ParseMediaType(upload.ContentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return "", fmt.Errorf("%w: payment proof must be an image", domain.ErrInvalidInput)
	}
	if upload.Size <= 0 || upload.Size > MaxPaymentProofSize {
		return "", fmt.Errorf("%w: payment proof must be between 1 byte and 5 MiB", domain.ErrInvalidInput)
	}
	if _, err := s.eventRepo.GetByID(ctx, upload.EventID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get event: %w", err)
	}

	key := fmt.Sprintf("%s%d%s", proofKeyPrefix(upload.UserID, upload.EventID), s.clock.Now().UnixMilli(), proofExtension(upload.Filename, mediaType))
	if err := s.store.Put(ctx, key, mediaType, upload.Body, upload.Size); err != nil {
		return "", fmt.Errorf("%w: store payment proof: %w", domain.ErrUpstream, err)
	}
	return key, nil
}

// ViewURL returns a time-limited URL for the payment proof attached to an RSVP of the owner's event.
func (s *paymentProofService) ViewURL(ctx context.Context, eventID, rsvpID, ownerID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := loadOwnedEvent(ctx, s.eventRepo, eventID, ownerID); err != nil {
		return "", err
	}
	rsvp, err := s.rsvpRepo.GetByID(ctx, rsvpID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("get rsvp: %w", err)
	}
	if rsvp.EventID != eventID || rsvp.PaymentProofRef == nil || *rsvp.PaymentProofRef == "" {
		return "", domain.ErrNotFound
	}
	url, err := s.store.URL(ctx, *rsvp.PaymentProofRef, ProofURLExpiry)
	if err != nil {
		return "", fmt.Errorf("%w: payment proof url: %w", domain.ErrUpstream, err)
	}
	return url, nil
}

func proofKeyPrefix(userID, eventID string) string {
	return userID + "_" + eventID + "_"
}

func proofExtension(filename, mediaType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" && len(ext) <= 5 && !strings.ContainsAny(ext, `/\`) {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".img"
}
