package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"bouncer/internal/domain"
)

// MaxBulkRecipients caps one bulk send.
const MaxBulkRecipients = 500

type messagingService struct {
	eventRepo      domain.EventRepository
	rsvpRepo       domain.RSVPRepository
	profileRepo    domain.ProfileRepository
	sessions       domain.MailSessionFactory
	sealer         domain.TokenSealer
	renderer       domain.EmailTemplateRenderer
	logger         *slog.Logger
	contextTimeout time.Duration
}

func NewMessagingService(eventRepo domain.EventRepository,
	rsvpRepo domain.RSVPRepository,
	profileRepo domain.ProfileRepository,
	sessions domain.MailSessionFactory,
	sealer domain.TokenSealer,
	renderer domain.EmailTemplateRenderer,
	logger *slog.Logger,
	timeout time.Duration,
) domain.MessagingService {
	return &messagingService{
		eventRepo:      eventRepo,
		rsvpRepo:       rsvpRepo,
		profileRepo:    profileRepo,
		sessions:       sessions,
		sealer:         sealer,
		renderer:       renderer,
		logger:         logger,
		contextTimeout: timeout,
	}
}

// SendBulkEmail sends one message per recipient from the organizer's Gmail account.
// A failure for one recipient is recorded in the result and does not stop the batch.
// An expired or revoked grant stops the batch; the partial result is returned with
// an error wrapping domain.ErrMailGrantRevoked.
func (s *messagingService) SendBulkEmail(ctx context.Context, req domain.BulkEmailRequest) (*domain.BulkEmailResult, error) {
	recipients, err := validateBulkRequest(&req)
	if err != nil {
		return nil, err
	}

	grant, profile, err := s.loadGrant(ctx, req.OrganizerUserID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Open(ctx, grant)
	if err != nil {
		return nil, err
	}

	subject, html, _, err := s.renderer.Render("event_update", &domain.EventUpdateEmailData{
		EventName:     req.EventName,
		OrganizerName: profile.DisplayName,
		Message:       req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("render event_update template: %w", err)
	}

	result := &domain.BulkEmailResult{Details: make([]domain.RecipientResult, 0, len(recipients))}
	for _, to := range recipients {
		if _, err := mail.ParseAddress(to); err != nil {
			record(result, to, errors.New("invalid email address"))
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, s.contextTimeout)
		err := session.Send(sendCtx, to, subject, html)
		cancel()
		if errors.Is(err, domain.ErrMailGrantRevoked) {
			s.logger.WarnContext(ctx, "gmail grant rejected, aborting bulk send",
				"user_id", req.OrganizerUserID, "sent", result.Successful)
			return result, err
		}
		if err != nil {
			s.logger.InfoContext(ctx, "bulk email recipient failed", "to", to, "err", err)
		}
		record(result, to, err)
	}

	s.persistRefreshedGrant(ctx, req.OrganizerUserID, grant, session)
	return result, nil
}

func validateBulkRequest(req *domain.BulkEmailRequest) ([]string, error) {
	req.Message = strings.TrimSpace(req.Message)
	req.EventName = strings.TrimSpace(req.EventName)
	if req.OrganizerUserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	if req.EventName == "" {
		return nil, fmt.Errorf("%w: eventName is required", domain.ErrInvalidInput)
	}
	recipients := dedupeEmails(req.Recipients)
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrInvalidInput)
	}
	if len(recipients) > MaxBulkRecipients {
		return nil, fmt.Errorf("%w: at most %d recipients per send", domain.ErrInvalidInput, MaxBulkRecipients)
	}
	return recipients, nil
}

func record(result *domain.BulkEmailResult, to string, err error) {
	if err != nil {
		result.Failed++
		result.Details = append(result.Details, domain.RecipientResult{Email: to, Error: err.Error()})
		return
	}
	result.Successful++
	result.Details = append(result.Details, domain.RecipientResult{Email: to, Success: true})
}

func (s *messagingService) loadGrant(ctx context.Context, userID string) (*domain.MailGrant, *domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	profile, err := s.profileRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("get profile: %w", err)
	}
	if !profile.GmailConnected() {
		return nil, nil, domain.ErrMailNotConnected
	}
	refresh, err := s.sealer.Open(*profile.GmailRefreshToken)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open refresh token: %v", domain.ErrMailGrantRevoked, err)
	}
	grant := &domain.MailGrant{RefreshToken: refresh}
	if profile.GmailAccessToken != nil && *profile.GmailAccessToken != "" {
		if access, err := s.sealer.Open(*profile.GmailAccessToken); err == nil {
			grant.AccessToken = access
		}
	}
	if profile.GmailAddress != nil {
		grant.Address = *profile.GmailAddress
	}
	if profile.GmailTokenExpiry != nil {
		grant.Expiry = *profile.GmailTokenExpiry
	}
	return grant, profile, nil
}

func (s *messagingService) persistRefreshedGrant(ctx context.Context, userID string, before *domain.MailGrant, session domain.MailSession) {
	after, err := session.Grant()
	if err != nil || after.AccessToken == before.AccessToken {
		return
	}
	if after.RefreshToken == "" {
		after.RefreshToken = before.RefreshToken
	}
	if after.Address == "" {
		after.Address = before.Address
	}
	sealed, err := sealGrant(s.sealer, after)
	if err != nil {
		s.logger.WarnContext(ctx, "seal refreshed gmail grant", "user_id", userID, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	if err := s.profileRepo.SetMailGrant(ctx, userID, *sealed); err != nil {
		s.logger.WarnContext(ctx, "persist refreshed gmail grant", "user_id", userID, "err", err)
	}
}

// ResolveRecipients returns the e-mail addresses of the event's RSVPs selected by audience.
// For AudienceCustom only the given addresses that belong to a guest are kept.
func (s *messagingService) ResolveRecipients(ctx context.Context, eventID, ownerID string, audience domain.Audience, custom []string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := loadOwnedEvent(ctx, s.eventRepo, eventID, ownerID); err != nil {
		return nil, err
	}
	switch audience {
	case "":
		audience = domain.AudienceAll
	case domain.AudienceAll, domain.AudienceVerified, domain.AudienceUnverified, domain.AudienceCustom:
	default:
		return nil, fmt.Errorf("%w: unknown audience %q", domain.ErrInvalidInput, audience)
	}
	if audience == domain.AudienceCustom {
		emails, err := s.rsvpRepo.FilterGuestEmails(ctx, eventID, dedupeEmails(custom))
		if err != nil {
			return nil, fmt.Errorf("filter guest emails: %w", err)
		}
		return dedupeEmails(emails), nil
	}

	rsvps, err := s.rsvpRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list rsvps: %w", err)
	}
	var emails []string
	for _, r := range rsvps {
		if audience == domain.AudienceVerified && !r.Approved {
			continue
		}
		if audience == domain.AudienceUnverified && r.Approved {
			continue
		}
		emails = append(emails, r.Email)
	}
	return dedupeEmails(emails), nil
}

// dedupeEmails trims addresses and drops blanks and case-insensitive repeats, keeping order.
func dedupeEmails(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, e := range in {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		k := strings.ToLower(e)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	return out
}

func sealGrant(sealer domain.TokenSealer, g *domain.MailGrant) (*domain.SealedMailGrant, error) {
	access, err := sealer.Seal(g.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := sealer.Seal(g.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("seal refresh token: %w", err)
	}
	return &domain.SealedMailGrant{
		Address:      g.Address,
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       g.Expiry,
	}, nil
}
