package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bouncer/internal/clock"
	"bouncer/internal/domain"
)

type eventService struct {
	eventRepo      domain.EventRepository
	ticketRepo     domain.TicketRepository
	rsvpRepo       domain.RSVPRepository
	clock          clock.Clock
	contextTimeout time.Duration
}

func NewEventService(eventRepo domain.EventRepository,
	ticketRepo domain.TicketRepository,
	rsvpRepo domain.RSVPRepository,
	c clock.Clock,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		ticketRepo:     ticketRepo,
		rsvpRepo:       rsvpRepo,
		clock:          c,
		contextTimeout: timeout,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if event.OwnerID == "" {
		return fmt.Errorf("%w: event owner is required", domain.ErrInvalidInput)
	}
	event.Name = strings.TrimSpace(event.Name)
	if event.Name == "" {
		return fmt.Errorf("%w: event name is required", domain.ErrInvalidInput)
	}
	if event.TimeZone == "" {
		event.TimeZone = "UTC"
	}
	if err := validateSchedule(event.StartsAt, event.EndsAt, event.TimeZone); err != nil {
		return err
	}
	event.CreatedAt = s.clock.Now()
	return s.eventRepo.Create(ctx, event)
}

func (s *eventService) GetEvent(ctx context.Context, eventID string) (*domain.EventDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	tickets, err := s.ticketRepo.ListByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	now := s.clock.Now()
	views := make([]*domain.TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, domain.NewTicketView(t, now))
	}
	description, payment := domain.ParsePaymentInfo(event.AdditionalInfo)
	return &domain.EventDetails{
		Event:       event,
		Description: description,
		PaymentInfo: payment,
		Tickets:     views,
	}, nil
}

func (s *eventService) ListEventsByOwner(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	return s.eventRepo.ListByOwnerID(ctx, ownerID)
}

func (s *eventService) UpdateEvent(ctx context.Context, eventID, ownerID string, patch domain.EventPatch) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.ownedEvent(ctx, eventID, ownerID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: event name cannot be empty", domain.ErrInvalidInput)
		}
		patch.Name = &name
	}
	startsAt, endsAt, tz := event.StartsAt, event.EndsAt, event.TimeZone
	if patch.StartsAt != nil {
		startsAt = patch.StartsAt
	}
	if patch.EndsAt != nil {
		endsAt = patch.EndsAt
	}
	if patch.TimeZone != nil {
		tz = *patch.TimeZone
	}
	if err := validateSchedule(startsAt, endsAt, tz); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return event, nil
	}
	return s.eventRepo.Update(ctx, eventID, patch)
}

// DeleteEvent removes the event's RSVPs, then its tickets, then the event itself.
// The stages are not transactional: a failure returns a CascadeError naming the stage,
// and earlier stages stay applied.
func (s *eventService) DeleteEvent(ctx context.Context, eventID, requestingUserID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, requestingUserID); err != nil {
		return err
	}
	if err := s.rsvpRepo.DeleteByEventID(ctx, eventID); err != nil {
		return &domain.CascadeError{Stage: "rsvps", Err: err}
	}
	if err := s.ticketRepo.DeleteByEventID(ctx, eventID); err != nil {
		return &domain.CascadeError{Stage: "tickets", Err: err}
	}
	if err := s.eventRepo.Delete(ctx, eventID); err != nil {
		return &domain.CascadeError{Stage: "event", Err: err}
	}
	return nil
}

// SaveTickets replaces the event's ticket tiers. Tiers with a blank name are skipped.
func (s *eventService) SaveTickets(ctx context.Context, eventID, ownerID string, tickets []*domain.Ticket) ([]*domain.Ticket, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	kept, err := normalizeTickets(eventID, tickets, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.ticketRepo.DeleteByEventID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("delete tickets: %w", err)
	}
	if err := s.ticketRepo.CreateBatch(ctx, kept); err != nil {
		return nil, fmt.Errorf("create tickets: %w", err)
	}
	return kept, nil
}

func normalizeTickets(eventID string, tickets []*domain.Ticket, now time.Time) ([]*domain.Ticket, error) {
	kept := make([]*domain.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		if t.Price < 0 {
			return nil, fmt.Errorf("%w: ticket %q price must not be negative", domain.ErrInvalidInput, t.Name)
		}
		if t.QuantityAvailable < 0 {
			return nil, fmt.Errorf("%w: ticket %q quantity must not be negative", domain.ErrInvalidInput, t.Name)
		}
		kept = append(kept, &domain.Ticket{
			EventID:           eventID,
			Name:              strings.TrimSpace(t.Name),
			Price:             t.Price,
			QuantityAvailable: t.QuantityAvailable,
			PurchaseDeadline:  t.PurchaseDeadline,
			CreatedAt:         now,
		})
	}
	if len(kept) > domain.MaxTicketTiers {
		return nil, fmt.Errorf("%w: at most %d ticket tiers are allowed", domain.ErrInvalidInput, domain.MaxTicketTiers)
	}
	return kept, nil
}

func (s *eventService) ListRSVPs(ctx context.Context, eventID, ownerID string) ([]*domain.RSVP, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	return s.rsvpRepo.ListByEventID(ctx, eventID)
}

func (s *eventService) UpdateRSVP(ctx context.Context, eventID, rsvpID, ownerID string, patch domain.RSVPPatch) (*domain.RSVP, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	if patch.Status != nil && !domain.ValidRSVPStatus(*patch.Status) {
		return nil, fmt.Errorf("%w: unknown rsvp status %q", domain.ErrInvalidInput, *patch.Status)
	}
	if patch.AmountPaid != nil && *patch.AmountPaid < 0 {
		return nil, fmt.Errorf("%w: amount paid must not be negative", domain.ErrInvalidInput)
	}
	rsvp, err := s.rsvpRepo.GetByID(ctx, rsvpID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get rsvp: %w", err)
	}
	if rsvp.EventID != eventID {
		return nil, domain.ErrNotFound
	}
	return s.rsvpRepo.Update(ctx, rsvpID, patch)
}

func (s *eventService) GuestIDs(ctx context.Context, eventID, ownerID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	return s.rsvpRepo.ListGuestUserIDs(ctx, eventID)
}

// CheckIn matches a scanned QR payload, which is a guest's user id, against the event's RSVPs.
func (s *eventService) CheckIn(ctx context.Context, eventID, ownerID, payload string) (*domain.CheckInResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.ownedEvent(ctx, eventID, ownerID); err != nil {
		return nil, err
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, fmt.Errorf("%w: qr payload is required", domain.ErrInvalidInput)
	}
	if _, err := uuid.Parse(payload); err != nil {
		return &domain.CheckInResult{Verified: false}, nil
	}
	rsvp, err := s.rsvpRepo.GetByEventAndUser(ctx, eventID, payload)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.CheckInResult{Verified: false}, nil
		}
		return nil, fmt.Errorf("check in: %w", err)
	}
	return &domain.CheckInResult{Verified: true, Guest: rsvp}, nil
}

func (s *eventService) ownedEvent(ctx context.Context, eventID, ownerID string) (*domain.Event, error) {
	return loadOwnedEvent(ctx, s.eventRepo, eventID, ownerID)
}

// loadOwnedEvent returns ErrForbidden unless ownerID owns the event.
func loadOwnedEvent(ctx context.Context, repo domain.EventRepository, eventID, ownerID string) (*domain.Event, error) {
	event, err := repo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return event, nil
}

func validateSchedule(startsAt, endsAt *time.Time, tz string) error {
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("%w: unknown time zone %q", domain.ErrInvalidInput, tz)
		}
	}
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return fmt.Errorf("%w: event must end after it starts", domain.ErrInvalidInput)
	}
	return nil
}
