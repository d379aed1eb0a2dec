package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bouncer/internal/autosave"
	"bouncer/internal/clock"
	"bouncer/internal/domain"
)

type ticketDraftService struct {
	events         domain.EventService
	eventRepo      domain.EventRepository
	clock          clock.Clock
	delay          time.Duration
	logger         *slog.Logger
	contextTimeout time.Duration

	mu     sync.Mutex
	savers map[string]*autosave.Saver[[]*domain.Ticket]
}

// NewTicketDraftService returns a TicketDraftService that saves an event's ticket tiers
// through events once delay has passed without a new draft for that event.
func NewTicketDraftService(events domain.EventService,
	eventRepo domain.EventRepository,
	c clock.Clock,
	delay time.Duration,
	logger *slog.Logger,
	timeout time.Duration,
) domain.TicketDraftService {
	return &ticketDraftService{
		events:         events,
		eventRepo:      eventRepo,
		clock:          c,
		delay:          delay,
		logger:         logger,
		contextTimeout: timeout,
		savers:         make(map[string]*autosave.Saver[[]*domain.Ticket]),
	}
}

func (s *ticketDraftService) Submit(ctx context.Context, eventID, ownerID string, tickets []*domain.Ticket) (*domain.DraftState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := loadOwnedEvent(ctx, s.eventRepo, eventID, ownerID); err != nil {
		return nil, err
	}
	if _, err := normalizeTickets(eventID, tickets, s.clock.Now()); err != nil {
		return nil, err
	}
	return draftState(s.saver(eventID, ownerID).Edit(tickets)), nil
}

func (s *ticketDraftService) State(ctx context.Context, eventID, ownerID string) (*domain.DraftState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := loadOwnedEvent(ctx, s.eventRepo, eventID, ownerID); err != nil {
		return nil, err
	}
	s.mu.Lock()
	saver, ok := s.savers[eventID]
	s.mu.Unlock()
	if !ok {
		return &domain.DraftState{State: string(autosave.Clean)}, nil
	}
	return draftState(saver.Status()), nil
}

func (s *ticketDraftService) saver(eventID, ownerID string) *autosave.Saver[[]*domain.Ticket] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if saver, ok := s.savers[eventID]; ok {
		return saver
	}
	save := func(ctx context.Context, tickets []*domain.Ticket) error {
		_, err := s.events.SaveTickets(ctx, eventID, ownerID, tickets)
		return err
	}
	saver := autosave.New(s.clock, s.delay, s.contextTimeout, save, s.logger.With("event_id", eventID))
	s.savers[eventID] = saver
	return saver
}

func draftState(st autosave.Status) *domain.DraftState {
	out := &domain.DraftState{State: string(st.State), SavedAt: st.SavedAt}
	if st.LastError != nil {
		out.LastError = st.LastError.Error()
	}
	return out
}
