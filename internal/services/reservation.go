package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"bouncer/internal/clock"
	"bouncer/internal/domain"
)

type reservationService struct {
	eventRepo      domain.EventRepository
	ticketRepo     domain.TicketRepository
	rsvpRepo       domain.RSVPRepository
	tx             domain.TxReserver
	emailService   domain.EmailService
	publicURL      string
	clock          clock.Clock
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewReservationService returns the reservation workflow. When tx is nil the workflow runs
// as a two-step saga (decrement, then insert with a compensating increment); otherwise both
// steps run in one database transaction through tx.
func NewReservationService(eventRepo domain.EventRepository,
	ticketRepo domain.TicketRepository,
	rsvpRepo domain.RSVPRepository,
	tx domain.TxReserver,
	emailService domain.EmailService,
	publicURL string,
	c clock.Clock,
	logger *slog.Logger,
	timeout time.Duration,
) domain.ReservationService {
	return &reservationService{
		eventRepo:      eventRepo,
		ticketRepo:     ticketRepo,
		rsvpRepo:       rsvpRepo,
		tx:             tx,
		emailService:   emailService,
		publicURL:      strings.TrimRight(publicURL, "/"),
		clock:          c,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func (s *reservationService) SubmitRSVP(ctx context.Context, req domain.RSVPRequest) (*domain.Reservation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	req, err := normalizeRSVPRequest(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.rsvpRepo.GetByEventAndUser(ctx, req.EventID, req.UserID)
	switch {
	case err == nil && existing != nil:
		return nil, domain.ErrDuplicateRSVP
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("check existing rsvp: %w", err)
	}

	ticket, err := s.ticketRepo.GetByID(ctx, req.TicketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTicketUnavailable
		}
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if ticket.EventID != req.EventID || ticket.DeadlinePassed(s.clock.Now()) {
		return nil, domain.ErrTicketUnavailable
	}

	rsvp := &domain.RSVP{
		EventID:   req.EventID,
		TicketID:  &ticket.ID,
		UserID:    req.UserID,
		Name:      req.Name,
		Email:     req.Email,
		Status:    domain.RSVPStatusAttending,
		CreatedAt: s.clock.Now(),
	}
	if ticket.IsPaid() {
		if req.PaymentProofRef == "" {
			return nil, fmt.Errorf("%w: payment proof is required for paid tickets", domain.ErrInvalidInput)
		}
		if !strings.HasPrefix(req.PaymentProofRef, proofKeyPrefix(req.UserID, req.EventID)) {
			return nil, fmt.Errorf("%w: payment proof does not belong to this reservation", domain.ErrInvalidInput)
		}
		ref := req.PaymentProofRef
		rsvp.PaymentProofRef = &ref
	}

	var remaining int
	if s.tx != nil {
		remaining, err = s.tx.ReserveInTx(ctx, rsvp)
	} else {
		remaining, err = s.reserveSaga(ctx, rsvp)
	}
	if err != nil {
		return nil, err
	}

	s.sendConfirmation(ctx, rsvp, ticket)
	return &domain.Reservation{RSVP: rsvp, RemainingTickets: remaining}, nil
}

// reserveSaga decrements inventory and inserts the RSVP, restoring the unit if the insert fails.
func (s *reservationService) reserveSaga(ctx context.Context, rsvp *domain.RSVP) (int, error) {
	ticketID := *rsvp.TicketID
	var remaining int
	saga := &saga{
		logger: s.logger,
		steps: []sagaStep{
			{
				name: "decrement ticket",
				run: func(ctx context.Context) error {
					n, err := s.ticketRepo.Decrement(ctx, ticketID)
					remaining = n
					return err
				},
				compensate: func(ctx context.Context) error {
					return s.ticketRepo.Increment(ctx, ticketID)
				},
			},
			{
				name: "insert rsvp",
				run: func(ctx context.Context) error {
					return s.rsvpRepo.Create(ctx, rsvp)
				},
			},
		},
		compensationTimeout: s.contextTimeout,
	}

	err := saga.run(ctx)
	if err == nil {
		return remaining, nil
	}
	var stepErr *sagaStepError
	if !errors.As(err, &stepErr) {
		return 0, err
	}
	if stepErr.step == 0 {
		if errors.Is(stepErr.err, domain.ErrTicketUnavailable) || errors.Is(stepErr.err, domain.ErrNotFound) {
			return 0, domain.ErrTicketUnavailable
		}
		return 0, fmt.Errorf("decrement ticket: %w", stepErr.err)
	}
	return 0, fmt.Errorf("%w: %w", domain.ErrRSVPCreation, stepErr.err)
}

func (s *reservationService) sendConfirmation(ctx context.Context, rsvp *domain.RSVP, ticket *domain.Ticket) {
	if s.emailService == nil {
		return
	}
	// The reservation is committed; mail failures must not surface to the guest.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.contextTimeout)
	defer cancel()

	eventName := ""
	if event, err := s.eventRepo.GetByID(ctx, rsvp.EventID); err == nil {
		eventName = event.Name
	}
	err := s.emailService.SendRSVPConfirmation(ctx, &domain.RSVPConfirmationEmailData{
		Email:      rsvp.Email,
		GuestName:  rsvp.Name,
		EventName:  eventName,
		TicketName: ticket.Name,
		EventURL:   s.publicURL + "/events/" + rsvp.EventID,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "rsvp confirmation email failed", "rsvp_id", rsvp.ID, "err", err)
	}
}

func (s *reservationService) ListMyRSVPs(ctx context.Context, userID string) ([]*domain.RSVP, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	return s.rsvpRepo.ListByUserID(ctx, userID)
}

func normalizeRSVPRequest(req domain.RSVPRequest) (domain.RSVPRequest, error) {
	req.EventID = strings.TrimSpace(req.EventID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.TicketID = strings.TrimSpace(req.TicketID)
	req.PaymentProofRef = strings.TrimSpace(req.PaymentProofRef)

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"eventId", req.EventID},
		{"userId", req.UserID},
		{"name", req.Name},
		{"email", req.Email},
		{"ticketId", req.TicketID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return req, fmt.Errorf("%w: missing required fields: %s", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return req, fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput)
	}
	return req, nil
}
