package domain

import (
	"context"
	"time"
)

// RSVP statuses.
const (
	RSVPStatusAttending    = "attending"
	RSVPStatusMaybe        = "maybe"
	RSVPStatusNotAttending = "not_attending"
)

// RSVP is a guest's reservation against one ticket tier of one event.
// At most one RSVP exists per (EventID, UserID).
// swagger:model RSVP
type RSVP struct {
	ID              string    `json:"id"`
	EventID         string    `json:"event_id"`
	TicketID        *string   `json:"ticket_id"`
	UserID          string    `json:"user_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Approved        bool      `json:"approved"`
	PaymentProofRef *string   `json:"payment_proof_ref"`
	Status          string    `json:"status"`
	AmountPaid      *float64  `json:"amount_paid"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValidRSVPStatus reports whether s is one of the known RSVP statuses.
func ValidRSVPStatus(s string) bool {
	switch s {
	case RSVPStatusAttending, RSVPStatusMaybe, RSVPStatusNotAttending:
		return true
	}
	return false
}

// RSVPPatch carries organizer-editable RSVP fields. Nil fields are unchanged.
type RSVPPatch struct {
	Approved   *bool
	Status     *string
	AmountPaid *float64
}

// RSVPRequest is the input of the ticket reservation workflow.
type RSVPRequest struct {
	EventID         string
	UserID          string
	Name            string
	Email           string
	TicketID        string
	PaymentProofRef string
}

// Reservation is the result of a successful reservation.
type Reservation struct {
	RSVP             *RSVP `json:"rsvp"`
	RemainingTickets int   `json:"remainingTickets"`
}

// RSVPRepository defines the interface for RSVP storage.
// Create returns an error wrapping ErrDuplicateRSVP when the (event, user) uniqueness constraint fires.
type RSVPRepository interface {
	Create(ctx context.Context, rsvp *RSVP) error
	GetByID(ctx context.Context, id string) (*RSVP, error)
	GetByEventAndUser(ctx context.Context, eventID, userID string) (*RSVP, error)
	ListByEventID(ctx context.Context, eventID string) ([]*RSVP, error)
	ListByUserID(ctx context.Context, userID string) ([]*RSVP, error)
	ListGuestUserIDs(ctx context.Context, eventID string) ([]string, error)
	// FilterGuestEmails returns the subset of emails that belong to RSVPs of the event.
	FilterGuestEmails(ctx context.Context, eventID string, emails []string) ([]string, error)
	Update(ctx context.Context, id string, patch RSVPPatch) (*RSVP, error)
	DeleteByEventID(ctx context.Context, eventID string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// TxReserver is implemented by stores that can decrement inventory and insert the RSVP
// in one database transaction, which removes the compensation step.
type TxReserver interface {
	ReserveInTx(ctx context.Context, rsvp *RSVP) (remaining int, err error)
}

// ReservationService runs the ticket reservation workflow.
type ReservationService interface {
	SubmitRSVP(ctx context.Context, req RSVPRequest) (*Reservation, error)
	ListMyRSVPs(ctx context.Context, userID string) ([]*RSVP, error)
}
