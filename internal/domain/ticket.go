package domain

import (
	"context"
	"time"
)

// MaxTicketTiers is the number of ticket tiers an event may carry.
const MaxTicketTiers = 5

// Ticket is a named, priced inventory line belonging to one event.
// QuantityAvailable is the authoritative remaining count; reservations decrement it.
// swagger:model Ticket
type Ticket struct {
	ID                string     `json:"id"`
	EventID           string     `json:"event_id"`
	Name              string     `json:"name"`
	Price             float64    `json:"price"`
	QuantityAvailable int        `json:"quantity_available"`
	PurchaseDeadline  *time.Time `json:"purchase_deadline"`
	CreatedAt         time.Time  `json:"created_at"`
}

// IsPaid reports whether guests must supply payment proof for this ticket.
func (t *Ticket) IsPaid() bool { return t.Price > 0 }

// DeadlinePassed reports whether the purchase deadline is set and before now.
func (t *Ticket) DeadlinePassed(now time.Time) bool {
	return t.PurchaseDeadline != nil && now.After(*t.PurchaseDeadline)
}

// TicketView is the guest-facing projection of a ticket. Remaining is derived from the
// decrement column rather than from counting RSVPs.
type TicketView struct {
	*Ticket
	Remaining      int  `json:"remaining"`
	SoldOut        bool `json:"sold_out"`
	DeadlinePassed bool `json:"deadline_passed"`
}

// NewTicketView builds the display projection of t at time now.
func NewTicketView(t *Ticket, now time.Time) *TicketView {
	return &TicketView{
		Ticket:         t,
		Remaining:      t.QuantityAvailable,
		SoldOut:        t.QuantityAvailable <= 0,
		DeadlinePassed: t.DeadlinePassed(now),
	}
}

// TicketRepository defines the interface for ticket storage.
// Decrement is the only inventory mutation used by reservations and must be a single
// conditional update; it returns ErrTicketUnavailable when no row changed.
type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*Ticket, error)
	ListByEventID(ctx context.Context, eventID string) ([]*Ticket, error)
	DeleteByEventID(ctx context.Context, eventID string) error
	CreateBatch(ctx context.Context, tickets []*Ticket) error
	Decrement(ctx context.Context, ticketID string) (remaining int, err error)
	Increment(ctx context.Context, ticketID string) error
}
