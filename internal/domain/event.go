package domain

import (
	"context"
	"strings"
	"time"
)

// Event is an organizer-owned gathering that guests RSVP to.
// swagger:model Event
type Event struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Theme          string     `json:"theme"`
	StartsAt       *time.Time `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	TimeZone       string     `json:"time_zone"`
	Location       string     `json:"location"`
	AdditionalInfo string     `json:"additional_info"`
	OwnerID        string     `json:"owner_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewEvent returns a new Event with the given fields. ID is typically set by the repository on create.
func NewEvent(name, ownerID string, createdAt time.Time) *Event {
	return &Event{
		Name:      name,
		OwnerID:   ownerID,
		TimeZone:  "UTC",
		CreatedAt: createdAt,
	}
}

// EventPatch carries the optional fields of a partial event update. Nil fields are unchanged.
type EventPatch struct {
	Name           *string
	Theme          *string
	StartsAt       *time.Time
	EndsAt         *time.Time
	TimeZone       *string
	Location       *string
	AdditionalInfo *string
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Name == nil && p.Theme == nil && p.StartsAt == nil && p.EndsAt == nil &&
		p.TimeZone == nil && p.Location == nil && p.AdditionalInfo == nil
}

// PaymentInfo holds the off-platform payment handles parsed from an event's additional info.
type PaymentInfo struct {
	Venmo string `json:"venmo,omitempty"`
	Zelle string `json:"zelle,omitempty"`
}

const paymentInfoHeader = "payment information:"

// ParsePaymentInfo splits additional info into the free text and an optional trailing
// "Payment Information:" block. Lines in the block are "Venmo: <handle>" or "Zelle: <handle>".
// When no block is present, info is returned unchanged and the PaymentInfo is nil.
func ParsePaymentInfo(info string) (string, *PaymentInfo) {
	lines := strings.Split(info, "\n")
	start := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.ToLower(strings.TrimSpace(lines[i])) == paymentInfoHeader {
			start = i
			break
		}
	}
	if start < 0 {
		return info, nil
	}
	pi := &PaymentInfo{}
	for _, line := range lines[start+1:] {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "venmo":
			pi.Venmo = strings.TrimSpace(value)
		case "zelle":
			pi.Zelle = strings.TrimSpace(value)
		}
	}
	body := strings.TrimRight(strings.Join(lines[:start], "\n"), " \n\t")
	if pi.Venmo == "" && pi.Zelle == "" {
		return body, nil
	}
	return body, pi
}

// EventRepository defines the interface for event storage
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	ListByOwnerID(ctx context.Context, ownerID string) ([]*Event, error)
	Update(ctx context.Context, eventID string, patch EventPatch) (*Event, error)
	Delete(ctx context.Context, id string) error
}

// EventDetails bundles an event with its ticket tiers for display.
type EventDetails struct {
	Event       *Event        `json:"event"`
	Description string        `json:"description"`
	PaymentInfo *PaymentInfo  `json:"payment_info"`
	Tickets     []*TicketView `json:"tickets"`
}

// EventService defines organizer-facing event and ticket management.
type EventService interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetEvent(ctx context.Context, eventID string) (*EventDetails, error)
	ListEventsByOwner(ctx context.Context, ownerID string) ([]*Event, error)
	UpdateEvent(ctx context.Context, eventID, ownerID string, patch EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, eventID, requestingUserID string) error
	SaveTickets(ctx context.Context, eventID, ownerID string, tickets []*Ticket) ([]*Ticket, error)
	ListRSVPs(ctx context.Context, eventID, ownerID string) ([]*RSVP, error)
	UpdateRSVP(ctx context.Context, eventID, rsvpID, ownerID string, patch RSVPPatch) (*RSVP, error)
	GuestIDs(ctx context.Context, eventID, ownerID string) ([]string, error)
	CheckIn(ctx context.Context, eventID, ownerID, payload string) (*CheckInResult, error)
}

// CheckInResult is the outcome of matching a scanned QR payload against an event's guest list.
type CheckInResult struct {
	Verified bool  `json:"verified"`
	Guest    *RSVP `json:"guest,omitempty"`
}
