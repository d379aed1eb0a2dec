package domain

import (
	"context"
	"io"
	"time"
)

// ObjectStore stores payment-proof images.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	URL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// PaymentProofUpload is an uploaded image awaiting storage.
type PaymentProofUpload struct {
	UserID      string
	EventID     string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// PaymentProofService stores and resolves payment-proof images.
type PaymentProofService interface {
	Upload(ctx context.Context, upload PaymentProofUpload) (ref string, err error)
	ViewURL(ctx context.Context, eventID, rsvpID, ownerID string) (string, error)
}

// DraftState is the state of an autosaved ticket draft.
// swagger:model DraftState
type DraftState struct {
	State     string     `json:"state"`
	LastError string     `json:"last_error,omitempty"`
	SavedAt   *time.Time `json:"saved_at,omitempty"`
}

// TicketDraftService coalesces bursts of ticket edits into single saves.
type TicketDraftService interface {
	Submit(ctx context.Context, eventID, ownerID string, tickets []*Ticket) (*DraftState, error)
	State(ctx context.Context, eventID, ownerID string) (*DraftState, error)
}
