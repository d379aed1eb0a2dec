package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by services and mapped to HTTP status codes by the controllers.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicateRSVP     = errors.New("rsvp already exists for this user and event")
	ErrTicketUnavailable = errors.New("ticket is no longer available")
	ErrRSVPCreation      = errors.New("failed to create rsvp")
	ErrUpstream          = errors.New("upstream service error")
	ErrMailNotConnected  = errors.New("gmail account not connected")
)

// ErrMailGrantRevoked is returned when the organizer's Gmail grant has expired or was revoked.
// It wraps ErrUpstream so callers that only care about provider failures still match it.
var ErrMailGrantRevoked = fmt.Errorf("%w: gmail authorization expired or revoked", ErrUpstream)

// CascadeError reports the stage at which a multi-step delete stopped.
// Rows removed by earlier stages are not restored.
type CascadeError struct {
	Stage string
	Err   error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("delete %s: %v", e.Stage, e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }
