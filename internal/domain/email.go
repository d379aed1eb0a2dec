package domain

import "context"

// Mailer defines the contract for sending system emails (infrastructure port).
type Mailer interface {
	Send(to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// RSVPConfirmationEmailData holds data for the RSVP confirmation email.
type RSVPConfirmationEmailData struct {
	Email      string
	GuestName  string
	EventName  string
	TicketName string
	EventURL   string
}

// EventUpdateEmailData holds data for an organizer's bulk update email.
// Message is Markdown.
type EventUpdateEmailData struct {
	EventName     string
	OrganizerName string
	Message       string
}

// EmailService defines the contract for sending domain-level system emails.
type EmailService interface {
	SendRSVPConfirmation(ctx context.Context, data *RSVPConfirmationEmailData) error
}

// MailSession sends mail on behalf of one organizer's grant.
// Grant returns the grant as it stands after sends, which differs from the input
// when the access token was refreshed.
type MailSession interface {
	Send(ctx context.Context, to, subject, html string) error
	Grant() (*MailGrant, error)
}

// MailSessionFactory opens a MailSession for a grant.
type MailSessionFactory interface {
	Open(ctx context.Context, grant *MailGrant) (MailSession, error)
}

// Audience selects which RSVPs of an event receive a bulk email.
type Audience string

const (
	AudienceAll        Audience = "all"
	AudienceVerified   Audience = "verified"
	AudienceUnverified Audience = "unverified"
	AudienceCustom     Audience = "custom"
)

// BulkEmailRequest is the input of the bulk messaging workflow.
type BulkEmailRequest struct {
	Recipients      []string
	Message         string
	EventName       string
	OrganizerUserID string
}

// RecipientResult is the per-recipient outcome of a bulk send.
type RecipientResult struct {
	Email   string `json:"email"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// BulkEmailResult aggregates a bulk send.
type BulkEmailResult struct {
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Details    []RecipientResult `json:"details"`
}

// MessagingService defines the bulk messaging workflow.
type MessagingService interface {
	SendBulkEmail(ctx context.Context, req BulkEmailRequest) (*BulkEmailResult, error)
	ResolveRecipients(ctx context.Context, eventID, ownerID string, audience Audience, custom []string) ([]string, error)
}
