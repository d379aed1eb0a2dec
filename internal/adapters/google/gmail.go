package google

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"bouncer/internal/domain"
)

// GmailSessions opens Gmail API sessions for stored grants.
type GmailSessions struct {
	oauth  *oauth2.Config
	client *http.Client
}

// NewGmailSessions returns a domain.MailSessionFactory. client may be nil.
func NewGmailSessions(cfg Config, client *http.Client) *GmailSessions {
	return &GmailSessions{
		oauth:  cfg.oauth2Config("", gmail.GmailSendScope),
		client: client,
	}
}

func (f *GmailSessions) Open(ctx context.Context, grant *domain.MailGrant) (domain.MailSession, error) {
	if grant == nil || grant.RefreshToken == "" {
		return nil, domain.ErrMailNotConnected
	}
	ctx = withClient(ctx, f.client)
	source := oauth2.ReuseTokenSource(&oauth2.Token{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		Expiry:       grant.Expiry,
		TokenType:    "Bearer",
	}, f.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: grant.RefreshToken}))

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, source)))
	if err != nil {
		return nil, fmt.Errorf("%w: gmail client: %w", domain.ErrUpstream, err)
	}
	return &gmailSession{svc: svc, source: source, from: grant.Address}, nil
}

type gmailSession struct {
	svc    *gmail.Service
	source oauth2.TokenSource
	from   string
}

func (s *gmailSession) Send(ctx context.Context, to, subject, html string) error {
	raw := base64.URLEncoding.EncodeToString(buildMessage(s.from, to, subject, html))
	_, err := s.svc.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return classify(err)
	}
	return nil
}

// Grant returns the current token pair, refreshed if a send needed a new access token.
func (s *gmailSession) Grant() (*domain.MailGrant, error) {
	tok, err := s.source.Token()
	if err != nil {
		return nil, classify(err)
	}
	return &domain.MailGrant{
		Address:      s.from,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, nil
}

// classify maps token refresh failures and 401s to ErrMailGrantRevoked.
// Anything else is a failure of this one message.
func classify(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return fmt.Errorf("%w: %v", domain.ErrMailGrantRevoked, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", domain.ErrMailGrantRevoked, err)
	}
	return fmt.Errorf("gmail send: %w", err)
}

func buildMessage(from, to, subject, html string) []byte {
	var b bytes.Buffer
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.BEncoding.Encode("UTF-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return b.Bytes()
}
