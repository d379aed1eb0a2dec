package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"

	"bouncer/internal/domain"
)

const (
	defaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	userInfoEmailScope = "https://www.googleapis.com/auth/userinfo.email"
)

// Config holds the OAuth client registration.
// Endpoint and UserInfoURL default to Google's production values.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

func (c Config) oauth2Config(redirectURL string, scopes ...string) *oauth2.Config {
	endpoint := c.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = googleoauth.Endpoint
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

func (c Config) userInfoURL() string {
	if c.UserInfoURL != "" {
		return c.UserInfoURL
	}
	return defaultUserInfoURL
}

// withClient makes oauth2 use client for token calls. A nil client keeps http.DefaultClient.
func withClient(ctx context.Context, client *http.Client) context.Context {
	if client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, client)
}

type userInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

func fetchUserInfo(ctx context.Context, client *http.Client, url string) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned status: %d", resp.StatusCode)
	}
	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// IdentityProvider signs users in with Google (openid, email, profile).
type IdentityProvider struct {
	oauth    *oauth2.Config
	userInfo string
	client   *http.Client
}

// NewIdentityProvider returns a domain.IdentityProvider backed by Google OAuth.
// client may be nil.
func NewIdentityProvider(cfg Config, client *http.Client) *IdentityProvider {
	return &IdentityProvider{
		oauth:    cfg.oauth2Config(cfg.RedirectURL, "openid", "email", "profile"),
		userInfo: cfg.userInfoURL(),
		client:   client,
	}
}

func (p *IdentityProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *IdentityProvider) Exchange(ctx context.Context, code string) (*domain.Identity, error) {
	ctx = withClient(ctx, p.client)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %w", domain.ErrUpstream, err)
	}
	info, err := fetchUserInfo(ctx, p.oauth.Client(ctx, token), p.userInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: userinfo missing subject or email", domain.ErrUpstream)
	}
	return &domain.Identity{Subject: info.Sub, Email: info.Email, Name: info.Name}, nil
}

// GrantProvider runs the separate consent flow that authorizes gmail.send.
type GrantProvider struct {
	oauth    *oauth2.Config
	userInfo string
	client   *http.Client
}

// NewGrantProvider returns a domain.MailGrantProvider. redirectURL is the Gmail callback.
func NewGrantProvider(cfg Config, redirectURL string, client *http.Client) *GrantProvider {
	return &GrantProvider{
		oauth:    cfg.oauth2Config(redirectURL, gmail.GmailSendScope, userInfoEmailScope),
		userInfo: cfg.userInfoURL(),
		client:   client,
	}
}

// AuthCodeURL forces the consent screen so Google issues a refresh token every time.
func (p *GrantProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *GrantProvider) Exchange(ctx context.Context, code string) (*domain.MailGrant, error) {
	ctx = withClient(ctx, p.client)
	token, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange code: %w", domain.ErrUpstream, err)
	}
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("%w: google did not return a refresh token", domain.ErrUpstream)
	}
	info, err := fetchUserInfo(ctx, p.oauth.Client(ctx, token), p.userInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstream, err)
	}
	if info.Email == "" {
		return nil, fmt.Errorf("%w: granted mailbox address unknown", domain.ErrUpstream)
	}
	return &domain.MailGrant{
		Address:      info.Email,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}, nil
}
