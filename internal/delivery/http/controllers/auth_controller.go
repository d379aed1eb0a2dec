package controllers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	h "bouncer/internal/delivery/http/helpers"
	"bouncer/internal/delivery/http/middleware"
	"bouncer/internal/domain"
)

const (
	oauthStateCookie = "bouncer_oauth_state"
	gmailStateCookie = "bouncer_gmail_state"
	stateCookieTTL   = 10 * time.Minute
)

// VerifyRequest is the optional body of POST /api/auth/verify. Without it the request's own
// session token is checked.
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse is the body of a successful POST /api/auth/verify.
type VerifyResponse struct {
	Valid   bool            `json:"valid"`
	Session *domain.Session `json:"session"`
}

// RefreshRequest is the optional body of POST /api/auth/refresh. Without it the refresh cookie is used.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshResponse is the body of a successful POST /api/auth/refresh.
type RefreshResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UserResponse is the body of GET /api/auth/user.
type UserResponse struct {
	User *domain.Session `json:"user"`
}

// AuthCookieConfig controls the session cookies set by AuthController.
type AuthCookieConfig struct {
	Secure     bool
	SessionTTL time.Duration
	RefreshTTL time.Duration
}

type AuthController struct {
	Logger  *slog.Logger
	Service domain.AuthService
	Cookies AuthCookieConfig
}

func NewAuthController(logger *slog.Logger, svc domain.AuthService, cookies AuthCookieConfig) *AuthController {
	return &AuthController{
		Logger:  logger,
		Service: svc,
		Cookies: cookies,
	}
}

func (c *AuthController) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *AuthController) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// checkState compares the state query parameter with the named cookie and clears the cookie.
func (c *AuthController) checkState(w http.ResponseWriter, r *http.Request, cookie string) bool {
	got := r.URL.Query().Get("state")
	want, err := r.Cookie(cookie)
	c.clearCookie(w, cookie)
	if err != nil || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want.Value)) != 1 {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "invalid oauth state")
		return false
	}
	return true
}

// SignInWithGoogle godoc
// @Summary Start Google sign-in
// @Description Redirects to the Google consent screen. A state cookie guards the callback.
// @Tags auth
// @Success 302
// @Router /api/auth/direct-google [get]
func (c *AuthController) SignInWithGoogle(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	c.setCookie(w, oauthStateCookie, state, stateCookieTTL)
	http.Redirect(w, r, c.Service.LoginURL(state), http.StatusFound)
}

// GoogleCallback godoc
// @Summary Complete Google sign-in
// @Description Exchanges the code, creates the profile on first sign-in, sets the session cookies and redirects to /events.
// @Tags auth
// @Param code query string true "Authorization code"
// @Param state query string true "OAuth state"
// @Success 302
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 502 {object} helpers.ErrorResponse "code: upstream_error"
// @Router /auth/callback [get]
func (c *AuthController) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if !c.checkState(w, r, oauthStateCookie) {
		return
	}
	if reason := r.URL.Query().Get("error"); reason != "" {
		http.Redirect(w, r, middleware.LoginPath+"?error="+url.QueryEscape(reason), http.StatusFound)
		return
	}
	res, err := c.Service.CompleteLogin(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	c.setCookie(w, middleware.SessionCookie, res.AccessToken, c.Cookies.SessionTTL)
	c.setCookie(w, middleware.RefreshCookie, res.RefreshToken, c.Cookies.RefreshTTL)
	c.Logger.InfoContext(r.Context(), "user signed in", "user_id", res.Profile.ID)
	http.Redirect(w, r, "/events", http.StatusFound)
}

// CurrentUser godoc
// @Summary Current session
// @Tags auth
// @Produce json
// @Security SessionCookie
// @Success 200 {object} controllers.UserResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Router /api/auth/user [get]
func (c *AuthController) CurrentUser(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	h.WriteJSON(w, http.StatusOK, UserResponse{User: session})
}

// Verify godoc
// @Summary Validate a session token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body VerifyRequest false "Token to check; defaults to the request's session"
// @Success 200 {object} controllers.VerifyResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Router /api/auth/verify [post]
func (c *AuthController) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if r.ContentLength > 0 && !h.DecodeAndValidate(w, r, &req) {
		return
	}
	token := req.Token
	if token == "" {
		token = middleware.TokenFromRequest(r)
	}
	if token == "" {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing session token")
		return
	}
	session, err := c.Service.Verify(token)
	if err != nil {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
		return
	}
	h.WriteJSON(w, http.StatusOK, VerifyResponse{Valid: true, Session: session})
}

// Refresh godoc
// @Summary Exchange a refresh token for a new access token
// @Description Reads the refresh cookie unless a refresh_token is posted. Sets a fresh session cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body RefreshRequest false "Refresh token"
// @Success 200 {object} controllers.RefreshResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Router /api/auth/refresh [post]
func (c *AuthController) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if r.ContentLength > 0 && !h.DecodeAndValidate(w, r, &req) {
		return
	}
	token := req.RefreshToken
	if token == "" {
		if ck, err := r.Cookie(middleware.RefreshCookie); err == nil {
			token = ck.Value
		}
	}
	if token == "" {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing refresh token")
		return
	}
	access, session, err := c.Service.Refresh(r.Context(), token)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	c.setCookie(w, middleware.SessionCookie, access, c.Cookies.SessionTTL)
	h.WriteJSON(w, http.StatusOK, RefreshResponse{AccessToken: access, TokenType: "Bearer", ExpiresAt: session.ExpiresAt})
}

// Logout godoc
// @Summary Sign out
// @Description Clears the session and refresh cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} helpers.SuccessResponse
// @Router /api/auth/logout [post]
func (c *AuthController) Logout(w http.ResponseWriter, r *http.Request) {
	c.clearCookie(w, middleware.SessionCookie)
	c.clearCookie(w, middleware.RefreshCookie)
	h.WriteJSON(w, http.StatusOK, h.SuccessResponse{Success: true, Message: "Signed out"})
}

// ConnectGmail godoc
// @Summary Start the Gmail send grant
// @Description Redirects to Google asking for gmail.send with offline access.
// @Tags auth
// @Security SessionCookie
// @Success 302
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Router /api/auth/gmail [get]
func (c *AuthController) ConnectGmail(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserID(w, r); !ok {
		return
	}
	state := uuid.NewString()
	c.setCookie(w, gmailStateCookie, state, stateCookieTTL)
	http.Redirect(w, r, c.Service.GmailURL(state), http.StatusFound)
}

// GmailCallback godoc
// @Summary Complete the Gmail send grant
// @Description Stores the sealed tokens and mailbox address on the profile, then redirects to /events?gmail=connected.
// @Tags auth
// @Security SessionCookie
// @Param code query string true "Authorization code"
// @Param state query string true "OAuth state"
// @Success 302
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 502 {object} helpers.ErrorResponse "code: upstream_error"
// @Router /api/auth/gmail/callback [get]
func (c *AuthController) GmailCallback(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if !c.checkState(w, r, gmailStateCookie) {
		return
	}
	if r.URL.Query().Get("error") != "" {
		http.Redirect(w, r, "/events?gmail=denied", http.StatusFound)
		return
	}
	address, err := c.Service.ConnectGmail(r.Context(), userID, r.URL.Query().Get("code"))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	c.Logger.InfoContext(r.Context(), "gmail connected", "user_id", userID, "address", address)
	http.Redirect(w, r, "/events?gmail=connected", http.StatusFound)
}

// DisconnectGmail godoc
// @Summary Remove the Gmail send grant
// @Tags auth
// @Produce json
// @Security SessionCookie
// @Success 200 {object} helpers.SuccessResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Router /api/auth/gmail [delete]
func (c *AuthController) DisconnectGmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := c.Service.DisconnectGmail(r.Context(), userID); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, h.SuccessResponse{Success: true, Message: "Gmail disconnected"})
}
