package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	h "bouncer/internal/delivery/http/helpers"
	"bouncer/internal/delivery/http/middleware"
	"bouncer/internal/domain"
)

// UpdateProfileRequest is the request body for PATCH /api/profile.
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
}

// Validate implements Validator.
func (u UpdateProfileRequest) Validate() []string {
	if strings.TrimSpace(u.DisplayName) == "" {
		return []string{"display_name is required"}
	}
	return nil
}

// ProfileResponse is the body of GET /api/profile.
type ProfileResponse struct {
	*domain.Profile
	GmailConnected bool `json:"gmail_connected"`
}

// QRCodeResponse is the body of GET /api/profile/qr. The client renders qr_code as a QR image.
type QRCodeResponse struct {
	QRCode string `json:"qr_code"`
}

type ProfileController struct {
	Logger  *slog.Logger
	Service domain.ProfileService
	Secure  bool
}

func NewProfileController(logger *slog.Logger, svc domain.ProfileService, secureCookies bool) *ProfileController {
	return &ProfileController{
		Logger:  logger,
		Service: svc,
		Secure:  secureCookies,
	}
}

// GetProfile godoc
// @Summary My profile
// @Tags profile
// @Produce json
// @Security SessionCookie
// @Success 200 {object} controllers.ProfileResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Router /api/profile [get]
func (c *ProfileController) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	p, err := c.Service.GetProfile(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ProfileResponse{Profile: p, GmailConnected: p.GmailConnected()})
}

// UpdateProfile godoc
// @Summary Change my display name
// @Tags profile
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param body body UpdateProfileRequest true "New display name"
// @Success 200 {object} controllers.ProfileResponse
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Router /api/profile [patch]
func (c *ProfileController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	p, err := c.Service.UpdateDisplayName(r.Context(), userID, req.DisplayName)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ProfileResponse{Profile: p, GmailConnected: p.GmailConnected()})
}

// GetQRCode godoc
// @Summary My check-in QR payload
// @Description Assigned on first request; equal to the user ID.
// @Tags profile
// @Produce json
// @Security SessionCookie
// @Success 200 {object} controllers.QRCodeResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Router /api/profile/qr [get]
func (c *ProfileController) GetQRCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	code, err := c.Service.EnsureQRCode(r.Context(), userID)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, QRCodeResponse{QRCode: code})
}

// DeleteAccount godoc
// @Summary Delete my account
// @Description Deletes my RSVPs, every event I own with its tickets and RSVPs, then the profile, and signs out.
// @Tags profile
// @Produce json
// @Security SessionCookie
// @Success 200 {object} helpers.SuccessResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Failure 500 {object} helpers.ErrorResponse "code: internal_error"
// @Router /api/profile [delete]
func (c *ProfileController) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := c.Service.DeleteAccount(r.Context(), userID); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	for _, name := range []string{middleware.SessionCookie, middleware.RefreshCookie} {
		http.SetCookie(w, &http.Cookie{Name: name, Path: "/", MaxAge: -1, HttpOnly: true, Secure: c.Secure, SameSite: http.SameSiteLaxMode})
	}
	h.WriteJSON(w, http.StatusOK, h.SuccessResponse{Success: true, Message: "Account deleted"})
}
