package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	"bouncer/internal/delivery/http/helpers"
	"bouncer/internal/domain"
)

// UpdateRSVPRequest is the request body for PATCH /api/events/{eventID}/rsvps/{rsvpID}.
type UpdateRSVPRequest struct {
	Approved   *bool    `json:"approved"`
	Status     *string  `json:"status"`
	AmountPaid *float64 `json:"amount_paid"`
}

// Validate implements Validator.
func (u UpdateRSVPRequest) Validate() []string {
	var errs []string
	if u.Approved == nil && u.Status == nil && u.AmountPaid == nil {
		errs = append(errs, "nothing to update")
	}
	if u.Status != nil && !domain.ValidRSVPStatus(*u.Status) {
		errs = append(errs, "status must be attending, maybe or not_attending")
	}
	if u.AmountPaid != nil && *u.AmountPaid < 0 {
		errs = append(errs, "amount_paid must not be negative")
	}
	return errs
}

// CheckInRequest is the request body for POST /api/events/{eventID}/checkin.
type CheckInRequest struct {
	Payload string `json:"payload"`
}

// Validate implements Validator.
func (c CheckInRequest) Validate() []string {
	if strings.TrimSpace(c.Payload) == "" {
		return []string{"payload is required"}
	}
	return nil
}

// RSVPsResponse is the response body for RSVP listings.
type RSVPsResponse struct {
	RSVPs []*domain.RSVP `json:"rsvps"`
}

// GuestsResponse is the response body for GET /api/events/{eventID}/guests.
type GuestsResponse struct {
	GuestIDs []string `json:"guest_ids"`
}

// GuestController serves the organizer's guest list, payment proofs and check-in.
type GuestController struct {
	Logger  *slog.Logger
	Service domain.EventService
	Proofs  domain.PaymentProofService
}

func NewGuestController(logger *slog.Logger, svc domain.EventService, proofs domain.PaymentProofService) *GuestController {
	return &GuestController{
		Logger:  logger,
		Service: svc,
		Proofs:  proofs,
	}
}

// ListRSVPs godoc
// @Summary List the RSVPs of an event
// @Tags guests
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.RSVPsResponse
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Router /api/events/{eventID}/rsvps [get]
func (c *GuestController) ListRSVPs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	rsvps, err := c.Service.ListRSVPs(r.Context(), eventID, userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if rsvps == nil {
		rsvps = []*domain.RSVP{}
	}
	helpers.WriteJSON(w, http.StatusOK, RSVPsResponse{RSVPs: rsvps})
}

// UpdateRSVP godoc
// @Summary Approve or edit an RSVP
// @Description Owner only. Last writer wins.
// @Tags guests
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Param rsvpID path string true "RSVP ID (UUID)"
// @Param body body UpdateRSVPRequest true "Fields to change"
// @Success 200 {object} domain.RSVP
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Router /api/events/{eventID}/rsvps/{rsvpID} [patch]
func (c *GuestController) UpdateRSVP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	rsvpID, ok := pathParam(w, r, "rsvpID")
	if !ok {
		return
	}
	var req UpdateRSVPRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	rsvp, err := c.Service.UpdateRSVP(r.Context(), eventID, rsvpID, userID, domain.RSVPPatch{
		Approved:   req.Approved,
		Status:     req.Status,
		AmountPaid: req.AmountPaid,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, rsvp)
}

// ViewPaymentProof godoc
// @Summary View an RSVP's payment proof
// @Description Owner only. Redirects to a short-lived URL for the stored image.
// @Tags guests
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Param rsvpID path string true "RSVP ID (UUID)"
// @Success 302
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Router /api/events/{eventID}/rsvps/{rsvpID}/payment-proof [get]
func (c *GuestController) ViewPaymentProof(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	rsvpID, ok := pathParam(w, r, "rsvpID")
	if !ok {
		return
	}
	url, err := c.Proofs.ViewURL(r.Context(), eventID, rsvpID, userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// ListGuests godoc
// @Summary Guest user IDs of an event
// @Description Owner only. The set a check-in scanner matches QR payloads against.
// @Tags guests
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} controllers.GuestsResponse
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Router /api/events/{eventID}/guests [get]
func (c *GuestController) ListGuests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	ids, err := c.Service.GuestIDs(r.Context(), eventID, userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	helpers.WriteJSON(w, http.StatusOK, GuestsResponse{GuestIDs: ids})
}

// CheckIn godoc
// @Summary Verify a scanned QR payload
// @Description Owner only. Read-only membership check of the payload against the event's guests.
// @Tags guests
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Param body body CheckInRequest true "Scanned payload"
// @Success 200 {object} domain.CheckInResult
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Router /api/events/{eventID}/checkin [post]
func (c *GuestController) CheckIn(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	var req CheckInRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	res, err := c.Service.CheckIn(r.Context(), eventID, userID, req.Payload)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}
