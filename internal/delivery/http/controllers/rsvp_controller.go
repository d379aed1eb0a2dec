package controllers

import (
	"log/slog"
	"net/http"

	"bouncer/internal/delivery/http/helpers"
	"bouncer/internal/domain"
)

// maxUploadBytes bounds a multipart payment-proof request; the image limit itself is enforced by the service.
const maxUploadBytes = 6 << 20

// SubmitRSVPRequest is the request body for POST /api/rsvp.
type SubmitRSVPRequest struct {
	EventID         string `json:"eventId"`
	UserID          string `json:"userId"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	TicketID        string `json:"ticketId"`
	PaymentProofURL string `json:"paymentProofUrl,omitempty"`
}

// Validate checks the IDs; the remaining fields are normalised by the service.
func (r SubmitRSVPRequest) Validate() []string {
	var errs []string
	for _, f := range []struct{ name, value string }{
		{"eventId", r.EventID},
		{"ticketId", r.TicketID},
	} {
		switch {
		case f.value == "":
			errs = append(errs, f.name+" is required")
		case !uuidRegex.MatchString(f.value):
			errs = append(errs, f.name+" must be a UUID")
		}
	}
	return errs
}

// SubmitRSVPResponse is the 201 body of POST /api/rsvp.
type SubmitRSVPResponse struct {
	Success          bool         `json:"success"`
	RSVP             *domain.RSVP `json:"rsvp"`
	RemainingTickets int          `json:"remainingTickets"`
}

// PaymentProofResponse is the 201 body of a payment-proof upload. The value goes into
// paymentProofUrl of the RSVP request.
type PaymentProofResponse struct {
	PaymentProofURL string `json:"paymentProofUrl"`
}

// RSVPController serves the guest-facing reservation endpoints.
type RSVPController struct {
	Logger  *slog.Logger
	Service domain.ReservationService
	Proofs  domain.PaymentProofService
}

func NewRSVPController(logger *slog.Logger, svc domain.ReservationService, proofs domain.PaymentProofService) *RSVPController {
	return &RSVPController{
		Logger:  logger,
		Service: svc,
		Proofs:  proofs,
	}
}

// SubmitRSVP godoc
// @Summary Reserve a ticket
// @Description Creates the caller's RSVP and decrements the ticket's remaining quantity. Paid tickets need a paymentProofUrl from the upload endpoint. userId defaults to the session user and must match it.
// @Tags rsvp
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param body body SubmitRSVPRequest true "RSVP"
// @Success 201 {object} controllers.SubmitRSVPResponse
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 409 {object} helpers.ErrorResponse "code: duplicate_rsvp or ticket_unavailable"
// @Failure 429 {object} helpers.ErrorResponse "code: too_many_requests"
// @Failure 500 {object} helpers.ErrorResponse "code: rsvp_creation_failed"
// @Router /api/rsvp [post]
func (c *RSVPController) SubmitRSVP(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req SubmitRSVPRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.UserID == "" {
		req.UserID = userID
	}
	if req.UserID != userID {
		helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "cannot RSVP on behalf of another user")
		return
	}
	res, err := c.Service.SubmitRSVP(r.Context(), domain.RSVPRequest{
		EventID:         req.EventID,
		UserID:          req.UserID,
		Name:            req.Name,
		Email:           req.Email,
		TicketID:        req.TicketID,
		PaymentProofRef: req.PaymentProofURL,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, SubmitRSVPResponse{
		Success:          true,
		RSVP:             res.RSVP,
		RemainingTickets: res.RemainingTickets,
	})
}

// ListMyRSVPs godoc
// @Summary List my RSVPs
// @Tags rsvp
// @Produce json
// @Security SessionCookie
// @Success 200 {object} controllers.RSVPsResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Router /api/rsvps/me [get]
func (c *RSVPController) ListMyRSVPs(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	rsvps, err := c.Service.ListMyRSVPs(r.Context(), userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if rsvps == nil {
		rsvps = []*domain.RSVP{}
	}
	helpers.WriteJSON(w, http.StatusOK, RSVPsResponse{RSVPs: rsvps})
}

// UploadPaymentProof godoc
// @Summary Upload a payment proof image
// @Description Multipart form with one "file" part; image/* up to 5 MiB.
// @Tags rsvp
// @Accept multipart/form-data
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Param file formData file true "Payment screenshot"
// @Success 201 {object} controllers.PaymentProofResponse
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Failure 502 {object} helpers.ErrorResponse "code: upstream_error"
// @Router /api/events/{eventID}/payment-proofs [post]
func (c *RSVPController) UploadPaymentProof(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		helpers.WriteJSONErrorDetails(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "invalid upload", err.Error())
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	ref, err := c.Proofs.Upload(r.Context(), domain.PaymentProofUpload{
		UserID:      userID,
		EventID:     eventID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, PaymentProofResponse{PaymentProofURL: ref})
}
