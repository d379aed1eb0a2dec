package controllers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"bouncer/internal/delivery/http/helpers"
	"bouncer/internal/domain"
)

// SendEmailsRequest is the request body for POST /api/send-emails.
type SendEmailsRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
	EventName  string   `json:"eventName"`
	UserID     string   `json:"userId"`
}

// Validate implements Validator.
func (s SendEmailsRequest) Validate() []string {
	var errs []string
	if len(s.Recipients) == 0 {
		errs = append(errs, "recipients are required")
	}
	if strings.TrimSpace(s.Message) == "" {
		errs = append(errs, "message is required")
	}
	if strings.TrimSpace(s.EventName) == "" {
		errs = append(errs, "eventName is required")
	}
	return errs
}

// SendEmailsResponse is the body of POST /api/send-emails.
type SendEmailsResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Results *domain.BulkEmailResult `json:"results"`
}

// RecipientsResponse is the body of GET /api/events/{eventID}/recipients.
type RecipientsResponse struct {
	Recipients []string `json:"recipients"`
}

// EmailController serves organizer bulk messaging.
type EmailController struct {
	Logger  *slog.Logger
	Service domain.MessagingService
}

func NewEmailController(logger *slog.Logger, svc domain.MessagingService) *EmailController {
	return &EmailController{
		Logger:  logger,
		Service: svc,
	}
}

// SendEmails godoc
// @Summary Send a bulk email from the organizer's Gmail
// @Description Sends one message per recipient through the connected Gmail account. Individual failures do not stop the batch. An expired or revoked grant aborts with 401 and reauthorize=true.
// @Tags email
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param body body SendEmailsRequest true "Message and recipients (message is Markdown)"
// @Success 200 {object} controllers.SendEmailsResponse
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request or gmail_not_connected"
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized or reauthorize"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 502 {object} helpers.ErrorResponse "code: upstream_error"
// @Router /api/send-emails [post]
func (c *EmailController) SendEmails(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req SendEmailsRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	if req.UserID != "" && req.UserID != userID {
		helpers.WriteJSONError(w, http.StatusForbidden, helpers.ErrCodeForbidden, "cannot send on behalf of another user")
		return
	}
	res, err := c.Service.SendBulkEmail(r.Context(), domain.BulkEmailRequest{
		Recipients:      req.Recipients,
		Message:         req.Message,
		EventName:       req.EventName,
		OrganizerUserID: userID,
	})
	if err != nil {
		if res != nil {
			c.Logger.WarnContext(r.Context(), "bulk email aborted", "successful", res.Successful, "failed", res.Failed, "err", err)
		}
		if errors.Is(err, domain.ErrMailGrantRevoked) {
			helpers.WriteReauthorize(w, res)
			return
		}
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, SendEmailsResponse{
		Success: true,
		Message: fmt.Sprintf("Emails sent: %d successful, %d failed", res.Successful, res.Failed),
		Results: res,
	})
}

// ListRecipients godoc
// @Summary Resolve an audience to email addresses
// @Description Owner only. audience is all (default), verified, unverified or custom; custom keeps only the comma separated emails that belong to guests.
// @Tags email
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Param audience query string false "all, verified, unverified or custom"
// @Param emails query string false "comma separated addresses for custom"
// @Success 200 {object} controllers.RecipientsResponse
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Router /api/events/{eventID}/recipients [get]
func (c *EmailController) ListRecipients(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	q := r.URL.Query()
	var custom []string
	for _, e := range strings.Split(q.Get("emails"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			custom = append(custom, e)
		}
	}
	recipients, err := c.Service.ResolveRecipients(r.Context(), eventID, userID, domain.Audience(q.Get("audience")), custom)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if recipients == nil {
		recipients = []string{}
	}
	helpers.WriteJSON(w, http.StatusOK, RecipientsResponse{Recipients: recipients})
}
