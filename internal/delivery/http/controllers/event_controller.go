package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"bouncer/internal/delivery/http/helpers"
	"bouncer/internal/domain"
)

// CreateEventRequest is the request body for POST /api/events.
type CreateEventRequest struct {
	Name           string     `json:"name"`
	Theme          string     `json:"theme"`
	StartsAt       *time.Time `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	TimeZone       string     `json:"time_zone"`
	Location       string     `json:"location"`
	AdditionalInfo string     `json:"additional_info"`
}

// Validate implements Validator.
func (c CreateEventRequest) Validate() []string {
	var errs []string
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, "name is required")
	}
	return errs
}

// UpdateEventRequest is the request body for PATCH /api/events/{eventID}. Omitted fields are unchanged.
type UpdateEventRequest struct {
	Name           *string    `json:"name"`
	Theme          *string    `json:"theme"`
	StartsAt       *time.Time `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	TimeZone       *string    `json:"time_zone"`
	Location       *string    `json:"location"`
	AdditionalInfo *string    `json:"additional_info"`
}

func (u UpdateEventRequest) patch() domain.EventPatch {
	return domain.EventPatch{
		Name:           u.Name,
		Theme:          u.Theme,
		StartsAt:       u.StartsAt,
		EndsAt:         u.EndsAt,
		TimeZone:       u.TimeZone,
		Location:       u.Location,
		AdditionalInfo: u.AdditionalInfo,
	}
}

// TicketInput is one ticket tier in a save request.
type TicketInput struct {
	Name             string     `json:"name"`
	Price            float64    `json:"price"`
	Quantity         int        `json:"quantity"`
	PurchaseDeadline *time.Time `json:"purchase_deadline"`
}

// SaveTicketsRequest is the request body for PUT /api/events/{eventID}/tickets and its draft variant.
type SaveTicketsRequest struct {
	Tickets []TicketInput `json:"tickets"`
}

// Validate implements Validator.
func (s SaveTicketsRequest) Validate() []string {
	var errs []string
	for i, t := range s.Tickets {
		if t.Price < 0 {
			errs = append(errs, fmt.Sprintf("tickets[%d]: price must not be negative", i))
		}
		if t.Quantity < 0 {
			errs = append(errs, fmt.Sprintf("tickets[%d]: quantity must not be negative", i))
		}
	}
	return errs
}

func (s SaveTicketsRequest) tickets() []*domain.Ticket {
	out := make([]*domain.Ticket, 0, len(s.Tickets))
	for _, t := range s.Tickets {
		out = append(out, &domain.Ticket{
			Name:              t.Name,
			Price:             t.Price,
			QuantityAvailable: t.Quantity,
			PurchaseDeadline:  t.PurchaseDeadline,
		})
	}
	return out
}

// TicketsResponse is the response body for PUT /api/events/{eventID}/tickets.
type TicketsResponse struct {
	Tickets []*domain.Ticket `json:"tickets"`
}

// EventsResponse is the response body for GET /api/events/me.
type EventsResponse struct {
	Events []*domain.Event `json:"events"`
}

type EventController struct {
	Logger  *slog.Logger
	Service domain.EventService
	Drafts  domain.TicketDraftService
}

func NewEventController(logger *slog.Logger, svc domain.EventService, drafts domain.TicketDraftService) *EventController {
	return &EventController{
		Logger:  logger,
		Service: svc,
		Drafts:  drafts,
	}
}

// CreateEvent godoc
// @Summary Create an event
// @Description The authenticated user becomes the owner. time_zone defaults to UTC.
// @Tags events
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param event body CreateEventRequest true "Event data"
// @Success 201 {object} domain.Event
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Failure 500 {object} helpers.ErrorResponse "code: internal_error"
// @Router /api/events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req CreateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	event := &domain.Event{
		Name:           req.Name,
		Theme:          req.Theme,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		TimeZone:       req.TimeZone,
		Location:       req.Location,
		AdditionalInfo: req.AdditionalInfo,
		OwnerID:        userID,
	}
	if err := c.Service.CreateEvent(r.Context(), event); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, event)
}

// GetEvent godoc
// @Summary Get an event
// @Description Public. Returns the event, its description without the payment block, parsed payment handles and ticket tiers with remaining counts.
// @Tags events
// @Produce json
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} domain.EventDetails
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Failure 500 {object} helpers.ErrorResponse "code: internal_error"
// @Router /api/events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	// Public links may be mistyped; no event can have a malformed ID.
	if !uuidRegex.MatchString(eventID) {
		helpers.WriteJSONError(w, http.StatusNotFound, helpers.ErrCodeNotFound, "event not found")
		return
	}
	details, err := c.Service.GetEvent(r.Context(), eventID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, details)
}

// ListMyEvents godoc
// @Summary List my events
// @Tags events
// @Produce json
// @Security SessionCookie
// @Success 200 {object} controllers.EventsResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Failure 500 {object} helpers.ErrorResponse "code: internal_error"
// @Router /api/events/me [get]
func (c *EventController) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	events, err := c.Service.ListEventsByOwner(r.Context(), userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if events == nil {
		events = []*domain.Event{}
	}
	helpers.WriteJSON(w, http.StatusOK, EventsResponse{Events: events})
}

// UpdateEvent godoc
// @Summary Update an event
// @Description Owner only. Partial update; omitted fields are unchanged. Concurrent edits are last-writer-wins.
// @Tags events
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Param event body UpdateEventRequest true "Fields to change"
// @Success 200 {object} domain.Event
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Router /api/events/{eventID} [patch]
func (c *EventController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	var req UpdateEventRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.UpdateEvent(r.Context(), eventID, userID, req.patch())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, event)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Owner only. Deletes RSVPs, then tickets, then the event. A failure part way is reported with the stage and is not rolled back.
// @Tags events
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} helpers.SuccessResponse
// @Failure 401 {object} helpers.ErrorResponse "code: unauthorized"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Failure 500 {object} helpers.ErrorResponse "code: internal_error"
// @Router /api/events/{eventID} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	if err := c.Service.DeleteEvent(r.Context(), eventID, userID); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, helpers.SuccessResponse{Success: true, Message: "Event deleted successfully"})
}

// SaveTickets godoc
// @Summary Replace the ticket tiers of an event
// @Description Owner only. Tiers with a blank name are skipped; at most 5 remain. Existing tiers are deleted and the list inserted.
// @Tags tickets
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Param tickets body SaveTicketsRequest true "Ticket tiers"
// @Success 200 {object} controllers.TicketsResponse
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Failure 404 {object} helpers.ErrorResponse "code: not_found"
// @Router /api/events/{eventID}/tickets [put]
func (c *EventController) SaveTickets(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	var req SaveTicketsRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	saved, err := c.Service.SaveTickets(r.Context(), eventID, userID, req.tickets())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if saved == nil {
		saved = []*domain.Ticket{}
	}
	helpers.WriteJSON(w, http.StatusOK, TicketsResponse{Tickets: saved})
}

// SaveTicketDraft godoc
// @Summary Autosave ticket tiers
// @Description Owner only. Records the draft and saves it one second after the last edit. A draft submitted while a save is running is dropped.
// @Tags tickets
// @Accept json
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Param tickets body SaveTicketsRequest true "Ticket tiers"
// @Success 202 {object} domain.DraftState
// @Failure 400 {object} helpers.ErrorResponse "code: bad_request"
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Router /api/events/{eventID}/tickets/draft [put]
func (c *EventController) SaveTicketDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	var req SaveTicketsRequest
	if !helpers.DecodeAndValidate(w, r, &req) {
		return
	}
	state, err := c.Drafts.Submit(r.Context(), eventID, userID, req.tickets())
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusAccepted, state)
}

// GetTicketDraft godoc
// @Summary Ticket autosave state
// @Tags tickets
// @Produce json
// @Security SessionCookie
// @Param eventID path string true "Event ID (UUID)"
// @Success 200 {object} domain.DraftState
// @Failure 403 {object} helpers.ErrorResponse "code: forbidden"
// @Router /api/events/{eventID}/tickets/draft [get]
func (c *EventController) GetTicketDraft(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	eventID, ok := pathParam(w, r, "eventID")
	if !ok {
		return
	}
	state, err := c.Drafts.State(r.Context(), eventID, userID)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, state)
}
