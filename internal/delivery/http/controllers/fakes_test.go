package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"bouncer/internal/delivery/http/helpers"
	"bouncer/internal/delivery/http/middleware"
	"bouncer/internal/domain"

	"github.com/stretchr/testify/require"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	ownerID  = "11111111-1111-4111-8111-111111111111"
	guestID  = "22222222-2222-4222-8222-222222222222"
	eventID  = "33333333-3333-4333-8333-333333333333"
	ticketID = "44444444-4444-4444-8444-444444444444"
	rsvpID   = "55555555-5555-4555-8555-555555555555"
)

// newRequest builds a request with a JSON body (nil for none) as userID ("" for anonymous).
func newRequest(t *testing.T, method, target string, body any, userID string) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req = req.WithContext(middleware.SetSession(req.Context(), &domain.Session{UserID: userID, Kind: domain.TokenKindAccess}))
	}
	return req
}

// serve routes req through a mux so path values are populated.
func serve(pattern string, handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, handler)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) helpers.ErrorResponse {
	t.Helper()
	var body helpers.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

// fakeEventService implements domain.EventService for handler tests.
type fakeEventService struct {
	err         error
	event       *domain.Event
	details     *domain.EventDetails
	events      []*domain.Event
	tickets     []*domain.Ticket
	rsvps       []*domain.RSVP
	rsvp        *domain.RSVP
	guestIDs    []string
	checkIn     *domain.CheckInResult
	lastCreate  *domain.Event
	lastEventID string
	lastOwnerID string
	lastPatch   domain.EventPatch
	lastRSVPID  string
	lastRSVP    domain.RSVPPatch
	lastTickets []*domain.Ticket
	lastPayload string
}

func (f *fakeEventService) CreateEvent(ctx context.Context, event *domain.Event) error {
	f.lastCreate = event
	if f.err != nil {
		return f.err
	}
	event.ID = eventID
	return nil
}

func (f *fakeEventService) GetEvent(ctx context.Context, id string) (*domain.EventDetails, error) {
	f.lastEventID = id
	return f.details, f.err
}

func (f *fakeEventService) ListEventsByOwner(ctx context.Context, owner string) ([]*domain.Event, error) {
	f.lastOwnerID = owner
	return f.events, f.err
}

func (f *fakeEventService) UpdateEvent(ctx context.Context, id, owner string, patch domain.EventPatch) (*domain.Event, error) {
	f.lastEventID, f.lastOwnerID, f.lastPatch = id, owner, patch
	return f.event, f.err
}

func (f *fakeEventService) DeleteEvent(ctx context.Context, id, requester string) error {
	f.lastEventID, f.lastOwnerID = id, requester
	return f.err
}

func (f *fakeEventService) SaveTickets(ctx context.Context, id, owner string, tickets []*domain.Ticket) ([]*domain.Ticket, error) {
	f.lastEventID, f.lastOwnerID, f.lastTickets = id, owner, tickets
	return f.tickets, f.err
}

func (f *fakeEventService) ListRSVPs(ctx context.Context, id, owner string) ([]*domain.RSVP, error) {
	f.lastEventID, f.lastOwnerID = id, owner
	return f.rsvps, f.err
}

func (f *fakeEventService) UpdateRSVP(ctx context.Context, id, rsvpID, owner string, patch domain.RSVPPatch) (*domain.RSVP, error) {
	f.lastEventID, f.lastRSVPID, f.lastOwnerID, f.lastRSVP = id, rsvpID, owner, patch
	return f.rsvp, f.err
}

func (f *fakeEventService) GuestIDs(ctx context.Context, id, owner string) ([]string, error) {
	f.lastEventID, f.lastOwnerID = id, owner
	return f.guestIDs, f.err
}

func (f *fakeEventService) CheckIn(ctx context.Context, id, owner, payload string) (*domain.CheckInResult, error) {
	f.lastEventID, f.lastOwnerID, f.lastPayload = id, owner, payload
	return f.checkIn, f.err
}

type fakeDraftService struct {
	state       *domain.DraftState
	err         error
	lastTickets []*domain.Ticket
}

func (f *fakeDraftService) Submit(ctx context.Context, id, owner string, tickets []*domain.Ticket) (*domain.DraftState, error) {
	f.lastTickets = tickets
	return f.state, f.err
}

func (f *fakeDraftService) State(ctx context.Context, id, owner string) (*domain.DraftState, error) {
	return f.state, f.err
}

type fakeProofService struct {
	ref        string
	url        string
	err        error
	lastUpload domain.PaymentProofUpload
	lastBody   []byte
}

func (f *fakeProofService) Upload(ctx context.Context, upload domain.PaymentProofUpload) (string, error) {
	f.lastUpload = upload
	f.lastBody, _ = io.ReadAll(upload.Body)
	return f.ref, f.err
}

func (f *fakeProofService) ViewURL(ctx context.Context, id, rsvpID, owner string) (string, error) {
	return f.url, f.err
}

type fakeReservationService struct {
	res     *domain.Reservation
	rsvps   []*domain.RSVP
	err     error
	lastReq domain.RSVPRequest
	calls   int
}

func (f *fakeReservationService) SubmitRSVP(ctx context.Context, req domain.RSVPRequest) (*domain.Reservation, error) {
	f.calls++
	f.lastReq = req
	return f.res, f.err
}

func (f *fakeReservationService) ListMyRSVPs(ctx context.Context, userID string) ([]*domain.RSVP, error) {
	return f.rsvps, f.err
}

type fakeMessagingService struct {
	res          *domain.BulkEmailResult
	recipients   []string
	err          error
	lastReq      domain.BulkEmailRequest
	lastAudience domain.Audience
	lastCustom   []string
	calls        int
}

func (f *fakeMessagingService) SendBulkEmail(ctx context.Context, req domain.BulkEmailRequest) (*domain.BulkEmailResult, error) {
	f.calls++
	f.lastReq = req
	return f.res, f.err
}

func (f *fakeMessagingService) ResolveRecipients(ctx context.Context, id, owner string, audience domain.Audience, custom []string) ([]string, error) {
	f.lastAudience, f.lastCustom = audience, custom
	return f.recipients, f.err
}

type fakeAuthService struct {
	login       *domain.LoginResult
	session     *domain.Session
	access      string
	address     string
	err         error
	lastCode    string
	lastToken   string
	lastUserID  string
	disconnects int
}

func (f *fakeAuthService) LoginURL(state string) string { return "https://accounts.test/auth?state=" + state }

func (f *fakeAuthService) CompleteLogin(ctx context.Context, code string) (*domain.LoginResult, error) {
	f.lastCode = code
	return f.login, f.err
}

func (f *fakeAuthService) Verify(token string) (*domain.Session, error) {
	f.lastToken = token
	return f.session, f.err
}

func (f *fakeAuthService) Refresh(ctx context.Context, token string) (string, *domain.Session, error) {
	f.lastToken = token
	return f.access, f.session, f.err
}

func (f *fakeAuthService) GmailURL(state string) string { return "https://accounts.test/gmail?state=" + state }

func (f *fakeAuthService) ConnectGmail(ctx context.Context, userID, code string) (string, error) {
	f.lastUserID, f.lastCode = userID, code
	return f.address, f.err
}

func (f *fakeAuthService) DisconnectGmail(ctx context.Context, userID string) error {
	f.lastUserID = userID
	f.disconnects++
	return f.err
}

type fakeProfileService struct {
	profile     *domain.Profile
	qr          string
	err         error
	lastName    string
	deletedUser string
}

func (f *fakeProfileService) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	return f.profile, f.err
}

func (f *fakeProfileService) UpdateDisplayName(ctx context.Context, userID, name string) (*domain.Profile, error) {
	f.lastName = name
	return f.profile, f.err
}

func (f *fakeProfileService) EnsureQRCode(ctx context.Context, userID string) (string, error) {
	return f.qr, f.err
}

func (f *fakeProfileService) DeleteAccount(ctx context.Context, userID string) error {
	f.deletedUser = userID
	return f.err
}
