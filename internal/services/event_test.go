package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bouncer/internal/domain"
)

type eventFixture struct {
	events  *fakeEventRepo
	tickets *fakeTicketRepo
	rsvps   *fakeRSVPRepo
	svc     domain.EventService
}

func newEventFixture(t *testing.T) *eventFixture {
	t.Helper()
	f := &eventFixture{
		events:  newFakeEventRepo(),
		tickets: newFakeTicketRepo(),
		rsvps:   newFakeRSVPRepo(),
	}
	f.events.add(&domain.Event{ID: testEventID, Name: "Launch Party", OwnerID: testOwnerID, TimeZone: "UTC"})
	f.svc = NewEventService(f.events, f.tickets, f.rsvps, newTestClock(), testTimeout)
	return f
}

func strPtr(s string) *string { return &s }

func TestEventService_CreateEvent(t *testing.T) {
	start := epoch.Add(24 * time.Hour)
	before := start.Add(-time.Hour)
	tests := []struct {
		name    string
		event   *domain.Event
		wantErr error
	}{
		{name: "success", event: &domain.Event{Name: "  Meetup ", OwnerID: testOwnerID, StartsAt: &start}},
		{name: "missing owner", event: &domain.Event{Name: "Meetup"}, wantErr: domain.ErrInvalidInput},
		{name: "blank name", event: &domain.Event{Name: "   ", OwnerID: testOwnerID}, wantErr: domain.ErrInvalidInput},
		{name: "unknown time zone", event: &domain.Event{Name: "Meetup", OwnerID: testOwnerID, TimeZone: "Mars/Olympus"}, wantErr: domain.ErrInvalidInput},
		{name: "ends before start", event: &domain.Event{Name: "Meetup", OwnerID: testOwnerID, StartsAt: &start, EndsAt: &before}, wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEventFixture(t)
			err := f.svc.CreateEvent(context.Background(), tt.event)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ev-1", tt.event.ID)
			assert.Equal(t, "Meetup", tt.event.Name)
			assert.Equal(t, "UTC", tt.event.TimeZone)
			assert.Equal(t, epoch, tt.event.CreatedAt)
		})
	}
}

func TestEventService_CreateEvent_RepoError(t *testing.T) {
	f := newEventFixture(t)
	f.events.err = errors.New("db down")
	err := f.svc.CreateEvent(context.Background(), &domain.Event{Name: "Meetup", OwnerID: testOwnerID})
	assert.EqualError(t, err, "db down")
}

func TestEventService_GetEvent(t *testing.T) {
	f := newEventFixture(t)
	past := epoch.Add(-time.Minute)
	f.events.add(&domain.Event{
		ID:             testEventID,
		Name:           "Launch Party",
		OwnerID:        testOwnerID,
		AdditionalInfo: "Bring snacks.\n\nPayment Information:\nVenmo: @ada\nZelle: ada@example.com",
	})
	f.tickets = newFakeTicketRepo(
		&domain.Ticket{ID: "t-1", EventID: testEventID, Name: "Free", QuantityAvailable: 3},
		&domain.Ticket{ID: "t-2", EventID: testEventID, Name: "VIP", Price: 25, QuantityAvailable: 0},
		&domain.Ticket{ID: "t-3", EventID: testEventID, Name: "Early", QuantityAvailable: 5, PurchaseDeadline: &past},
	)
	f.svc = NewEventService(f.events, f.tickets, f.rsvps, newTestClock(), testTimeout)

	details, err := f.svc.GetEvent(context.Background(), testEventID)
	require.NoError(t, err)
	assert.Equal(t, "Bring snacks.", details.Description)
	require.NotNil(t, details.PaymentInfo)
	assert.Equal(t, "@ada", details.PaymentInfo.Venmo)
	assert.Equal(t, "ada@example.com", details.PaymentInfo.Zelle)

	require.Len(t, details.Tickets, 3)
	assert.Equal(t, 3, details.Tickets[0].Remaining)
	assert.False(t, details.Tickets[0].SoldOut)
	assert.True(t, details.Tickets[1].SoldOut)
	assert.True(t, details.Tickets[2].DeadlinePassed)

	_, err = f.svc.GetEvent(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventService_UpdateEvent(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		patch   domain.EventPatch
		want    string
		wantErr error
	}{
		{name: "rename", owner: testOwnerID, patch: domain.EventPatch{Name: strPtr(" After Party ")}, want: "After Party"},
		{name: "empty patch", owner: testOwnerID, want: "Launch Party"},
		{name: "not the owner", owner: testGuestID, patch: domain.EventPatch{Name: strPtr("Mine now")}, wantErr: domain.ErrForbidden},
		{name: "blank name", owner: testOwnerID, patch: domain.EventPatch{Name: strPtr(" ")}, wantErr: domain.ErrInvalidInput},
		{name: "bad time zone", owner: testOwnerID, patch: domain.EventPatch{TimeZone: strPtr("Nowhere/City")}, wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEventFixture(t)
			got, err := f.svc.UpdateEvent(context.Background(), testEventID, tt.owner, tt.patch)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func seedEventRows(f *eventFixture) {
	f.tickets.byID["t-1"] = &domain.Ticket{ID: "t-1", EventID: testEventID, Name: "Free", QuantityAvailable: 10}
	f.rsvps.byID["r-1"] = &domain.RSVP{ID: "r-1", EventID: testEventID, UserID: testGuestID, Email: "ada@example.com"}
}

func TestEventService_DeleteEvent_NonOwnerDeletesNothing(t *testing.T) {
	f := newEventFixture(t)
	seedEventRows(f)

	err := f.svc.DeleteEvent(context.Background(), testEventID, testGuestID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Len(t, f.events.byID, 1)
	assert.Len(t, f.tickets.byID, 1)
	assert.Equal(t, 1, f.rsvps.count())
}

func TestEventService_DeleteEvent(t *testing.T) {
	f := newEventFixture(t)
	seedEventRows(f)

	require.NoError(t, f.svc.DeleteEvent(context.Background(), testEventID, testOwnerID))
	assert.Empty(t, f.events.byID)
	assert.Empty(t, f.tickets.byID)
	assert.Zero(t, f.rsvps.count())

	err := f.svc.DeleteEvent(context.Background(), testEventID, testOwnerID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEventService_DeleteEvent_ReportsFailedStage(t *testing.T) {
	tests := []struct {
		name      string
		breakRepo func(*eventFixture)
		wantStage string
		rsvpsLeft int
	}{
		{name: "rsvps", breakRepo: func(f *eventFixture) { f.rsvps.deleteErr = errors.New("boom") }, wantStage: "rsvps", rsvpsLeft: 1},
		{name: "tickets", breakRepo: func(f *eventFixture) { f.tickets.deleteErr = errors.New("boom") }, wantStage: "tickets"},
		{name: "event", breakRepo: func(f *eventFixture) { f.events.deleteErr = errors.New("boom") }, wantStage: "event"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEventFixture(t)
			seedEventRows(f)
			tt.breakRepo(f)

			err := f.svc.DeleteEvent(context.Background(), testEventID, testOwnerID)
			var cascade *domain.CascadeError
			require.ErrorAs(t, err, &cascade)
			assert.Equal(t, tt.wantStage, cascade.Stage)
			assert.Equal(t, tt.rsvpsLeft, f.rsvps.count(), "earlier stages are not rolled back")
		})
	}
}

func TestEventService_SaveTickets_RoundTrip(t *testing.T) {
	f := newEventFixture(t)
	saved, err := f.svc.SaveTickets(context.Background(), testEventID, testOwnerID, []*domain.Ticket{
		{Name: "Free", Price: 0, QuantityAvailable: 100},
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	details, err := f.svc.GetEvent(context.Background(), testEventID)
	require.NoError(t, err)
	require.Len(t, details.Tickets, 1)
	got := details.Tickets[0]
	assert.Equal(t, "Free", got.Name)
	assert.Equal(t, float64(0), got.Price)
	assert.Equal(t, 100, got.QuantityAvailable)
	assert.Equal(t, testEventID, got.EventID)
}

func TestEventService_SaveTickets_ReplacesAndSkipsBlank(t *testing.T) {
	f := newEventFixture(t)
	seedEventRows(f)

	saved, err := f.svc.SaveTickets(context.Background(), testEventID, testOwnerID, []*domain.Ticket{
		{Name: "General", Price: 10, QuantityAvailable: 50},
		{Name: "   ", Price: 99, QuantityAvailable: 1},
		nil,
	})
	require.NoError(t, err)
	require.Len(t, saved, 1)

	tickets, err := f.tickets.ListByEventID(context.Background(), testEventID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "General", tickets[0].Name)
}

func TestEventService_SaveTickets_Invalid(t *testing.T) {
	six := make([]*domain.Ticket, 6)
	for i := range six {
		six[i] = &domain.Ticket{Name: "Tier", QuantityAvailable: 1}
	}
	tests := []struct {
		name    string
		owner   string
		tickets []*domain.Ticket
		wantErr error
	}{
		{name: "too many tiers", owner: testOwnerID, tickets: six, wantErr: domain.ErrInvalidInput},
		{name: "negative price", owner: testOwnerID, tickets: []*domain.Ticket{{Name: "A", Price: -1}}, wantErr: domain.ErrInvalidInput},
		{name: "negative quantity", owner: testOwnerID, tickets: []*domain.Ticket{{Name: "A", QuantityAvailable: -1}}, wantErr: domain.ErrInvalidInput},
		{name: "not the owner", owner: testGuestID, tickets: []*domain.Ticket{{Name: "A"}}, wantErr: domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEventFixture(t)
			seedEventRows(f)
			_, err := f.svc.SaveTickets(context.Background(), testEventID, tt.owner, tt.tickets)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, f.tickets.byID, 1, "existing tiers untouched")
		})
	}
}

func TestEventService_UpdateRSVP(t *testing.T) {
	approved := true
	badStatus := "party"
	negative := -5.0
	tests := []struct {
		name    string
		owner   string
		rsvpID  string
		patch   domain.RSVPPatch
		wantErr error
	}{
		{name: "approve", owner: testOwnerID, rsvpID: "r-1", patch: domain.RSVPPatch{Approved: &approved}},
		{name: "unknown status", owner: testOwnerID, rsvpID: "r-1", patch: domain.RSVPPatch{Status: &badStatus}, wantErr: domain.ErrInvalidInput},
		{name: "negative amount", owner: testOwnerID, rsvpID: "r-1", patch: domain.RSVPPatch{AmountPaid: &negative}, wantErr: domain.ErrInvalidInput},
		{name: "rsvp of another event", owner: testOwnerID, rsvpID: "r-other", patch: domain.RSVPPatch{Approved: &approved}, wantErr: domain.ErrNotFound},
		{name: "missing rsvp", owner: testOwnerID, rsvpID: "r-404", patch: domain.RSVPPatch{Approved: &approved}, wantErr: domain.ErrNotFound},
		{name: "not the owner", owner: testGuestID, rsvpID: "r-1", patch: domain.RSVPPatch{Approved: &approved}, wantErr: domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEventFixture(t)
			seedEventRows(f)
			f.rsvps.byID["r-other"] = &domain.RSVP{ID: "r-other", EventID: "other-event", UserID: testGuestID}

			got, err := f.svc.UpdateRSVP(context.Background(), testEventID, tt.rsvpID, tt.owner, tt.patch)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Approved)
		})
	}
}

func TestEventService_ListRSVPsAndGuestIDs(t *testing.T) {
	f := newEventFixture(t)
	seedEventRows(f)

	rsvps, err := f.svc.ListRSVPs(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)
	assert.Len(t, rsvps, 1)

	ids, err := f.svc.GuestIDs(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)
	assert.Equal(t, []string{testGuestID}, ids)

	_, err = f.svc.GuestIDs(context.Background(), testEventID, testGuestID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestEventService_CheckIn(t *testing.T) {
	tests := []struct {
		name         string
		owner        string
		payload      string
		wantVerified bool
		wantErr      error
	}{
		{name: "guest", owner: testOwnerID, payload: " " + testGuestID + "\n", wantVerified: true},
		{name: "not a guest", owner: testOwnerID, payload: "44444444-4444-4444-4444-444444444444"},
		{name: "not a user id", owner: testOwnerID, payload: "https://example.com"},
		{name: "empty payload", owner: testOwnerID, payload: "  ", wantErr: domain.ErrInvalidInput},
		{name: "not the owner", owner: testGuestID, payload: testGuestID, wantErr: domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEventFixture(t)
			seedEventRows(f)

			got, err := f.svc.CheckIn(context.Background(), testEventID, tt.owner, tt.payload)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerified, got.Verified)
			if tt.wantVerified {
				require.NotNil(t, got.Guest)
				assert.Equal(t, testGuestID, got.Guest.UserID)
			} else {
				assert.Nil(t, got.Guest)
			}
		})
	}
}
