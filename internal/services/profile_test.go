package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bouncer/internal/domain"
)

type profileFixture struct {
	profiles *fakeProfileRepo
	events   *fakeEventRepo
	tickets  *fakeTicketRepo
	rsvps    *fakeRSVPRepo
	svc      domain.ProfileService
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	f := &profileFixture{
		profiles: newFakeProfileRepo(&domain.Profile{ID: testOwnerID, Email: "grace@example.com", DisplayName: "Grace"}),
		events:   newFakeEventRepo(),
		tickets:  newFakeTicketRepo(),
		rsvps:    newFakeRSVPRepo(),
	}
	events := NewEventService(f.events, f.tickets, f.rsvps, newTestClock(), testTimeout)
	f.svc = NewProfileService(f.profiles, f.events, f.rsvps, events, discardLogger(), testTimeout)
	return f
}

func TestProfileService_UpdateDisplayName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "trimmed", input: "  Grace Hopper ", want: "Grace Hopper"},
		{name: "blank", input: "  ", wantErr: domain.ErrInvalidInput},
		{name: "too long", input: strings.Repeat("x", MaxDisplayNameLength+1), wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProfileFixture(t)
			p, err := f.svc.UpdateDisplayName(context.Background(), testOwnerID, tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.DisplayName)
		})
	}
}

func TestProfileService_EnsureQRCode(t *testing.T) {
	f := newProfileFixture(t)

	code, err := f.svc.EnsureQRCode(context.Background(), testOwnerID)
	require.NoError(t, err)
	assert.Equal(t, testOwnerID, code)

	p, err := f.svc.GetProfile(context.Background(), testOwnerID)
	require.NoError(t, err)
	require.NotNil(t, p.QRCode)
	assert.Equal(t, testOwnerID, *p.QRCode)

	again, err := f.svc.EnsureQRCode(context.Background(), testOwnerID)
	require.NoError(t, err)
	assert.Equal(t, code, again)

	_, err = f.svc.EnsureQRCode(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileService_DeleteAccount(t *testing.T) {
	f := newProfileFixture(t)
	f.events.add(&domain.Event{ID: "ev-a", OwnerID: testOwnerID})
	f.events.add(&domain.Event{ID: "ev-b", OwnerID: testOwnerID})
	f.events.add(&domain.Event{ID: "ev-other", OwnerID: testGuestID})
	f.tickets.byID["t-a"] = &domain.Ticket{ID: "t-a", EventID: "ev-a"}
	f.rsvps.byID["r-guest-on-a"] = &domain.RSVP{ID: "r-guest-on-a", EventID: "ev-a", UserID: testGuestID}
	f.rsvps.byID["r-owner-on-other"] = &domain.RSVP{ID: "r-owner-on-other", EventID: "ev-other", UserID: testOwnerID}
	f.rsvps.byID["r-guest-on-other"] = &domain.RSVP{ID: "r-guest-on-other", EventID: "ev-other", UserID: testGuestID}

	require.NoError(t, f.svc.DeleteAccount(context.Background(), testOwnerID))

	assert.Len(t, f.events.byID, 1)
	assert.Contains(t, f.events.byID, "ev-other")
	assert.Empty(t, f.tickets.byID)
	assert.Equal(t, 1, f.rsvps.count())
	assert.Contains(t, f.rsvps.byID, "r-guest-on-other")
	_, err := f.profiles.GetByID(context.Background(), testOwnerID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileService_DeleteAccount_StopsAtFailedStage(t *testing.T) {
	f := newProfileFixture(t)
	f.events.add(&domain.Event{ID: "ev-a", OwnerID: testOwnerID})
	f.events.deleteErr = errors.New("fk violation")

	err := f.svc.DeleteAccount(context.Background(), testOwnerID)
	var cascade *domain.CascadeError
	require.ErrorAs(t, err, &cascade)
	assert.Equal(t, "event ev-a event", cascade.Stage)

	_, err = f.profiles.GetByID(context.Background(), testOwnerID)
	assert.NoError(t, err, "profile survives a failed cascade")
}
