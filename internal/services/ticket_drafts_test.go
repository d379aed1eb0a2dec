package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bouncer/internal/autosave"
	"bouncer/internal/clock"
	"bouncer/internal/domain"
)

func newDraftFixture(t *testing.T) (*eventFixture, *clock.Fake, domain.TicketDraftService) {
	t.Helper()
	f := newEventFixture(t)
	c := newTestClock()
	f.svc = NewEventService(f.events, f.tickets, f.rsvps, c, testTimeout)
	drafts := NewTicketDraftService(f.svc, f.events, c, autosave.DefaultDelay, discardLogger(), testTimeout)
	return f, c, drafts
}

func TestTicketDraftService_CoalescesEdits(t *testing.T) {
	f, c, drafts := newDraftFixture(t)
	ctx := context.Background()

	for _, name := range []string{"G", "Ge", "General"} {
		st, err := drafts.Submit(ctx, testEventID, testOwnerID, []*domain.Ticket{{Name: name, QuantityAvailable: 10}})
		require.NoError(t, err)
		assert.Equal(t, string(autosave.Dirty), st.State)
		c.Advance(300 * time.Millisecond)
	}
	assert.Empty(t, f.tickets.byID, "nothing saved mid-burst")

	c.Advance(time.Second)
	tickets, err := f.tickets.ListByEventID(ctx, testEventID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "General", tickets[0].Name)

	st, err := drafts.State(ctx, testEventID, testOwnerID)
	require.NoError(t, err)
	assert.Equal(t, string(autosave.Clean), st.State)
	require.NotNil(t, st.SavedAt)
	assert.Empty(t, st.LastError)
}

func TestTicketDraftService_SaveFailureIsReported(t *testing.T) {
	f, c, drafts := newDraftFixture(t)
	f.tickets.deleteErr = errors.New("db down")

	_, err := drafts.Submit(context.Background(), testEventID, testOwnerID, []*domain.Ticket{{Name: "General"}})
	require.NoError(t, err)
	c.Advance(time.Second)

	st, err := drafts.State(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)
	assert.Equal(t, string(autosave.Dirty), st.State)
	assert.Contains(t, st.LastError, "db down")
}

func TestTicketDraftService_Rejections(t *testing.T) {
	_, _, drafts := newDraftFixture(t)
	ctx := context.Background()

	_, err := drafts.Submit(ctx, testEventID, testOwnerID, []*domain.Ticket{{Name: "A", Price: -3}})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = drafts.Submit(ctx, testEventID, testGuestID, []*domain.Ticket{{Name: "A"}})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = drafts.State(ctx, "missing", testOwnerID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTicketDraftService_StateWithoutDraftsIsClean(t *testing.T) {
	_, _, drafts := newDraftFixture(t)
	st, err := drafts.State(context.Background(), testEventID, testOwnerID)
	require.NoError(t, err)
	assert.Equal(t, string(autosave.Clean), st.State)
	assert.Nil(t, st.SavedAt)
}
