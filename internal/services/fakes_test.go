package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"bouncer/internal/clock"
	"bouncer/internal/domain"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const testTimeout = 5 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClock() *clock.Fake { return clock.NewFake(epoch) }

// fakeEventRepo is an in-memory EventRepository for tests.
type fakeEventRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Event
	nextID    int
	err       error // if set, Create returns this error
	deleteErr error
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{byID: make(map[string]*domain.Event), nextID: 1}
}

func (f *fakeEventRepo) add(e *domain.Event) *domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[e.ID] = e
	return e
}

func (f *fakeEventRepo) Create(ctx context.Context, e *domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	e.ID = fmt.Sprintf("ev-%d", f.nextID)
	f.nextID++
	f.byID[e.ID] = e
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.byID[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Event
	for _, e := range f.byID {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) Update(ctx context.Context, id string, p domain.EventPatch) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Theme != nil {
		e.Theme = *p.Theme
	}
	if p.StartsAt != nil {
		e.StartsAt = p.StartsAt
	}
	if p.EndsAt != nil {
		e.EndsAt = p.EndsAt
	}
	if p.TimeZone != nil {
		e.TimeZone = *p.TimeZone
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.AdditionalInfo != nil {
		e.AdditionalInfo = *p.AdditionalInfo
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeTicketRepo keeps tickets in memory. Decrement is atomic under mu.
type fakeTicketRepo struct {
	mu           sync.Mutex
	byID         map[string]*domain.Ticket
	nextID       int
	deleteErr    error
	incrementErr error
	increments   int
	decrements   int
}

func newFakeTicketRepo(tickets ...*domain.Ticket) *fakeTicketRepo {
	f := &fakeTicketRepo{byID: make(map[string]*domain.Ticket), nextID: 1}
	for _, t := range tickets {
		f.byID[t.ID] = t
	}
	return f
}

func (f *fakeTicketRepo) quantity(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id].QuantityAvailable
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.byID[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTicketRepo) ListByEventID(ctx context.Context, eventID string) ([]*domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Ticket
	for _, t := range f.byID {
		if t.EventID == eventID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTicketRepo) DeleteByEventID(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, t := range f.byID {
		if t.EventID == eventID {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeTicketRepo) CreateBatch(ctx context.Context, tickets []*domain.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tickets {
		t.ID = fmt.Sprintf("t-%d", f.nextID)
		f.nextID++
		cp := *t
		f.byID[t.ID] = &cp
	}
	return nil
}

func (f *fakeTicketRepo) Decrement(ctx context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok || t.QuantityAvailable <= 0 {
		return 0, domain.ErrTicketUnavailable
	}
	t.QuantityAvailable--
	f.decrements++
	return t.QuantityAvailable, nil
}

func (f *fakeTicketRepo) Increment(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return f.incrementErr
	}
	t, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.QuantityAvailable++
	f.increments++
	return nil
}

// fakeRSVPRepo enforces (event, user) uniqueness on Create like the unique index does.
type fakeRSVPRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.RSVP
	nextID    int
	createErr error
	deleteErr error
	getErr    error
}

func newFakeRSVPRepo(rsvps ...*domain.RSVP) *fakeRSVPRepo {
	f := &fakeRSVPRepo{byID: make(map[string]*domain.RSVP), nextID: 1}
	for _, r := range rsvps {
		f.byID[r.ID] = r
	}
	return f
}

func (f *fakeRSVPRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeRSVPRepo) Create(ctx context.Context, r *domain.RSVP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byID {
		if existing.EventID == r.EventID && existing.UserID == r.UserID {
			return domain.ErrDuplicateRSVP
		}
	}
	r.ID = fmt.Sprintf("r-%d", f.nextID)
	f.nextID++
	cp := *r
	f.byID[r.ID] = &cp
	return nil
}

func (f *fakeRSVPRepo) GetByID(ctx context.Context, id string) (*domain.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.byID[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRSVPRepo) GetByEventAndUser(ctx context.Context, eventID, userID string) (*domain.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, r := range f.byID {
		if r.EventID == eventID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRSVPRepo) filter(keep func(*domain.RSVP) bool) []*domain.RSVP {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.RSVP
	for _, r := range f.byID {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeRSVPRepo) ListByEventID(ctx context.Context, eventID string) ([]*domain.RSVP, error) {
	return f.filter(func(r *domain.RSVP) bool { return r.EventID == eventID }), nil
}

func (f *fakeRSVPRepo) ListByUserID(ctx context.Context, userID string) ([]*domain.RSVP, error) {
	return f.filter(func(r *domain.RSVP) bool { return r.UserID == userID }), nil
}

func (f *fakeRSVPRepo) ListGuestUserIDs(ctx context.Context, eventID string) ([]string, error) {
	var ids []string
	for _, r := range f.filter(func(r *domain.RSVP) bool { return r.EventID == eventID }) {
		ids = append(ids, r.UserID)
	}
	return ids, nil
}

func (f *fakeRSVPRepo) FilterGuestEmails(ctx context.Context, eventID string, emails []string) ([]string, error) {
	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[strings.ToLower(e)] = true
	}
	var out []string
	for _, r := range f.filter(func(r *domain.RSVP) bool { return r.EventID == eventID }) {
		if want[strings.ToLower(r.Email)] {
			out = append(out, r.Email)
		}
	}
	return out, nil
}

func (f *fakeRSVPRepo) Update(ctx context.Context, id string, p domain.RSVPPatch) (*domain.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if p.Approved != nil {
		r.Approved = *p.Approved
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.AmountPaid != nil {
		r.AmountPaid = p.AmountPaid
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRSVPRepo) DeleteByEventID(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, r := range f.byID {
		if r.EventID == eventID {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeRSVPRepo) DeleteByUserID(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for id, r := range f.byID {
		if r.UserID == userID {
			delete(f.byID, id)
		}
	}
	return nil
}

// fakeTxReserver runs decrement and insert under one lock and undoes the decrement on failure.
type fakeTxReserver struct {
	tickets *fakeTicketRepo
	rsvps   *fakeRSVPRepo
}

func (f *fakeTxReserver) ReserveInTx(ctx context.Context, r *domain.RSVP) (int, error) {
	remaining, err := f.tickets.Decrement(ctx, *r.TicketID)
	if err != nil {
		return 0, err
	}
	if err := f.rsvps.Create(ctx, r); err != nil {
		f.tickets.mu.Lock()
		f.tickets.byID[*r.TicketID].QuantityAvailable++
		f.tickets.mu.Unlock()
		if errors.Is(err, domain.ErrDuplicateRSVP) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", domain.ErrRSVPCreation, err)
	}
	return remaining, nil
}

// fakeProfileRepo is an in-memory ProfileRepository for tests.
type fakeProfileRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Profile
	nextID    int
	grants    map[string]domain.SealedMailGrant
	deleteErr error
}

func newFakeProfileRepo(profiles ...*domain.Profile) *fakeProfileRepo {
	f := &fakeProfileRepo{
		byID:   make(map[string]*domain.Profile),
		grants: make(map[string]domain.SealedMailGrant),
		nextID: 1,
	}
	for _, p := range profiles {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProfileRepo) UpsertByGoogleSubject(ctx context.Context, p *domain.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.GoogleSubject == p.GoogleSubject {
			existing.Email = p.Email
			*p = *existing
			return nil
		}
	}
	p.ID = fmt.Sprintf("u-%d", f.nextID)
	f.nextID++
	cp := *p
	f.byID[p.ID] = &cp
	return nil
}

func (f *fakeProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeProfileRepo) UpdateDisplayName(ctx context.Context, id, name string) (*domain.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p.DisplayName = name
	cp := *p
	return &cp, nil
}

func (f *fakeProfileRepo) SetMailGrant(ctx context.Context, id string, g domain.SealedMailGrant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.GmailAddress = &g.Address
	p.GmailAccessToken = &g.AccessToken
	p.GmailRefreshToken = &g.RefreshToken
	p.GmailTokenExpiry = &g.Expiry
	f.grants[id] = g
	return nil
}

func (f *fakeProfileRepo) ClearMailGrant(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.GmailAddress, p.GmailAccessToken, p.GmailRefreshToken, p.GmailTokenExpiry = nil, nil, nil, nil
	delete(f.grants, id)
	return nil
}

func (f *fakeProfileRepo) SetQRCode(ctx context.Context, id, qr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.byID[id]; ok && p.QRCode == nil {
		p.QRCode = &qr
	}
	return nil
}

func (f *fakeProfileRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

// fakeEmailService records confirmations.
type fakeEmailService struct {
	mu   sync.Mutex
	sent []*domain.RSVPConfirmationEmailData
	err  error
}

func (f *fakeEmailService) SendRSVPConfirmation(ctx context.Context, data *domain.RSVPConfirmationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, data)
	return nil
}

// fakeSealer "seals" by prefixing, which keeps tests readable.
type fakeSealer struct{}

func (fakeSealer) Seal(s string) (string, error) { return "sealed:" + s, nil }

func (fakeSealer) Open(s string) (string, error) {
	v, ok := strings.CutPrefix(s, "sealed:")
	if !ok {
		return "", errors.New("not sealed")
	}
	return v, nil
}

// fakeRenderer renders "<subject>|<message>" so tests can see the data flow through.
type fakeRenderer struct{}

func (fakeRenderer) Render(name string, data any) (string, string, string, error) {
	switch d := data.(type) {
	case *domain.EventUpdateEmailData:
		return "Update: " + d.EventName, "<p>" + d.Message + "</p>", d.Message, nil
	case *domain.RSVPConfirmationEmailData:
		return "RSVP: " + d.EventName, "<p>" + d.GuestName + "</p>", d.GuestName, nil
	}
	return "", "", "", fmt.Errorf("unknown template %q", name)
}

// fakeMailSessions hands out one shared fakeMailSession.
type fakeMailSessions struct {
	session *fakeMailSession
	opened  *domain.MailGrant
	err     error
}

func (f *fakeMailSessions) Open(ctx context.Context, g *domain.MailGrant) (domain.MailSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.opened = g
	return f.session, nil
}

type fakeMailSession struct {
	failures map[string]error
	sent     []string
	html     string
	grant    *domain.MailGrant
}

func (f *fakeMailSession) Send(ctx context.Context, to, subject, html string) error {
	if err, ok := f.failures[to]; ok {
		return err
	}
	f.sent = append(f.sent, to)
	f.html = html
	return nil
}

func (f *fakeMailSession) Grant() (*domain.MailGrant, error) {
	if f.grant == nil {
		return nil, errors.New("no grant")
	}
	return f.grant, nil
}

// fakeObjectStore keeps uploaded bytes in memory.
type fakeObjectStore struct {
	objects map[string][]byte
	err     error
}

func (f *fakeObjectStore) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = make(map[string][]byte)
	}
	f.objects[key] = b
	return nil
}

func (f *fakeObjectStore) URL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return fmt.Sprintf("https://store.test/%s?exp=%d", key, int(expiry.Seconds())), nil
}
