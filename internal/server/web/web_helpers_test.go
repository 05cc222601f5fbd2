package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/qrcode"
	"github.com/and161185/binqr/internal/service"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
)

const (
	goodAccess  = "good-access"
	goodRefresh = "good-refresh"
)

type fakeAuth struct {
	mu        sync.Mutex
	id        model.Identity
	sessionID uuid.UUID
	signedOut []uuid.UUID
	refreshes int
	authErr   error
}

func (f *fakeAuth) tokens() model.Tokens {
	return model.Tokens{AccessToken: goodAccess, RefreshToken: goodRefresh, ExpiresAt: time.Now().Add(time.Hour)}
}

func (f *fakeAuth) SignUp(_ context.Context, in service.SignUpInput) (*model.Profile, error) {
	if in.InviteCode != "GOODCODE" {
		return nil, errs.ErrInvalidOrExpiredCode
	}
	return &model.Profile{ID: f.id.ID, Email: in.Email}, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, password, _ string) (model.Tokens, model.Identity, error) {
	if email != f.id.Email || password != "secret1" {
		return model.Tokens{}, model.Identity{}, errs.ErrInvalidCredentials
	}
	return f.tokens(), f.id, nil
}

func (f *fakeAuth) Refresh(_ context.Context, rt string) (model.Tokens, model.Identity, error) {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	if rt != goodRefresh {
		return model.Tokens{}, model.Identity{}, errs.ErrUnauthorized
	}
	return f.tokens(), f.id, nil
}

func (f *fakeAuth) SignOut(_ context.Context, sessionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedOut = append(f.signedOut, sessionID)
	return nil
}

func (f *fakeAuth) Authenticate(_ context.Context, tok string) (service.Principal, error) {
	if f.authErr != nil {
		return service.Principal{}, f.authErr
	}
	if tok != goodAccess {
		return service.Principal{}, errs.ErrUnauthorized
	}
	return service.Principal{Identity: f.id, SessionID: f.sessionID}, nil
}

func (f *fakeAuth) Profile(_ context.Context, userID uuid.UUID) (*model.Profile, error) {
	return &model.Profile{ID: userID, Email: f.id.Email, InvitesRemaining: 4}, nil
}

func (f *fakeAuth) UpdateProfile(_ context.Context, userID uuid.UUID, upd model.ProfileUpdate) (*model.Profile, error) {
	p := &model.Profile{ID: userID, Email: f.id.Email}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	return p, nil
}

func (f *fakeAuth) RequestPasswordReset(context.Context, string) error { return nil }

func (f *fakeAuth) ResetPassword(_ context.Context, tok, _, _ string) error {
	if tok != "recovery" {
		return errs.ErrInvalidRecoveryToken
	}
	return nil
}

func (f *fakeAuth) UpdatePassword(_ context.Context, _ uuid.UUID, password, confirm string) error {
	if password != confirm {
		return errs.Invalid("confirm", "passwords do not match")
	}
	return nil
}

type fakeInvites struct {
	service.InviteService
}

func (fakeInvites) Validate(_ context.Context, code string) model.InviteValidation {
	if code == "GOODCODE" {
		return model.InviteValidation{Valid: true, Message: service.MsgInviteValid}
	}
	return model.InviteValidation{Message: service.MsgInviteInvalid}
}

func (fakeInvites) List(context.Context, uuid.UUID) ([]model.Invite, error) {
	return []model.Invite{}, nil
}

func (fakeInvites) Create(context.Context, uuid.UUID) (*model.Invite, error) {
	return nil, errs.ErrNoInvitesRemaining
}

// fakeStore keeps locations and boxes of any user in memory.
type fakeStore struct {
	mu        sync.Mutex
	locations []model.Location
	boxes     []model.Box
}

type fakeLocations struct {
	service.LocationService
	*fakeStore
}

func (f fakeLocations) List(_ context.Context, userID uuid.UUID) ([]model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Location{}
	for _, l := range f.locations {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f fakeLocations) Create(_ context.Context, userID uuid.UUID, name, desc string) (*model.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errs.Invalid("name", "location name is required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l := model.Location{ID: uuid.Must(uuid.NewV4()), UserID: userID, Name: name, Description: desc, CreatedAt: time.Now()}
	f.locations = append(f.locations, l)
	return &l, nil
}

func (f fakeLocations) countLocked(id uuid.UUID) int {
	n := 0
	for _, b := range f.boxes {
		if b.LocationID == id {
			n++
		}
	}
	return n
}

func (f fakeLocations) BoxCount(_ context.Context, _, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countLocked(id), nil
}

func (f fakeLocations) Delete(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countLocked(id) > 0 {
		return errs.ErrHasDependents
	}
	for i, l := range f.locations {
		if l.ID == id && l.UserID == userID {
			f.locations = append(f.locations[:i], f.locations[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

type fakeBoxes struct {
	service.BoxService
	*fakeStore
}

func (f fakeBoxes) List(_ context.Context, userID uuid.UUID) ([]model.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Box{}
	for _, b := range f.boxes {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f fakeBoxes) Create(_ context.Context, userID uuid.UUID, in service.NewBox) (*model.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.Must(uuid.NewV4())
	b := model.Box{ID: id, UserID: userID, LocationID: in.LocationID, Name: in.Name,
		Contents: in.Contents, QRCode: qrcode.Encode(id), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	f.boxes = append(f.boxes, b)
	return &b, nil
}

func (f fakeBoxes) FindByCode(_ context.Context, userID uuid.UUID, payload string) (*model.Box, error) {
	id, ok := qrcode.Parse(payload)
	if !ok {
		return nil, errs.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.boxes {
		if b.ID == id && b.UserID == userID {
			return &b, nil
		}
	}
	return nil, errs.ErrNotFound
}

type fixture struct {
	auth  *fakeAuth
	store *fakeStore
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	auth := &fakeAuth{
		id:        model.Identity{ID: uuid.Must(uuid.NewV4()), Email: "ann@example.com"},
		sessionID: uuid.Must(uuid.NewV4()),
	}
	store := &fakeStore{}
	s := New(auth, fakeInvites{}, fakeLocations{fakeStore: store}, fakeBoxes{fakeStore: store},
		WithLogger(zaptest.NewLogger(t)))
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &fixture{auth: auth, store: store, srv: srv}
}

// client does not follow redirects so tests can inspect them.
func (f *fixture) client() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func (f *fixture) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		if strings.HasPrefix(body, "{") {
			req.Header.Set("Content-Type", "application/json")
		} else {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func access() *http.Cookie  { return &http.Cookie{Name: AccessCookie, Value: goodAccess} }
func refresh() *http.Cookie { return &http.Cookie{Name: RefreshCookie, Value: goodRefresh} }

func cookieValue(resp *http.Response, name string) (string, bool) {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}
