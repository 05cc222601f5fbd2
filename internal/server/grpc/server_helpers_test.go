package grpcserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/qrcode"
	"github.com/and161185/binqr/internal/rpc"
	"github.com/and161185/binqr/internal/service"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
)

const goodToken = "good-token"

type fakeAuth struct {
	mu        sync.Mutex
	id        model.Identity
	sessionID uuid.UUID
	signedOut []uuid.UUID
	lastIP    string
	authErr   error
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		id:        model.Identity{ID: uuid.Must(uuid.NewV4()), Email: "ann@example.com"},
		sessionID: uuid.Must(uuid.NewV4()),
	}
}

func (f *fakeAuth) tokens() model.Tokens {
	return model.Tokens{AccessToken: goodToken, RefreshToken: "refresh", ExpiresAt: time.Now().Add(time.Minute)}
}

func (f *fakeAuth) SignUp(_ context.Context, in service.SignUpInput) (*model.Profile, error) {
	if in.InviteCode != "GOODCODE" {
		return nil, errs.ErrInvalidOrExpiredCode
	}
	return &model.Profile{ID: f.id.ID, Email: in.Email, InviteCode: in.InviteCode, InvitesRemaining: 5}, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, password, ip string) (model.Tokens, model.Identity, error) {
	f.mu.Lock()
	f.lastIP = ip
	f.mu.Unlock()
	if email != f.id.Email || password != "secret1" {
		return model.Tokens{}, model.Identity{}, errs.ErrInvalidCredentials
	}
	return f.tokens(), f.id, nil
}

func (f *fakeAuth) Refresh(_ context.Context, rt string) (model.Tokens, model.Identity, error) {
	if rt != "refresh" {
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
	if tok != goodToken {
		return service.Principal{}, errs.ErrUnauthorized
	}
	return service.Principal{Identity: f.id, SessionID: f.sessionID}, nil
}

func (f *fakeAuth) Profile(_ context.Context, userID uuid.UUID) (*model.Profile, error) {
	return &model.Profile{ID: userID, Email: f.id.Email, InvitesRemaining: 3}, nil
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

type fakeInvites struct{ left int }

func (f *fakeInvites) Validate(_ context.Context, code string) model.InviteValidation {
	if code == "GOODCODE" {
		return model.InviteValidation{Valid: true, Message: service.MsgInviteValid}
	}
	return model.InviteValidation{Message: service.MsgInviteInvalid}
}

func (f *fakeInvites) Create(_ context.Context, creatorID uuid.UUID) (*model.Invite, error) {
	if f.left <= 0 {
		return nil, errs.ErrNoInvitesRemaining
	}
	f.left--
	return &model.Invite{ID: uuid.Must(uuid.NewV4()), Code: "NEWCODE1", CreatedBy: &creatorID,
		Status: model.InvitePending, ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}, nil
}

func (f *fakeInvites) List(context.Context, uuid.UUID) ([]model.Invite, error) {
	return []model.Invite{}, nil
}

func (f *fakeInvites) Revoke(context.Context, uuid.UUID, uuid.UUID) (*model.Invite, error) {
	return nil, errs.ErrInviteNotPending
}

func (f *fakeInvites) Bootstrap(context.Context, string) (*model.Invite, bool, error) {
	return nil, false, nil
}

// fakeStorage serves both location and box calls for a single user.
type fakeStorage struct {
	mu        sync.Mutex
	locations map[uuid.UUID]*model.Location
	boxes     map[uuid.UUID]*model.Box
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{locations: map[uuid.UUID]*model.Location{}, boxes: map[uuid.UUID]*model.Box{}}
}

type fakeLocations struct{ *fakeStorage }

func (f fakeLocations) List(_ context.Context, userID uuid.UUID) ([]model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Location{}
	for _, l := range f.locations {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f fakeLocations) Create(_ context.Context, userID uuid.UUID, name, desc string) (*model.Location, error) {
	if name == "" {
		return nil, errs.Invalid("name", "required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &model.Location{ID: uuid.Must(uuid.NewV4()), UserID: userID, Name: name, Description: desc, CreatedAt: time.Now()}
	f.locations[l.ID] = l
	return l, nil
}

func (f fakeLocations) Update(_ context.Context, userID, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.locations[id]
	if !ok || l.UserID != userID {
		return nil, errs.ErrNotFound
	}
	if upd.Name != nil {
		l.Name = *upd.Name
	}
	return l, nil
}

func (f fakeLocations) count(id uuid.UUID) int {
	n := 0
	for _, b := range f.boxes {
		if b.LocationID == id {
			n++
		}
	}
	return n
}

func (f fakeLocations) Delete(_ context.Context, userID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count(id) > 0 {
		return errs.ErrHasDependents
	}
	delete(f.locations, id)
	return nil
}

func (f fakeLocations) BoxCount(_ context.Context, _, id uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count(id), nil
}

type fakeBoxes struct{ *fakeStorage }

func (f fakeBoxes) List(_ context.Context, userID uuid.UUID) ([]model.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Box{}
	for _, b := range f.boxes {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f fakeBoxes) Get(_ context.Context, userID, id uuid.UUID) (*model.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boxes[id]
	if !ok || b.UserID != userID {
		return nil, errs.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f fakeBoxes) Create(_ context.Context, userID uuid.UUID, in service.NewBox) (*model.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.locations[in.LocationID]; !ok || l.UserID != userID {
		return nil, errs.Invalid("location_id", "unknown location")
	}
	id := uuid.Must(uuid.NewV4())
	b := &model.Box{ID: id, UserID: userID, LocationID: in.LocationID, Name: in.Name,
		QRCode: qrcode.Encode(id), Contents: model.NormalizeContents(in.Contents)}
	f.boxes[id] = b
	cp := *b
	return &cp, nil
}

func (f fakeBoxes) Update(_ context.Context, userID, id uuid.UUID, upd model.BoxUpdate) (*model.Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boxes[id]
	if !ok || b.UserID != userID {
		return nil, errs.ErrNotFound
	}
	b.Contents = model.NormalizeContents(upd.Contents)
	cp := *b
	return &cp, nil
}

func (f fakeBoxes) FindByCode(ctx context.Context, userID uuid.UUID, payload string) (*model.Box, error) {
	id, ok := qrcode.Parse(payload)
	if !ok {
		return nil, errs.ErrNotFound
	}
	return f.Get(ctx, userID, id)
}

func (f fakeBoxes) Search(ctx context.Context, userID uuid.UUID, query string, _ *uuid.UUID) ([]model.Box, error) {
	all, _ := f.List(ctx, userID)
	out := []model.Box{}
	for i := range all {
		if model.MatchBox(&all[i], query) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (f fakeBoxes) Delete(_ context.Context, _, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.boxes, id)
	return nil
}

const bufSize = 1 << 20

type fixture struct {
	auth    *fakeAuth
	invites *fakeInvites
	store   *fakeStorage
	client  *rpc.Client
}

// startBufGRPC serves a Server with the production interceptor chain over bufconn.
func startBufGRPC(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{auth: newFakeAuth(), invites: &fakeInvites{left: 1}, store: newFakeStorage()}
	log := zaptest.NewLogger(t)
	srv := New(fx.auth, fx.invites, fakeLocations{fx.store}, fakeBoxes{fx.store}, log)

	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoverUnary(log), LoggingUnary(log), AuthUnary(fx.auth),
	))
	rpc.RegisterServer(gs, srv)
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	fx.client = rpc.NewClient(cc)
	return fx
}
