// Package client talks to the BinQR gRPC API on behalf of a single signed-in user.
// It persists tokens, refreshes them transparently and broadcasts auth events.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/and161185/binqr/internal/convert"
	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/rpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// refreshSkew refreshes access tokens slightly before they expire.
const refreshSkew = 30 * time.Second

// eventBuffer is the per-subscriber queue length.
const eventBuffer = 64

// Client is a session-aware API client.
type Client struct {
	rpc   *rpc.Client
	store TokenStore
	log   *zap.Logger
	now   func() time.Time

	refreshMu sync.Mutex // serialises refresh token redemption

	subMu  sync.Mutex
	subs   map[int]chan model.AuthEvent
	nextID int
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// New builds a client over cc. A nil store keeps the session in memory.
func New(cc grpc.ClientConnInterface, store TokenStore, opts ...Option) *Client {
	if store == nil {
		store = &MemoryStore{}
	}
	c := &Client{
		rpc:   rpc.NewClient(cc),
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
		subs:  map[int]chan model.AuthEvent{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Events subscribes to auth events. Events are delivered in emission order;
// the returned func unsubscribes and closes the channel.
func (c *Client) Events() (<-chan model.AuthEvent, func()) {
	ch := make(chan model.AuthEvent, eventBuffer)
	c.subMu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
			close(ch)
		})
	}
}

// emit never blocks. A subscriber with a full queue loses its oldest events so the
// newest one is always delivered; emit is the only sender, so a freed slot stays free.
func (c *Client) emit(ev model.AuthEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		for sent := false; !sent; {
			select {
			case ch <- ev:
				sent = true
			default:
				select {
				case old := <-ch:
					c.log.Warn("auth event coalesced", zap.Int("subscriber", id), zap.Stringer("type", old.Type))
				default:
				}
			}
		}
	}
}

func (c *Client) persist(tok model.Tokens, id model.Identity) error {
	return c.store.Save(Stored{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.ExpiresAt,
		Identity:     id,
	})
}

// dropSession forgets local tokens after the server rejected them.
func (c *Client) dropSession() {
	if err := c.store.Clear(); err != nil {
		c.log.Warn("clear session", zap.Error(err))
	}
	c.emit(model.AuthEvent{Type: model.AuthSignedOut})
}

// refresh redeems the stored refresh token unless another caller already replaced
// the access token seen by the caller.
func (c *Client) refresh(ctx context.Context, seen string) (*Stored, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	st, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errs.ErrUnauthorized
	}
	if st.AccessToken != seen && c.now().Add(refreshSkew).Before(st.ExpiresAt) {
		return st, nil
	}

	out, err := c.rpc.Call(ctx, rpc.MethodRefresh, convert.Fields{}.Str("refresh_token", st.RefreshToken).Struct())
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			c.dropSession()
		}
		return nil, err
	}
	tok, id, err := convert.ToSession(out)
	if err != nil {
		return nil, err
	}
	if err := c.persist(tok, id); err != nil {
		return nil, err
	}
	c.emit(model.AuthEvent{Type: model.AuthTokenRefreshed, Identity: &id})
	return c.store.Load()
}

// call invokes an authenticated method, refreshing the access token when it is
// about to expire or the server rejects it.
func (c *Client) call(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	st, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errs.ErrUnauthorized
	}
	if !c.now().Add(refreshSkew).Before(st.ExpiresAt) {
		if st, err = c.refresh(ctx, st.AccessToken); err != nil {
			return nil, err
		}
	}

	out, err := c.rpc.Call(withBearer(ctx, st.AccessToken), method, req)
	if !errors.Is(err, errs.ErrUnauthorized) {
		return out, err
	}
	if st, err = c.refresh(ctx, st.AccessToken); err != nil {
		return nil, err
	}
	out, err = c.rpc.Call(withBearer(ctx, st.AccessToken), method, req)
	if errors.Is(err, errs.ErrUnauthorized) {
		c.dropSession()
	}
	return out, err
}

func withBearer(ctx context.Context, tok string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
}

// SignedIn reports whether a session is stored locally.
func (c *Client) SignedIn() bool {
	st, err := c.store.Load()
	return err == nil && st != nil
}

// --- auth ---

// SignUp creates the account and stores the session opened for it.
func (c *Client) SignUp(ctx context.Context, email, password, confirm, fullName, inviteCode string) (*model.Profile, error) {
	req := convert.Fields{}.
		Str("email", email).
		Str("password", password).
		Str("confirm", confirm).
		Str("full_name", fullName).
		Str("invite_code", inviteCode).
		Struct()
	out, err := c.rpc.Call(ctx, rpc.MethodSignUp, req)
	if err != nil {
		return nil, err
	}
	r := convert.Read(out)
	p, err := convert.ToProfile(r.Sub("profile"))
	if err != nil {
		return nil, err
	}
	if r.Has("tokens") {
		tok, id, err := convert.ToSession(out)
		if err != nil {
			return nil, err
		}
		if err := c.persist(tok, id); err != nil {
			return nil, err
		}
		c.emit(model.AuthEvent{Type: model.AuthSignedIn, Identity: &id})
	}
	return p, nil
}

// SignIn opens a session and stores its tokens.
func (c *Client) SignIn(ctx context.Context, email, password string) (model.Identity, error) {
	out, err := c.rpc.Call(ctx, rpc.MethodSignIn, convert.Fields{}.Str("email", email).Str("password", password).Struct())
	if err != nil {
		return model.Identity{}, err
	}
	tok, id, err := convert.ToSession(out)
	if err != nil {
		return model.Identity{}, err
	}
	if err := c.persist(tok, id); err != nil {
		return model.Identity{}, err
	}
	c.emit(model.AuthEvent{Type: model.AuthSignedIn, Identity: &id})
	return id, nil
}

// SignOut revokes the session on the server. Local tokens are dropped when the server
// confirms or already considers the session dead; other failures leave them in place.
func (c *Client) SignOut(ctx context.Context) error {
	st, err := c.store.Load()
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	_, err = c.rpc.Call(withBearer(ctx, st.AccessToken), rpc.MethodSignOut, nil)
	if err != nil && !errors.Is(err, errs.ErrUnauthorized) {
		return err
	}
	c.dropSession()
	return nil
}

// Forget drops the stored tokens without contacting the server.
func (c *Client) Forget() error { return c.store.Clear() }

// CurrentIdentity asks the server who the stored session belongs to. It returns nil
// without error when there is no live session.
func (c *Client) CurrentIdentity(ctx context.Context) (*model.Identity, error) {
	if !c.SignedIn() {
		return nil, nil
	}
	out, err := c.call(ctx, rpc.MethodGetIdentity, nil)
	if errors.Is(err, errs.ErrUnauthorized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := convert.ToIdentity(out)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (c *Client) Profile(ctx context.Context) (*model.Profile, error) {
	out, err := c.call(ctx, rpc.MethodGetProfile, nil)
	if err != nil {
		return nil, err
	}
	return convert.ToProfile(out)
}

func (c *Client) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.Profile, error) {
	out, err := c.call(ctx, rpc.MethodUpdateProfile, convert.ProfileUpdate(upd))
	if err != nil {
		return nil, err
	}
	return convert.ToProfile(out)
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	_, err := c.rpc.Call(ctx, rpc.MethodRequestPasswordReset, convert.Fields{}.Str("email", email).Struct())
	return err
}

func (c *Client) ResetPassword(ctx context.Context, token, password, confirm string) error {
	req := convert.Fields{}.Str("token", token).Str("password", password).Str("confirm", confirm).Struct()
	_, err := c.rpc.Call(ctx, rpc.MethodResetPassword, req)
	return err
}

func (c *Client) UpdatePassword(ctx context.Context, password, confirm string) error {
	_, err := c.call(ctx, rpc.MethodUpdatePassword, convert.Fields{}.Str("password", password).Str("confirm", confirm).Struct())
	return err
}
