// Package session holds the client-side view of who is signed in.
//
// A Store is fed by an initial identity check and by the backend's auth events, which
// are consumed on a single goroutine in emission order. Every identity change bumps a
// generation counter; profile fetches started under an older generation are discarded.
package session

import (
	"context"
	"slices"
	"sync"

	"github.com/and161185/binqr/internal/model"
	"go.uber.org/zap"
)

// State is the authentication state of a Store.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// SignOutPolicy decides whether local state is cleared when the backend sign-out fails.
type SignOutPolicy int

const (
	// ClearAlways clears identity and profile even if the backend call fails.
	ClearAlways SignOutPolicy = iota
	// ClearOnSuccess keeps local state when the backend call fails.
	ClearOnSuccess
)

// Backend is the auth surface the Store depends on.
type Backend interface {
	// CurrentIdentity returns nil without error when nobody is signed in.
	CurrentIdentity(ctx context.Context) (*model.Identity, error)
	Profile(ctx context.Context) (*model.Profile, error)
	SignOut(ctx context.Context) error
	// Events subscribes to auth events; the returned func unsubscribes and closes the channel.
	Events() (<-chan model.AuthEvent, func())
}

// Forgetter is implemented by backends that keep credentials locally. Under ClearAlways
// the Store calls Forget when the backend sign-out fails, so local state and stored
// credentials agree.
type Forgetter interface {
	Forget() error
}

// Handler receives the new identity, or nil after a sign-out.
type Handler func(*model.Identity)

// Snapshot is a consistent copy of the Store state.
type Snapshot struct {
	State    State
	Identity *model.Identity
	Profile  *model.Profile
}

// Loading reports whether the initial identity check is outstanding.
func (s Snapshot) Loading() bool { return s.State == Authenticating }

// Authenticated reports whether an identity is set.
func (s Snapshot) Authenticated() bool { return s.State == Authenticated }

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

func WithSignOutPolicy(p SignOutPolicy) Option { return func(s *Store) { s.policy = p } }

// Store is the single source of truth for the signed-in identity and its profile.
type Store struct {
	backend Backend
	log     *zap.Logger
	policy  SignOutPolicy

	mu       sync.Mutex
	state    State
	identity *model.Identity
	profile  *model.Profile
	gen      uint64
	started  bool
	closed   bool
	handlers map[int]Handler
	nextID   int

	unsubscribe func()
	loopDone    chan struct{}
	fetches     sync.WaitGroup
}

// New builds an anonymous Store over backend.
func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		log:      zap.NewNop(),
		policy:   ClearAlways,
		handlers: map[int]Handler{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start subscribes to auth events and performs the initial identity check.
// It is a no-op after the first call.
func (s *Store) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.state = Authenticating
	gen := s.gen
	events, unsubscribe := s.backend.Events()
	s.unsubscribe = unsubscribe
	s.loopDone = make(chan struct{})
	s.mu.Unlock()

	go s.loop(events)

	id := s.GetCurrentIdentity(ctx)

	s.mu.Lock()
	if s.closed || s.gen != gen {
		// an auth event already decided the state
		s.mu.Unlock()
		return
	}
	s.setIdentityLocked(id)
	s.mu.Unlock()

	if id != nil {
		s.RefreshProfile(ctx)
	}
}

func (s *Store) loop(events <-chan model.AuthEvent) {
	defer close(s.loopDone)
	for ev := range events {
		id := ev.Identity
		if ev.Type == model.AuthSignedOut {
			id = nil
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		s.setIdentityLocked(id)
		gen := s.gen
		handlers := s.handlersLocked()
		s.mu.Unlock()

		s.log.Debug("auth event", zap.Stringer("type", ev.Type))
		for _, h := range handlers {
			h(id)
		}
		if id != nil {
			s.fetchProfile(gen)
		}
	}
}

// setIdentityLocked replaces the identity and starts a new generation.
func (s *Store) setIdentityLocked(id *model.Identity) {
	s.gen++
	if id == nil {
		s.state, s.identity, s.profile = Anonymous, nil, nil
		return
	}
	cp := *id
	if s.profile != nil && s.profile.ID != cp.ID {
		s.profile = nil
	}
	s.state, s.identity = Authenticated, &cp
}

func (s *Store) handlersLocked() []Handler {
	ids := make([]int, 0, len(s.handlers))
	for id := range s.handlers {
		ids = append(ids, id)
	}
	slices.Sort(ids) // registration order
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.handlers[id])
	}
	return out
}

func (s *Store) fetchProfile(gen uint64) {
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		s.refreshProfile(context.Background(), gen)
	}()
}

// GetCurrentIdentity asks the backend for the live identity. Failures are logged and
// read as nil.
func (s *Store) GetCurrentIdentity(ctx context.Context) *model.Identity {
	id, err := s.backend.CurrentIdentity(ctx)
	if err != nil {
		s.log.Warn("current identity", zap.Error(err))
		return nil
	}
	return id
}

// Subscribe registers h for identity changes and returns a func that removes it.
func (s *Store) Subscribe(h Handler) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = h
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.handlers, id)
		s.mu.Unlock()
	}
}

// RefreshProfile re-fetches the profile of the current identity. It does nothing
// without an identity and keeps the previous profile when the fetch fails.
func (s *Store) RefreshProfile(ctx context.Context) {
	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()
	s.refreshProfile(ctx, gen)
}

func (s *Store) refreshProfile(ctx context.Context, gen uint64) {
	s.mu.Lock()
	if s.identity == nil || s.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	want := s.identity.ID
	s.mu.Unlock()

	p, err := s.backend.Profile(ctx)
	if err != nil {
		s.log.Warn("refresh profile", zap.String("user", want.String()), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen || p == nil || p.ID != want {
		return
	}
	cp := *p
	s.profile = &cp
}

// SignOut invalidates the backend session and clears local state according to the policy.
func (s *Store) SignOut(ctx context.Context) error {
	err := s.backend.SignOut(ctx)
	if err != nil {
		s.log.Warn("sign out", zap.Error(err))
		if s.policy == ClearOnSuccess {
			return err
		}
		if f, ok := s.backend.(Forgetter); ok {
			if ferr := f.Forget(); ferr != nil {
				s.log.Warn("forget local session", zap.Error(ferr))
			}
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return err
	}
	s.setIdentityLocked(nil)
	handlers := s.handlersLocked()
	s.mu.Unlock()

	if err != nil {
		// no auth event follows a failed backend sign-out
		for _, h := range handlers {
			h(nil)
		}
	}
	return err
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{State: s.state}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

// Close stops event processing. Results arriving afterwards are discarded.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe, done := s.unsubscribe, s.loopDone
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
		<-done
	}
	s.fetches.Wait()
}
