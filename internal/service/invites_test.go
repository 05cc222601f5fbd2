package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newInviteFixture(t *testing.T, opts ...Option) (*memDB, *InviteServiceImpl) {
	t.Helper()
	db := newMemDB()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return db, NewInviteService(memInvites{db}, memUsers{db}, opts...)
}

func TestInvite_Validate(t *testing.T) {
	t.Parallel()
	db, s := newInviteFixture(t)
	ctx := context.Background()
	future, past := time.Now().Add(time.Hour), time.Now().Add(-time.Hour)

	db.addInvite("PENDING2", nil, model.InvitePending, future)
	db.addInvite("USEDCODE", nil, model.InviteUsed, future)
	db.addInvite("REVOKED2", nil, model.InviteRevoked, future)
	db.addInvite("EXPIRED2", nil, model.InvitePending, past)

	require.Equal(t, model.InviteValidation{Valid: true, Message: MsgInviteValid}, s.Validate(ctx, " PENDING2 "))
	for _, code := range []string{"USEDCODE", "REVOKED2", "EXPIRED2", "UNKNOWN2", ""} {
		v := s.Validate(ctx, code)
		require.False(t, v.Valid, code)
		require.Equal(t, MsgInviteInvalid, v.Message, code)
	}

	db.failWith = errors.New("db down")
	require.Equal(t, model.InviteValidation{Valid: false, Message: MsgInviteError}, s.Validate(ctx, "PENDING2"))
}

func TestInvite_CreateSpendsAllowance(t *testing.T) {
	t.Parallel()
	db, s := newInviteFixture(t)
	ctx := context.Background()
	creator := db.addProfile("c@example.com", 1)

	inv, err := s.Create(ctx, creator)
	require.NoError(t, err)
	require.Len(t, inv.Code, InviteCodeLength)
	require.Equal(t, model.InvitePending, inv.Status)
	require.Equal(t, creator, *inv.CreatedBy)
	require.WithinDuration(t, time.Now().Add(DefaultInviteTTL), inv.ExpiresAt, time.Minute)
	require.Equal(t, 0, db.remaining(creator))

	_, err = s.Create(ctx, creator)
	require.ErrorIs(t, err, errs.ErrNoInvitesRemaining)
	require.Equal(t, 0, db.remaining(creator))
}

func TestInvite_CreateConcurrentNeverOverspends(t *testing.T) {
	t.Parallel()
	db, s := newInviteFixture(t)
	creator := db.addProfile("c@example.com", 3)

	const callers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(context.Background(), creator)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, errs.ErrNoInvitesRemaining) {
				fail++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 3, ok)
	require.Equal(t, callers-3, fail)
	require.Equal(t, 0, db.remaining(creator))
	list, err := s.List(context.Background(), creator)
	require.NoError(t, err)
	require.Len(t, list, 3)
}

// collidingInvites reports a code collision for the first n inserts.
type collidingInvites struct {
	memInvites
	n int
}

func (c *collidingInvites) CreateForProfile(ctx context.Context, inv *model.Invite) error {
	if c.n > 0 {
		c.n--
		return errs.ErrAlreadyExists
	}
	return c.memInvites.CreateForProfile(ctx, inv)
}

func TestInvite_CreateRetriesOnCollision(t *testing.T) {
	t.Parallel()
	db := newMemDB()
	creator := db.addProfile("c@example.com", 5)

	s := NewInviteService(&collidingInvites{memInvites: memInvites{db}, n: 2}, memUsers{db})
	_, err := s.Create(context.Background(), creator)
	require.NoError(t, err)
	require.Equal(t, 4, db.remaining(creator))

	s = NewInviteService(&collidingInvites{memInvites: memInvites{db}, n: codeAttempts}, memUsers{db})
	_, err = s.Create(context.Background(), creator)
	require.Equal(t, errs.KindPersistence, errs.KindOf(err))
	require.Equal(t, 4, db.remaining(creator))
}

func TestInvite_Revoke(t *testing.T) {
	t.Parallel()
	db, s := newInviteFixture(t)
	ctx := context.Background()
	creator := db.addProfile("c@example.com", 5)
	stranger := db.addProfile("s@example.com", 5)

	inv, err := s.Create(ctx, creator)
	require.NoError(t, err)

	_, err = s.Revoke(ctx, stranger, inv.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)

	got, err := s.Revoke(ctx, creator, inv.ID)
	require.NoError(t, err)
	require.Equal(t, model.InviteRevoked, got.Status)

	_, err = s.Revoke(ctx, creator, inv.ID)
	require.ErrorIs(t, err, errs.ErrInviteNotPending)
	require.Equal(t, MsgInviteInvalid, s.Validate(ctx, inv.Code).Message)

	used := db.addInvite("USEDCODE", &creator, model.InviteUsed, time.Now().Add(time.Hour))
	_, err = s.Revoke(ctx, creator, used.ID)
	require.ErrorIs(t, err, errs.ErrInviteNotPending)

	expired := db.addInvite("EXPIRED2", &creator, model.InvitePending, time.Now().Add(-time.Hour))
	_, err = s.Revoke(ctx, creator, expired.ID)
	require.ErrorIs(t, err, errs.ErrInviteNotPending)

	// revoking gives nothing back
	require.Equal(t, 4, db.remaining(creator))
}

func TestInvite_ListDerivesExpiry(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db, s := newInviteFixture(t, WithClock(func() time.Time { return now }))
	creator := db.addProfile("c@example.com", 5)

	db.addInvite("EXPIRED2", &creator, model.InvitePending, now.Add(-time.Second))
	db.addInvite("PENDING2", &creator, model.InvitePending, now.Add(time.Second))
	db.addInvite("USEDCODE", &creator, model.InviteUsed, now.Add(-time.Hour))

	list, err := s.List(context.Background(), creator)
	require.NoError(t, err)
	got := map[string]model.InviteStatus{}
	for _, inv := range list {
		got[inv.Code] = inv.Status
	}
	require.Equal(t, map[string]model.InviteStatus{
		"EXPIRED2": model.InviteExpired,
		"PENDING2": model.InvitePending,
		"USEDCODE": model.InviteUsed,
	}, got)

	_, err = s.List(context.Background(), uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
}

func TestInvite_Bootstrap(t *testing.T) {
	t.Parallel()
	db, s := newInviteFixture(t)
	ctx := context.Background()

	inv, seeded, err := s.Bootstrap(ctx, "FIRST234")
	require.NoError(t, err)
	require.True(t, seeded)
	require.Nil(t, inv.CreatedBy)
	require.True(t, s.Validate(ctx, "FIRST234").Valid)

	// restart with the same code is a no-op
	_, seeded, err = s.Bootstrap(ctx, "FIRST234")
	require.NoError(t, err)
	require.False(t, seeded)

	db.addProfile("a@example.com", 5)
	_, seeded, err = s.Bootstrap(ctx, "")
	require.NoError(t, err)
	require.False(t, seeded)
}
