package service

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// memDB is an in-memory stand-in for the Postgres schema. Every method takes the
// mutex for its whole body, which mirrors the row locks of the real transactions.
type memDB struct {
	mu        sync.Mutex
	users     map[uuid.UUID]*model.User
	profiles  map[uuid.UUID]*model.Profile
	invites   map[uuid.UUID]*model.Invite
	sessions  map[uuid.UUID]*model.Session
	recovery  map[string]*model.RecoveryToken
	locations map[uuid.UUID]*model.Location
	boxes     map[uuid.UUID]*model.Box

	failWith error
}

func newMemDB() *memDB {
	return &memDB{
		users:     map[uuid.UUID]*model.User{},
		profiles:  map[uuid.UUID]*model.Profile{},
		invites:   map[uuid.UUID]*model.Invite{},
		sessions:  map[uuid.UUID]*model.Session{},
		recovery:  map[string]*model.RecoveryToken{},
		locations: map[uuid.UUID]*model.Location{},
		boxes:     map[uuid.UUID]*model.Box{},
	}
}

type (
	memUsers     struct{ *memDB }
	memInvites   struct{ *memDB }
	memSessions  struct{ *memDB }
	memLocations struct{ *memDB }
	memBoxes     struct{ *memDB }
)

var (
	_ repository.UserRepository     = memUsers{}
	_ repository.InviteRepository   = memInvites{}
	_ repository.SessionRepository  = memSessions{}
	_ repository.LocationRepository = memLocations{}
	_ repository.BoxRepository      = memBoxes{}
)

// addProfile inserts a ready user+profile pair and returns its id.
func (db *memDB) addProfile(email string, remaining int) uuid.UUID {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := uuid.Must(uuid.NewV4())
	db.users[id] = &model.User{ID: id, Email: email}
	db.profiles[id] = &model.Profile{ID: id, Email: email, InvitesRemaining: remaining}
	return id
}

func (db *memDB) addInvite(code string, creator *uuid.UUID, status model.InviteStatus, expiresAt time.Time) *model.Invite {
	db.mu.Lock()
	defer db.mu.Unlock()
	inv := &model.Invite{
		ID: uuid.Must(uuid.NewV4()), Code: code, CreatedBy: creator,
		Status: status, ExpiresAt: expiresAt, CreatedAt: time.Now(),
	}
	db.invites[inv.ID] = inv
	return inv
}

func (db *memDB) remaining(id uuid.UUID) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.profiles[id].InvitesRemaining
}

func (db *memDB) inviteByCode(code string) *model.Invite {
	for _, inv := range db.invites {
		if inv.Code == code {
			return inv
		}
	}
	return nil
}

/************ users ************/

func (r memUsers) CreateWithInvite(_ context.Context, u *model.User, p *model.Profile, code string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	inv := r.inviteByCode(code)
	if inv == nil || inv.Status != model.InvitePending || inv.ExpiresAt.Before(now) {
		return errs.ErrInvalidOrExpiredCode
	}
	for _, other := range r.users {
		if other.Email == u.Email {
			return errs.ErrAlreadyExists
		}
	}
	cu := *u
	r.users[u.ID] = &cu
	p.ID, p.Email, p.InviteCode, p.InvitedBy = u.ID, u.Email, code, inv.CreatedBy
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.profiles[u.ID] = &cp
	inv.Status, inv.UsedBy, inv.UsedAt = model.InviteUsed, &cu.ID, &now
	return nil
}

func (r memUsers) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	u, ok := r.users[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r memUsers) SetPassword(_ context.Context, id uuid.UUID, hash, salt []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return errs.ErrNotFound
	}
	u.PwdHash, u.Salt = hash, salt
	return nil
}

func (r memUsers) GetProfile(_ context.Context, id uuid.UUID) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	p, ok := r.profiles[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r memUsers) UpdateProfile(_ context.Context, id uuid.UUID, upd model.ProfileUpdate, now time.Time) (*model.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	p.UpdatedAt = now
	c := *p
	return &c, nil
}

func (r memUsers) CountProfiles(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.profiles)), r.failWith
}

/************ invites ************/

func (r memInvites) Lookup(_ context.Context, code string) (*model.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	inv := r.inviteByCode(code)
	if inv == nil {
		return nil, errs.ErrNotFound
	}
	c := *inv
	return &c, nil
}

func (r memInvites) CreateForProfile(_ context.Context, inv *model.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	p, ok := r.profiles[*inv.CreatedBy]
	if !ok || p.InvitesRemaining <= 0 {
		return errs.ErrNoInvitesRemaining
	}
	if r.inviteByCode(inv.Code) != nil {
		return errs.ErrAlreadyExists
	}
	p.InvitesRemaining--
	c := *inv
	r.invites[inv.ID] = &c
	return nil
}

func (r memInvites) CreateSystem(_ context.Context, inv *model.Invite) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inviteByCode(inv.Code) != nil {
		return errs.ErrAlreadyExists
	}
	c := *inv
	r.invites[inv.ID] = &c
	return nil
}

func (r memInvites) ListByCreator(_ context.Context, creatorID uuid.UUID) ([]model.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []model.Invite
	for _, inv := range r.invites {
		if inv.CreatedBy != nil && *inv.CreatedBy == creatorID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r memInvites) Revoke(_ context.Context, creatorID, inviteID uuid.UUID, now time.Time) (*model.Invite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[inviteID]
	if !ok || inv.CreatedBy == nil || *inv.CreatedBy != creatorID {
		return nil, errs.ErrNotFound
	}
	if !model.InviteUsable(inv.Status, inv.ExpiresAt, now) {
		return nil, errs.ErrInviteNotPending
	}
	inv.Status = model.InviteRevoked
	c := *inv
	return &c, nil
}

/************ sessions ************/

func (r memSessions) Create(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	c := *s
	r.sessions[s.ID] = &c
	return nil
}

func (r memSessions) Get(_ context.Context, id uuid.UUID) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r memSessions) GetByRefreshHash(_ context.Context, hash []byte) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if bytes.Equal(s.RefreshHash, hash) {
			c := *s
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r memSessions) Rotate(_ context.Context, id uuid.UUID, oldHash, newHash []byte, expiresAt, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !bytes.Equal(s.RefreshHash, oldHash) || !s.Active(now) {
		return errs.ErrUnauthorized
	}
	s.RefreshHash, s.ExpiresAt = newHash, expiresAt
	return nil
}

func (r memSessions) Revoke(_ context.Context, id uuid.UUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &now
	}
	return nil
}

func (r memSessions) CreateRecovery(_ context.Context, t *model.RecoveryToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.recovery[string(t.TokenHash)] = &c
	return nil
}

func (r memSessions) ResetPassword(_ context.Context, tokenHash, pwdHash, salt []byte, now time.Time) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.recovery[string(tokenHash)]
	if !ok || !now.Before(t.ExpiresAt) {
		return uuid.Nil, errs.ErrInvalidRecoveryToken
	}
	delete(r.recovery, string(tokenHash))
	u := r.users[t.UserID]
	u.PwdHash, u.Salt = pwdHash, salt
	for _, s := range r.sessions {
		if s.UserID == t.UserID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return t.UserID, nil
}

/************ locations ************/

func (r memLocations) List(_ context.Context, userID uuid.UUID) ([]model.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []model.Location
	for _, l := range r.locations {
		if l.UserID == userID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r memLocations) Get(_ context.Context, userID, id uuid.UUID) (*model.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	l, ok := r.locations[id]
	if !ok || l.UserID != userID {
		return nil, errs.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (r memLocations) Create(_ context.Context, l *model.Location) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	c := *l
	r.locations[l.ID] = &c
	return nil
}

func (r memLocations) Update(_ context.Context, userID, id uuid.UUID, upd model.LocationUpdate) (*model.Location, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locations[id]
	if !ok || l.UserID != userID {
		return nil, errs.ErrNotFound
	}
	if upd.Name != nil {
		l.Name = *upd.Name
	}
	if upd.Description != nil {
		l.Description = *upd.Description
	}
	c := *l
	return &c, nil
}

func (r memLocations) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locations[id]
	if !ok || l.UserID != userID {
		return errs.ErrNotFound
	}
	for _, b := range r.boxes {
		if b.LocationID == id {
			return errs.ErrHasDependents
		}
	}
	delete(r.locations, id)
	return nil
}

func (r memLocations) CountBoxes(_ context.Context, userID, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	n := 0
	for _, b := range r.boxes {
		if b.LocationID == id && b.UserID == userID {
			n++
		}
	}
	return n, nil
}

/************ boxes ************/

func copyBox(b *model.Box) *model.Box {
	c := *b
	c.Contents = append([]string(nil), b.Contents...)
	return &c
}

func (r memBoxes) List(_ context.Context, userID uuid.UUID) ([]model.Box, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	var out []model.Box
	for _, b := range r.boxes {
		if b.UserID == userID {
			out = append(out, *copyBox(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r memBoxes) Get(_ context.Context, userID, id uuid.UUID) (*model.Box, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	b, ok := r.boxes[id]
	if !ok || b.UserID != userID {
		return nil, errs.ErrNotFound
	}
	return copyBox(b), nil
}

func (r memBoxes) FindByQRCode(_ context.Context, userID uuid.UUID, code string) (*model.Box, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.boxes {
		if b.QRCode == code && b.UserID == userID {
			return copyBox(b), nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r memBoxes) Save(_ context.Context, b *model.Box) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	if cur, ok := r.boxes[b.ID]; ok && cur.UserID != b.UserID {
		return errs.ErrNotFound
	}
	r.boxes[b.ID] = copyBox(b)
	return nil
}

func (r memBoxes) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.boxes[id]
	if !ok || b.UserID != userID {
		return errs.ErrNotFound
	}
	delete(r.boxes, id)
	return nil
}
