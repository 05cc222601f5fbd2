package convert

import (
	"fmt"

	"github.com/and161185/binqr/internal/model"
	"google.golang.org/protobuf/types/known/structpb"
)

// Identity -> wire.
func Identity(id model.Identity) *structpb.Struct {
	return Fields{}.UUID("id", id.ID).Str("email", id.Email).Map("metadata", id.Metadata).Struct()
}

// ToIdentity converts a wire identity.
func ToIdentity(s *structpb.Struct) (model.Identity, error) {
	r := Read(s)
	id := model.Identity{ID: r.UUID("id"), Email: r.Str("email"), Metadata: r.Map("metadata")}
	return id, r.Err()
}

// Tokens -> wire.
func Tokens(t model.Tokens) *structpb.Struct {
	return Fields{}.
		Str("access_token", t.AccessToken).
		Str("refresh_token", t.RefreshToken).
		Time("expires_at", t.ExpiresAt).
		Struct()
}

func ToTokens(s *structpb.Struct) (model.Tokens, error) {
	r := Read(s)
	t := model.Tokens{
		AccessToken:  r.Str("access_token"),
		RefreshToken: r.Str("refresh_token"),
		ExpiresAt:    r.Time("expires_at"),
	}
	return t, r.Err()
}

// Session carries a token pair together with the identity it was issued for.
func Session(t model.Tokens, id model.Identity) *structpb.Struct {
	return Fields{}.Obj("tokens", Tokens(t)).Obj("identity", Identity(id)).Struct()
}

func ToSession(s *structpb.Struct) (model.Tokens, model.Identity, error) {
	r := Read(s)
	t, err := ToTokens(r.Sub("tokens"))
	if err != nil {
		return model.Tokens{}, model.Identity{}, err
	}
	id, err := ToIdentity(r.Sub("identity"))
	if err != nil {
		return model.Tokens{}, model.Identity{}, err
	}
	return t, id, r.Err()
}

// Profile -> wire.
func Profile(p *model.Profile) *structpb.Struct {
	return Fields{}.
		UUID("id", p.ID).
		Str("email", p.Email).
		Str("full_name", p.FullName).
		Str("avatar_url", p.AvatarURL).
		Str("invite_code", p.InviteCode).
		OptUUID("invited_by", p.InvitedBy).
		Int("invites_remaining", p.InvitesRemaining).
		Time("created_at", p.CreatedAt).
		Time("updated_at", p.UpdatedAt).
		Struct()
}

func ToProfile(s *structpb.Struct) (*model.Profile, error) {
	r := Read(s)
	p := &model.Profile{
		ID:               r.UUID("id"),
		Email:            r.Str("email"),
		FullName:         r.Str("full_name"),
		AvatarURL:        r.Str("avatar_url"),
		InviteCode:       r.Str("invite_code"),
		InvitedBy:        r.OptUUID("invited_by"),
		InvitesRemaining: r.Int("invites_remaining"),
		CreatedAt:        r.Time("created_at"),
		UpdatedAt:        r.Time("updated_at"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// ProfileUpdate -> wire. Absent fields stay absent.
func ProfileUpdate(u model.ProfileUpdate) *structpb.Struct {
	return Fields{}.OptStr("full_name", u.FullName).OptStr("avatar_url", u.AvatarURL).Struct()
}

func ToProfileUpdate(s *structpb.Struct) (model.ProfileUpdate, error) {
	r := Read(s)
	u := model.ProfileUpdate{FullName: r.OptStr("full_name"), AvatarURL: r.OptStr("avatar_url")}
	return u, r.Err()
}

// Invite -> wire. Status is written as given; callers overlay expiry before converting.
func Invite(inv *model.Invite) *structpb.Struct {
	return Fields{}.
		UUID("id", inv.ID).
		Str("code", inv.Code).
		OptUUID("created_by", inv.CreatedBy).
		OptUUID("used_by", inv.UsedBy).
		Str("status", string(inv.Status)).
		Time("expires_at", inv.ExpiresAt).
		Time("created_at", inv.CreatedAt).
		OptTime("used_at", inv.UsedAt).
		Struct()
}

func ToInvite(s *structpb.Struct) (*model.Invite, error) {
	r := Read(s)
	inv := &model.Invite{
		ID:        r.UUID("id"),
		Code:      r.Str("code"),
		CreatedBy: r.OptUUID("created_by"),
		UsedBy:    r.OptUUID("used_by"),
		ExpiresAt: r.Time("expires_at"),
		CreatedAt: r.Time("created_at"),
		UsedAt:    r.OptTime("used_at"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	st, ok := model.ParseInviteStatus(r.Str("status"))
	if !ok {
		return nil, fmt.Errorf("field \"status\": unknown invite status %q", r.Str("status"))
	}
	inv.Status = st
	return inv, nil
}

// Invites -> wire list under "invites".
func Invites(list []model.Invite) *structpb.Struct {
	items := make([]*structpb.Struct, 0, len(list))
	for i := range list {
		items = append(items, Invite(&list[i]))
	}
	return Fields{}.List("invites", items).Struct()
}

func ToInvites(s *structpb.Struct) ([]model.Invite, error) {
	r := Read(s)
	items := r.List("invites")
	if err := r.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Invite, 0, len(items))
	for _, it := range items {
		inv, err := ToInvite(it)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, nil
}

func InviteValidation(v model.InviteValidation) *structpb.Struct {
	return Fields{}.Bool("valid", v.Valid).Str("message", v.Message).Struct()
}

func ToInviteValidation(s *structpb.Struct) (model.InviteValidation, error) {
	r := Read(s)
	v := model.InviteValidation{Valid: r.Bool("valid"), Message: r.Str("message")}
	return v, r.Err()
}

// Location -> wire.
func Location(l *model.Location) *structpb.Struct {
	return Fields{}.
		UUID("id", l.ID).
		UUID("user_id", l.UserID).
		Str("name", l.Name).
		Str("description", l.Description).
		Time("created_at", l.CreatedAt).
		Struct()
}

func ToLocation(s *structpb.Struct) (*model.Location, error) {
	r := Read(s)
	l := &model.Location{
		ID:          r.UUID("id"),
		UserID:      r.UUID("user_id"),
		Name:        r.Str("name"),
		Description: r.Str("description"),
		CreatedAt:   r.Time("created_at"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

func Locations(list []model.Location) *structpb.Struct {
	items := make([]*structpb.Struct, 0, len(list))
	for i := range list {
		items = append(items, Location(&list[i]))
	}
	return Fields{}.List("locations", items).Struct()
}

func ToLocations(s *structpb.Struct) ([]model.Location, error) {
	r := Read(s)
	items := r.List("locations")
	if err := r.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Location, 0, len(items))
	for _, it := range items {
		l, err := ToLocation(it)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, nil
}

func LocationUpdate(u model.LocationUpdate) *structpb.Struct {
	return Fields{}.OptStr("name", u.Name).OptStr("description", u.Description).Struct()
}

func ToLocationUpdate(s *structpb.Struct) (model.LocationUpdate, error) {
	r := Read(s)
	u := model.LocationUpdate{Name: r.OptStr("name"), Description: r.OptStr("description")}
	return u, r.Err()
}

// Box -> wire.
func Box(b *model.Box) *structpb.Struct {
	return Fields{}.
		UUID("id", b.ID).
		UUID("user_id", b.UserID).
		UUID("location_id", b.LocationID).
		Str("name", b.Name).
		Str("description", b.Description).
		Str("qr_code", b.QRCode).
		Str("image_url", b.ImageURL).
		Strings("contents", b.Contents).
		Str("ai_analysis", b.AIAnalysis).
		Time("created_at", b.CreatedAt).
		Time("updated_at", b.UpdatedAt).
		Struct()
}

func ToBox(s *structpb.Struct) (*model.Box, error) {
	r := Read(s)
	b := &model.Box{
		ID:          r.UUID("id"),
		UserID:      r.UUID("user_id"),
		LocationID:  r.UUID("location_id"),
		Name:        r.Str("name"),
		Description: r.Str("description"),
		QRCode:      r.Str("qr_code"),
		ImageURL:    r.Str("image_url"),
		Contents:    r.Strings("contents"),
		AIAnalysis:  r.Str("ai_analysis"),
		CreatedAt:   r.Time("created_at"),
		UpdatedAt:   r.Time("updated_at"),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	if b.Contents == nil {
		b.Contents = []string{}
	}
	return b, nil
}

func Boxes(list []model.Box) *structpb.Struct {
	items := make([]*structpb.Struct, 0, len(list))
	for i := range list {
		items = append(items, Box(&list[i]))
	}
	return Fields{}.List("boxes", items).Struct()
}

func ToBoxes(s *structpb.Struct) ([]model.Box, error) {
	r := Read(s)
	items := r.List("boxes")
	if err := r.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Box, 0, len(items))
	for _, it := range items {
		b, err := ToBox(it)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, nil
}

// BoxUpdate -> wire. Contents are always sent since they replace the stored list.
func BoxUpdate(u model.BoxUpdate) *structpb.Struct {
	f := Fields{}.
		Strings("contents", u.Contents).
		OptStr("name", u.Name).
		OptStr("description", u.Description).
		OptStr("image_url", u.ImageURL).
		OptStr("ai_analysis", u.AIAnalysis)
	if u.LocationID != nil {
		f.UUID("location_id", *u.LocationID)
	}
	return f.Struct()
}

func ToBoxUpdate(s *structpb.Struct) (model.BoxUpdate, error) {
	r := Read(s)
	u := model.BoxUpdate{
		Contents:    r.Strings("contents"),
		Name:        r.OptStr("name"),
		Description: r.OptStr("description"),
		ImageURL:    r.OptStr("image_url"),
		LocationID:  r.OptUUID("location_id"),
		AIAnalysis:  r.OptStr("ai_analysis"),
	}
	return u, r.Err()
}
