// Package grpcserver exposes the BinQR gRPC API handlers.
package grpcserver

import (
	"context"
	"net"

	"github.com/and161185/binqr/internal/authctx"
	"github.com/and161185/binqr/internal/convert"
	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/rpc"
	"github.com/and161185/binqr/internal/service"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ rpc.Handler = (*Server)(nil)

// Server wires services into gRPC handlers.
type Server struct {
	auth      service.AuthService
	invites   service.InviteService
	locations service.LocationService
	boxes     service.BoxService
	log       *zap.Logger
}

// New constructs a gRPC server with injected services.
func New(
	auth service.AuthService,
	invites service.InviteService,
	locations service.LocationService,
	boxes service.BoxService,
	log *zap.Logger,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, invites: invites, locations: locations, boxes: boxes, log: log}
}

func empty() *structpb.Struct { return &structpb.Struct{} }

func badRequest(err error) error {
	return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
}

// caller returns the principal placed in ctx by AuthUnary.
func caller(ctx context.Context) (service.Principal, error) {
	p, ok := authctx.PrincipalFromCtx(ctx)
	if !ok {
		return service.Principal{}, rpc.ToStatus(errs.ErrUnauthorized)
	}
	return p, nil
}

func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// --- Auth ---

// SignUp creates the account, consumes the invite and signs the new user in.
func (s *Server) SignUp(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(req)
	in := service.SignUpInput{
		Email:      r.Str("email"),
		Password:   r.Str("password"),
		Confirm:    r.Str("confirm"),
		FullName:   r.Str("full_name"),
		InviteCode: r.Str("invite_code"),
	}
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	p, err := s.auth.SignUp(ctx, in)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	out := convert.Fields{}.Obj("profile", convert.Profile(p))

	tok, id, err := s.auth.SignIn(ctx, in.Email, in.Password, remoteIP(ctx))
	if err != nil {
		s.log.Warn("sign in after sign up", zap.String("user", p.ID.String()), zap.Error(err))
		return out.Struct(), nil
	}
	return out.Obj("tokens", convert.Tokens(tok)).Obj("identity", convert.Identity(id)).Struct(), nil
}

// SignIn authenticates a user and opens a session.
func (s *Server) SignIn(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(req)
	email, password := r.Str("email"), r.Str("password")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	tok, id, err := s.auth.SignIn(ctx, email, password, remoteIP(ctx))
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Session(tok, id), nil
}

// Refresh rotates a refresh token.
func (s *Server) Refresh(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(req)
	rt := r.Str("refresh_token")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	tok, id, err := s.auth.Refresh(ctx, rt)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Session(tok, id), nil
}

// SignOut revokes the caller's session.
func (s *Server) SignOut(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.auth.SignOut(ctx, p.SessionID); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return empty(), nil
}

func (s *Server) GetIdentity(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	return convert.Identity(p.Identity), nil
}

func (s *Server) GetProfile(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	prof, err := s.auth.Profile(ctx, p.Identity.ID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Profile(prof), nil
}

func (s *Server) UpdateProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	upd, err := convert.ToProfileUpdate(req)
	if err != nil {
		return nil, badRequest(err)
	}
	prof, err := s.auth.UpdateProfile(ctx, p.Identity.ID, upd)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Profile(prof), nil
}

// RequestPasswordReset always answers OK for well-formed requests.
func (s *Server) RequestPasswordReset(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(req)
	email := r.Str("email")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	if err := s.auth.RequestPasswordReset(ctx, email); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return empty(), nil
}

func (s *Server) ResetPassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(req)
	tok, pwd, confirm := r.Str("token"), r.Str("password"), r.Str("confirm")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	if err := s.auth.ResetPassword(ctx, tok, pwd, confirm); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return empty(), nil
}

func (s *Server) UpdatePassword(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r := convert.Read(req)
	pwd, confirm := r.Str("password"), r.Str("confirm")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	if err := s.auth.UpdatePassword(ctx, p.Identity.ID, pwd, confirm); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return empty(), nil
}

// --- Invites ---

// ValidateInvite never fails for a readable request; problems read as invalid.
func (s *Server) ValidateInvite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	r := convert.Read(req)
	code := r.Str("code")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	return convert.InviteValidation(s.invites.Validate(ctx, code)), nil
}

func (s *Server) CreateInvite(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := s.invites.Create(ctx, p.Identity.ID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Invite(inv), nil
}

func (s *Server) ListInvites(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.invites.List(ctx, p.Identity.ID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Invites(list), nil
}

func (s *Server) RevokeInvite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := readID(req)
	if err != nil {
		return nil, err
	}
	inv, err := s.invites.Revoke(ctx, p.Identity.ID, id)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Invite(inv), nil
}

// --- Locations ---

func readID(req *structpb.Struct) (uuid.UUID, error) {
	r := convert.Read(req)
	id := r.UUID("id")
	if err := r.Err(); err != nil {
		return uuid.Nil, badRequest(err)
	}
	return id, nil
}

func (s *Server) ListLocations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.locations.List(ctx, p.Identity.ID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Locations(list), nil
}

func (s *Server) CreateLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r := convert.Read(req)
	name, desc := r.Str("name"), r.Str("description")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	loc, err := s.locations.Create(ctx, p.Identity.ID, name, desc)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Location(loc), nil
}

func (s *Server) UpdateLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := readID(req)
	if err != nil {
		return nil, err
	}
	upd, err := convert.ToLocationUpdate(req)
	if err != nil {
		return nil, badRequest(err)
	}
	loc, err := s.locations.Update(ctx, p.Identity.ID, id, upd)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Location(loc), nil
}

// DeleteLocation fails with FailedPrecondition while boxes reference the location.
func (s *Server) DeleteLocation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := readID(req)
	if err != nil {
		return nil, err
	}
	if err := s.locations.Delete(ctx, p.Identity.ID, id); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return empty(), nil
}

func (s *Server) CountLocationBoxes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := readID(req)
	if err != nil {
		return nil, err
	}
	n, err := s.locations.BoxCount(ctx, p.Identity.ID, id)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Fields{}.Int("count", n).Struct(), nil
}

// --- Boxes ---

func (s *Server) ListBoxes(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.boxes.List(ctx, p.Identity.ID)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Boxes(list), nil
}

func (s *Server) GetBox(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := readID(req)
	if err != nil {
		return nil, err
	}
	b, err := s.boxes.Get(ctx, p.Identity.ID, id)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Box(b), nil
}

func (s *Server) CreateBox(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r := convert.Read(req)
	in := service.NewBox{
		Name:        r.Str("name"),
		Description: r.Str("description"),
		LocationID:  r.UUID("location_id"),
		Contents:    r.Strings("contents"),
		ImageURL:    r.Str("image_url"),
		AIAnalysis:  r.Str("ai_analysis"),
	}
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	b, err := s.boxes.Create(ctx, p.Identity.ID, in)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Box(b), nil
}

// UpdateBox replaces the contents of a box and applies the optional fields.
func (s *Server) UpdateBox(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := readID(req)
	if err != nil {
		return nil, err
	}
	upd, err := convert.ToBoxUpdate(req)
	if err != nil {
		return nil, badRequest(err)
	}
	b, err := s.boxes.Update(ctx, p.Identity.ID, id, upd)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Box(b), nil
}

// FindBoxByCode resolves a scanned QR payload.
func (s *Server) FindBoxByCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r := convert.Read(req)
	payload := r.Str("payload")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	b, err := s.boxes.FindByCode(ctx, p.Identity.ID, payload)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Box(b), nil
}

func (s *Server) SearchBoxes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r := convert.Read(req)
	query, loc := r.Str("query"), r.OptUUID("location_id")
	if err := r.Err(); err != nil {
		return nil, badRequest(err)
	}
	list, err := s.boxes.Search(ctx, p.Identity.ID, query, loc)
	if err != nil {
		return nil, rpc.ToStatus(err)
	}
	return convert.Boxes(list), nil
}

func (s *Server) DeleteBox(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id, err := readID(req)
	if err != nil {
		return nil, err
	}
	if err := s.boxes.Delete(ctx, p.Identity.ID, id); err != nil {
		return nil, rpc.ToStatus(err)
	}
	return empty(), nil
}
