package web

import (
	"net/http"

	"github.com/and161185/binqr/internal/authctx"
	"github.com/and161185/binqr/internal/convert"
	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/service"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"
	"google.golang.org/protobuf/types/known/structpb"
)

// principal returns the signed-in caller or answers 401.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (service.Principal, bool) {
	p, ok := authctx.PrincipalFromCtx(r.Context())
	if !ok {
		s.writeError(w, r, errs.ErrUnauthorized)
	}
	return p, ok
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.FromString(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, errs.Invalid("id", "invalid id")
	}
	return id, nil
}

func readBody(w http.ResponseWriter, r *http.Request) (*structpb.Struct, error) {
	st := &structpb.Struct{}
	if err := decodeJSON(w, r, st); err != nil {
		return nil, err
	}
	return st, nil
}

func badField(err error) error { return errs.Invalid("body", err.Error()) }

// merge copies the top-level fields of parts into one message.
func merge(parts ...*structpb.Struct) *structpb.Struct {
	out := convert.Fields{}
	for _, p := range parts {
		for k, v := range p.GetFields() {
			out[k] = v
		}
	}
	return out.Struct()
}

// handleDashboard lists every box of the user with the locations they sit in.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	boxes, err := s.boxes.List(r.Context(), p.Identity.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	locs, err := s.locations.List(r.Context(), p.Identity.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merge(convert.Boxes(boxes), convert.Locations(locs)))
}

func (s *Server) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	locs, err := s.locations.List(r.Context(), p.Identity.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.Locations(locs))
}

func (s *Server) handleCreateBox(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rd := convert.Read(body)
	in := service.NewBox{
		Name:        rd.Str("name"),
		Description: rd.Str("description"),
		LocationID:  rd.UUID("location_id"),
		Contents:    rd.Strings("contents"),
		ImageURL:    rd.Str("image_url"),
		AIAnalysis:  rd.Str("ai_analysis"),
	}
	if err := rd.Err(); err != nil {
		s.writeError(w, r, badField(err))
		return
	}
	b, err := s.boxes.Create(r.Context(), p.Identity.ID, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.Box(b))
}

// handleScan resolves the payload read from a label.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusOK, map[string]string{"page": "scan"})
		return
	}
	b, err := s.boxes.FindByCode(r.Context(), p.Identity.ID, code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.Box(b))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var loc *uuid.UUID
	if raw := q.Get("location"); raw != "" {
		id, err := uuid.FromString(raw)
		if err != nil {
			s.writeError(w, r, errs.Invalid("location", "invalid id"))
			return
		}
		loc = &id
	}
	list, err := s.boxes.Search(r.Context(), p.Identity.ID, q.Get("q"), loc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.Boxes(list))
}

// handleLocations lists locations with the number of boxes in each.
func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	locs, err := s.locations.List(r.Context(), p.Identity.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]*structpb.Struct, 0, len(locs))
	for i := range locs {
		n, err := s.locations.BoxCount(r.Context(), p.Identity.ID, locs[i].ID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		st := convert.Location(&locs[i])
		st.Fields["box_count"] = structpb.NewNumberValue(float64(n))
		items = append(items, st)
	}
	writeJSON(w, http.StatusOK, convert.Fields{}.List("locations", items).Struct())
}

func (s *Server) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rd := convert.Read(body)
	name, desc := rd.Str("name"), rd.Str("description")
	if err := rd.Err(); err != nil {
		s.writeError(w, r, badField(err))
		return
	}
	l, err := s.locations.Create(r.Context(), p.Identity.ID, name, desc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.Location(l))
}

func (s *Server) handleUpdateLocation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	upd, err := convert.ToLocationUpdate(body)
	if err != nil {
		s.writeError(w, r, badField(err))
		return
	}
	l, err := s.locations.Update(r.Context(), p.Identity.ID, id, upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.Location(l))
}

// handleDeleteLocation refuses while boxes still reference the location.
func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.locations.Delete(r.Context(), p.Identity.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBox(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	b, err := s.boxes.Get(r.Context(), p.Identity.ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.Box(b))
}

func (s *Server) handleUpdateBox(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	upd, err := convert.ToBoxUpdate(body)
	if err != nil {
		s.writeError(w, r, badField(err))
		return
	}
	b, err := s.boxes.Update(r.Context(), p.Identity.ID, id, upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.Box(b))
}

func (s *Server) handleDeleteBox(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.boxes.Delete(r.Context(), p.Identity.ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSettings returns the profile and the invites the user has issued.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	prof, err := s.auth.Profile(r.Context(), p.Identity.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	invites, err := s.invites.List(r.Context(), p.Identity.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := convert.Fields{}.Obj("profile", convert.Profile(prof)).Struct()
	writeJSON(w, http.StatusOK, merge(out, convert.Invites(invites)))
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	upd, err := convert.ToProfileUpdate(body)
	if err != nil {
		s.writeError(w, r, badField(err))
		return
	}
	prof, err := s.auth.UpdateProfile(r.Context(), p.Identity.ID, upd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.Profile(prof))
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rd := convert.Read(body)
	pwd, confirm := rd.Str("password"), rd.Str("confirm")
	if err := rd.Err(); err != nil {
		s.writeError(w, r, badField(err))
		return
	}
	if err := s.auth.UpdatePassword(r.Context(), p.Identity.ID, pwd, confirm); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateInvite spends one invite from the caller's allowance.
func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	inv, err := s.invites.Create(r.Context(), p.Identity.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, convert.Invite(inv))
}

func (s *Server) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	inv, err := s.invites.Revoke(r.Context(), p.Identity.ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, convert.Invite(inv))
}
