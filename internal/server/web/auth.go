package web

import (
	"net/http"

	"github.com/and161185/binqr/internal/authctx"
	"github.com/and161185/binqr/internal/convert"
	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/guard"
	"github.com/and161185/binqr/internal/service"
	"go.uber.org/zap"
)

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		return errs.Invalid("body", "malformed form")
	}
	return nil
}

// handleLogin signs in with the posted credentials and returns to the requested page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	tok, _, err := s.auth.SignIn(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"), clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.setCookies(w, tok)
	http.Redirect(w, r, guard.SafeRedirect(r.PostFormValue(guard.RedirectParam)), http.StatusSeeOther)
}

// handleSignup registers with an invite code and signs the new account in.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	in := service.SignUpInput{
		Email:      r.PostFormValue("email"),
		Password:   r.PostFormValue("password"),
		Confirm:    r.PostFormValue("confirm"),
		FullName:   r.PostFormValue("full_name"),
		InviteCode: r.PostFormValue("invite_code"),
	}
	p, err := s.auth.SignUp(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dest := guard.SafeRedirect(r.PostFormValue(guard.RedirectParam))
	tok, _, err := s.auth.SignIn(r.Context(), in.Email, in.Password, clientIP(r))
	if err != nil {
		s.log.Warn("sign in after sign up", zap.String("user", p.ID.String()), zap.Error(err))
		http.Redirect(w, r, guard.LoginURL(dest), http.StatusSeeOther)
		return
	}
	s.setCookies(w, tok)
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (s *Server) handleValidateInvite(w http.ResponseWriter, r *http.Request) {
	v := s.invites.Validate(r.Context(), r.URL.Query().Get("code"))
	writeJSON(w, http.StatusOK, convert.InviteValidation(v))
}

// handleLogout revokes the session when there is one; cookies are cleared regardless.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if p, ok := authctx.PrincipalFromCtx(r.Context()); ok {
		if err := s.auth.SignOut(r.Context(), p.SessionID); err != nil {
			s.log.Warn("sign out", zap.String("session", p.SessionID.String()), zap.Error(err))
		}
	}
	s.clearCookies(w)
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}

// handleForgotPassword answers the same way whether or not the address is known;
// the service hides unknown addresses.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.auth.RequestPasswordReset(r.Context(), r.PostFormValue("email")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If the address is registered, a reset link has been sent.",
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := s.auth.ResetPassword(r.Context(),
		r.PostFormValue("token"), r.PostFormValue("password"), r.PostFormValue("confirm"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearCookies(w)
	http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
}
