package web

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/and161185/binqr/internal/authctx"
	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/guard"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/service"
	"go.uber.org/zap"
)

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("code", rec.code),
			zap.Duration("dur", time.Since(start)),
			zap.String("peer", clientIP(r)),
		)
	})
}

func (s *Server) recoverMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.Error("panic",
					zap.Any("reason", v),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
				)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "INTERNAL", Message: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// guardMW derives the session from cookies on every request, refreshing an expired
// access token when a refresh cookie is present, and applies the route guard.
// Session lookup failures read as unauthenticated.
func (s *Server) guardMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := s.sessionFromCookies(ctx, w, r)
		if ok {
			ctx = authctx.WithPrincipal(ctx, p)
		}
		if d := guard.Decide(r.URL.Path, ok, false); d.Redirect && r.Method == http.MethodGet {
			http.Redirect(w, r, d.Target, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) sessionFromCookies(ctx context.Context, w http.ResponseWriter, r *http.Request) (service.Principal, bool) {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		p, err := s.auth.Authenticate(ctx, c.Value)
		if err == nil {
			return p, true
		}
		if errs.KindOf(err) == errs.KindPersistence {
			s.log.Warn("session check", zap.Error(err))
			return service.Principal{}, false
		}
	}

	c, err := r.Cookie(RefreshCookie)
	if err != nil || c.Value == "" {
		return service.Principal{}, false
	}
	tok, _, err := s.auth.Refresh(ctx, c.Value)
	if err != nil {
		if errs.KindOf(err) == errs.KindPersistence {
			s.log.Warn("session refresh", zap.Error(err))
		} else {
			s.clearCookies(w)
		}
		return service.Principal{}, false
	}
	p, err := s.auth.Authenticate(ctx, tok.AccessToken)
	if err != nil {
		s.log.Warn("authenticate refreshed token", zap.Error(err))
		return service.Principal{}, false
	}
	s.setCookies(w, tok)
	return p, true
}

func (s *Server) setCookies(w http.ResponseWriter, tok model.Tokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessCookie,
		Value:    tok.AccessToken,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookie,
		Value:    tok.RefreshToken,
		Path:     "/",
		Expires:  s.now().Add(s.refreshTTL),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.secureCookies,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
