// Package web serves the browser-facing HTTP tier: auth forms, the route guard and
// JSON endpoints for the application pages.
package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/guard"
	"github.com/and161185/binqr/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// Cookie names.
const (
	AccessCookie  = "binqr_access"
	RefreshCookie = "binqr_refresh"
)

// maxBody bounds JSON and form request bodies.
const maxBody = 1 << 20

// Server holds the services behind the HTTP routes.
type Server struct {
	auth      service.AuthService
	invites   service.InviteService
	locations service.LocationService
	boxes     service.BoxService
	log       *zap.Logger

	secureCookies bool
	refreshTTL    time.Duration
	now           func() time.Time
}

// Option configures a Server.
type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithSecureCookies marks session cookies Secure; enable behind TLS.
func WithSecureCookies(on bool) Option { return func(s *Server) { s.secureCookies = on } }

// WithRefreshTTL sets the lifetime of the refresh cookie.
func WithRefreshTTL(d time.Duration) Option { return func(s *Server) { s.refreshTTL = d } }

func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// New constructs the web tier.
func New(
	auth service.AuthService,
	invites service.InviteService,
	locations service.LocationService,
	boxes service.BoxService,
	opts ...Option,
) *Server {
	s := &Server{
		auth:       auth,
		invites:    invites,
		locations:  locations,
		boxes:      boxes,
		log:        zap.NewNop(),
		refreshTTL: service.DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router returns the HTTP handler with all routes and middleware installed.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverMW, s.loggingMW, s.guardMW)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// auth pages
	r.HandleFunc(guard.LoginPath, s.page("login")).Methods(http.MethodGet)
	r.HandleFunc(guard.LoginPath, s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc(guard.SignupPath, s.page("signup")).Methods(http.MethodGet)
	r.HandleFunc(guard.SignupPath, s.handleSignup).Methods(http.MethodPost)
	r.HandleFunc(guard.SignupPath+"/validate", s.handleValidateInvite).Methods(http.MethodGet)
	r.HandleFunc(guard.ForgotPasswordPath, s.page("forgot-password")).Methods(http.MethodGet)
	r.HandleFunc(guard.ForgotPasswordPath, s.handleForgotPassword).Methods(http.MethodPost)
	r.HandleFunc(guard.ResetPasswordPath, s.page("reset-password")).Methods(http.MethodGet)
	r.HandleFunc(guard.ResetPasswordPath, s.handleResetPassword).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	// application pages
	r.HandleFunc(guard.RootPath, s.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/create", s.handleCreatePage).Methods(http.MethodGet)
	r.HandleFunc("/create", s.handleCreateBox).Methods(http.MethodPost)
	r.HandleFunc("/scan", s.handleScan).Methods(http.MethodGet)
	r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	r.HandleFunc("/locations", s.handleLocations).Methods(http.MethodGet)
	r.HandleFunc("/locations", s.handleCreateLocation).Methods(http.MethodPost)
	r.HandleFunc("/locations/{id}", s.handleUpdateLocation).Methods(http.MethodPut)
	r.HandleFunc("/locations/{id}", s.handleDeleteLocation).Methods(http.MethodDelete)
	r.HandleFunc("/boxes/{id}", s.handleGetBox).Methods(http.MethodGet)
	r.HandleFunc("/boxes/{id}", s.handleUpdateBox).Methods(http.MethodPut)
	r.HandleFunc("/boxes/{id}", s.handleDeleteBox).Methods(http.MethodDelete)
	r.HandleFunc("/settings", s.handleSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings/profile", s.handleUpdateProfile).Methods(http.MethodPost)
	r.HandleFunc("/settings/password", s.handleUpdatePassword).Methods(http.MethodPost)
	r.HandleFunc("/settings/invites", s.handleCreateInvite).Methods(http.MethodPost)
	r.HandleFunc("/settings/invites/{id}/revoke", s.handleRevokeInvite).Methods(http.MethodPost)

	return r
}

// page answers GET on an auth page; rendering belongs to the frontend.
func (s *Server) page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"page":     name,
			"redirect": guard.SafeRedirect(r.URL.Query().Get(guard.RedirectParam)),
		})
	}
}

// writeJSON encodes v; protobuf messages go through protojson so the HTTP body matches
// the gRPC field names.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if m, ok := v.(proto.Message); ok {
		b, err := protojson.Marshal(m)
		if err == nil {
			_, _ = w.Write(b)
		}
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// httpStatus maps a classified error to an HTTP status.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, errs.ErrInvalidRecoveryToken):
		return http.StatusBadRequest
	}
	switch errs.KindOf(err) {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindAuth:
		return http.StatusUnauthorized
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict, errs.KindInvite:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err without leaking unclassified causes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := httpStatus(err)
	body := errorBody{Error: errs.Reason(err), Message: err.Error()}
	var ve *errs.ValidationError
	if errors.As(err, &ve) {
		body.Field, body.Message = ve.Field, ve.Message
	}
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		body.Message = "internal error"
		if body.Error == "" {
			body.Error = "INTERNAL"
		}
	}
	writeJSON(w, code, body)
}

// decodeJSON reads a bounded JSON object into m.
func decodeJSON(w http.ResponseWriter, r *http.Request, m proto.Message) error {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		return errs.Invalid("body", "request body too large")
	}
	if err := protojson.Unmarshal(b, m); err != nil {
		return errs.Invalid("body", "malformed JSON")
	}
	return nil
}
