package service

import (
	"time"

	"go.uber.org/zap"
)

// Default lifetimes and allowances.
const (
	DefaultRefreshTTL     = 30 * 24 * time.Hour
	DefaultRecoveryTTL    = time.Hour
	DefaultInviteTTL      = 7 * 24 * time.Hour
	DefaultInitialInvites = 5
	InviteCodeLength      = 8
	MinPasswordLength     = 6
)

type options struct {
	log            *zap.Logger
	now            func() time.Time
	mailer         Mailer
	refreshTTL     time.Duration
	recoveryTTL    time.Duration
	inviteTTL      time.Duration
	initialInvites int
}

// Option configures a service constructor.
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{
		log:            zap.NewNop(),
		now:            time.Now,
		refreshTTL:     DefaultRefreshTTL,
		recoveryTTL:    DefaultRecoveryTTL,
		inviteTTL:      DefaultInviteTTL,
		initialInvites: DefaultInitialInvites,
	}
	for _, fn := range opts {
		fn(&o)
	}
	if o.mailer == nil {
		o.mailer = NewLogMailer(o.log, "")
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithMailer sets the password reset delivery.
func WithMailer(m Mailer) Option { return func(o *options) { o.mailer = m } }

// WithRefreshTTL sets the refresh token (session) lifetime.
func WithRefreshTTL(d time.Duration) Option { return func(o *options) { o.refreshTTL = d } }

// WithRecoveryTTL sets the password recovery token lifetime.
func WithRecoveryTTL(d time.Duration) Option { return func(o *options) { o.recoveryTTL = d } }

// WithInviteTTL sets how long a new invite stays pending.
func WithInviteTTL(d time.Duration) Option { return func(o *options) { o.inviteTTL = d } }

// WithInitialInvites sets the allowance of new profiles.
func WithInitialInvites(n int) Option { return func(o *options) { o.initialInvites = n } }
