package service

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// Mailer delivers password reset tokens to users.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes the reset link to the log instead of sending mail.
// It is meant for development deployments without an SMTP relay.
type LogMailer struct {
	log     *zap.Logger
	baseURL string
}

// NewLogMailer returns a LogMailer; baseURL prefixes the /reset-password link.
func NewLogMailer(log *zap.Logger, baseURL string) *LogMailer {
	return &LogMailer{log: log, baseURL: baseURL}
}

func (m *LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	link := m.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	m.log.Info("password reset requested", zap.String("email", email), zap.String("link", link))
	return nil
}
