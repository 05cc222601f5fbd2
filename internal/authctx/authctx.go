// Package authctx carries the verified caller through request contexts.
package authctx

import (
	"context"

	"github.com/and161185/binqr/internal/service"
	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const principalKey ctxKey = "binqr.principal"

// WithPrincipal stores the authenticated caller in context.
func WithPrincipal(ctx context.Context, p service.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromCtx fetches the caller from context.
func PrincipalFromCtx(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(principalKey).(service.Principal)
	return p, ok
}

// UserIDFromCtx fetches the caller's user ID from context.
func UserIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFromCtx(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.Identity.ID, true
}

// SessionIDFromCtx fetches the caller's session ID from context.
func SessionIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFromCtx(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return p.SessionID, true
}
