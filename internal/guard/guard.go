// Package guard decides, per navigation, whether a path must redirect to login or to the app.
package guard

import (
	"net/url"
	"strings"
)

// Well-known paths.
const (
	RootPath           = "/"
	LoginPath          = "/login"
	SignupPath         = "/signup"
	ForgotPasswordPath = "/forgot-password"
	ResetPasswordPath  = "/reset-password"

	// RedirectParam carries the originally requested path through the login flow.
	RedirectParam = "redirect"
)

// Class is the route classification used by the guard.
type Class int

const (
	// Unrestricted paths are reachable regardless of session state.
	Unrestricted Class = iota
	// Public paths are the auth pages (login, sign-up, password recovery).
	Public
	// Protected paths require an authenticated session.
	Protected
)

var publicPaths = map[string]struct{}{
	LoginPath:          {},
	SignupPath:         {},
	ForgotPasswordPath: {},
	ResetPasswordPath:  {},
}

var protectedPaths = map[string]struct{}{
	RootPath:     {},
	"/create":    {},
	"/scan":      {},
	"/search":    {},
	"/locations": {},
	"/settings":  {},
}

// Classify returns the class of an exact path. Sub-paths are not classified.
func Classify(path string) Class {
	if _, ok := publicPaths[path]; ok {
		return Public
	}
	if _, ok := protectedPaths[path]; ok {
		return Protected
	}
	return Unrestricted
}

// Decision is the outcome of evaluating a navigation.
type Decision struct {
	Redirect bool
	Target   string
}

// Decide evaluates a navigation to path for the given session state.
//
// While the initial identity check is outstanding (loading) no redirect is issued.
// Authenticated users may stay on the reset-password page: they may arrive there from a
// recovery link while still holding an older session.
func Decide(path string, authenticated, loading bool) Decision {
	if loading {
		return Decision{}
	}
	switch Classify(path) {
	case Protected:
		if !authenticated {
			return Decision{Redirect: true, Target: LoginURL(path)}
		}
	case Public:
		if authenticated && path != ResetPasswordPath {
			return Decision{Redirect: true, Target: RootPath}
		}
	}
	return Decision{}
}

// LoginURL returns the login path carrying the original destination.
func LoginURL(original string) string {
	return LoginPath + "?" + RedirectParam + "=" + url.QueryEscape(original)
}

// SafeRedirect returns target if it is a local absolute path, otherwise the root path.
// It keeps the post-login redirect from leaving the site.
func SafeRedirect(target string) string {
	target = strings.TrimSpace(target)
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") ||
		strings.Contains(target, `\`) {
		return RootPath
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return RootPath
	}
	return target
}
