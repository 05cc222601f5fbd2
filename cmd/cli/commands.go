package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/and161185/binqr/internal/convert"
	"github.com/and161185/binqr/internal/errs"
	"github.com/and161185/binqr/internal/guard"
	"github.com/and161185/binqr/internal/model"
	"github.com/and161185/binqr/internal/session"
	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"
)

var errUsage = errors.New("usage")

// run dispatches one command.
func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "signup":
		return a.cmdSignup(ctx, args)
	case "login":
		return a.cmdLogin(ctx, args)
	case "logout":
		return a.cmdLogout(ctx)
	case "whoami":
		return a.cmdWhoami(ctx)
	case "profile":
		return a.cmdProfile(ctx, args)
	case "password":
		return a.cmdPassword(ctx, args)
	case "forgot":
		return a.cmdForgot(ctx, args)
	case "reset":
		return a.cmdReset(ctx, args)
	case "invite":
		return a.cmdInvite(ctx, args)
	case "route":
		return a.cmdRoute(ctx, args)
	case "location":
		return a.cmdLocation(ctx, args)
	case "box":
		return a.cmdBox(ctx, args)
	default:
		return errUsage
	}
}

// ---- helpers ----

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// isSet reports whether the flag was given on the command line, so an explicit
// empty value can be told apart from an omitted one.
func isSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func optional(fs *flag.FlagSet, name, v string) *string {
	if !isSet(fs, name) {
		return nil
	}
	return &v
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.FromString(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, errs.Invalid(field, "invalid id")
	}
	return id, nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	out := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func need(fs *flag.FlagSet, names ...string) error {
	for _, n := range names {
		if f := fs.Lookup(n); f == nil || f.Value.String() == "" {
			return fmt.Errorf("need -%s", n)
		}
	}
	return nil
}

// ---- account ----

func (a *app) cmdSignup(ctx context.Context, args []string) error {
	fs := newFlags("signup")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password confirmation")
	name := fs.String("name", "", "full name")
	invite := fs.String("invite", "", "invite code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email", "password", "invite"); err != nil {
		return err
	}
	c, err := a.server()
	if err != nil {
		return err
	}
	p, err := c.SignUp(ctx, *email, *password, *confirm, *name, *invite)
	if err != nil {
		return err
	}
	printJSON(a.out, convert.Profile(p))
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := newFlags("login")
	email := fs.String("email", "", "email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := need(fs, "email", "password"); err != nil {
		return err
	}
	c, err := a.server()
	if err != nil {
		return err
	}
	id, err := c.SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s\n", id.Email)
	return nil
}

// sessionStore builds a started session.Store over the remote client.
func (a *app) sessionStore(ctx context.Context) (*session.Store, error) {
	c, err := a.server()
	if err != nil {
		return nil, err
	}
	st := session.New(c, session.WithLogger(a.log))
	st.Start(ctx)
	return st, nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	st, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()
	// ClearAlways: the token file is gone even when the server could not revoke the session
	if err := st.SignOut(ctx); err != nil {
		return fmt.Errorf("signed out locally, server did not revoke the session: %w", err)
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	st, err := a.sessionStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	snap := st.Snapshot()
	if !snap.Authenticated() {
		fmt.Fprintln(a.out, "not signed in")
		return nil
	}
	out := convert.Fields{}.Obj("identity", convert.Identity(*snap.Identity))
	if snap.Profile != nil {
		out = out.Obj("profile", convert.Profile(snap.Profile))
	}
	printJSON(a.out, out.Struct())
	return nil
}

func (a *app) cmdProfile(ctx context.Context, args []string) error {
	fs := newFlags("profile")
	name := fs.String("name", "", "full name")
	avatar := fs.String("avatar", "", "avatar URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.server()
	if err != nil {
		return err
	}
	upd := model.ProfileUpdate{FullName: optional(fs, "name", *name), AvatarURL: optional(fs, "avatar", *avatar)}
	var p *model.Profile
	if upd.FullName != nil || upd.AvatarURL != nil {
		p, err = c.UpdateProfile(ctx, upd)
	} else {
		p, err = c.Profile(ctx)
	}
	if err != nil {
		return err
	}
	printJSON(a.out, convert.Profile(p))
	return nil
}

func (a *app) cmdPassword(ctx context.Context, args []string) error {
	fs := newFlags("password")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm", "", "confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.server()
	if err != nil {
		return err
	}
	if err := c.UpdatePassword(ctx, *password, *confirm); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func (a *app) cmdForgot(ctx context.Context, args []string) error {
	fs := newFlags("forgot")
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.server()
	if err != nil {
		return err
	}
	if err := c.RequestPasswordReset(ctx, *email); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "if the address is registered, a reset link has been sent")
	return nil
}

func (a *app) cmdReset(ctx context.Context, args []string) error {
	fs := newFlags("reset")
	token := fs.String("token", "", "recovery token")
	password := fs.String("password", "", "new password")
	confirm := fs.String("confirm", "", "confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := a.server()
	if err != nil {
		return err
	}
	if err := c.ResetPassword(ctx, *token, *password, *confirm); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "password updated, sign in again")
	return nil
}

func (a *app) cmdInvite(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	c, err := a.server()
	if err != nil {
		return err
	}
	fs := newFlags("invite " + args[0])
	switch args[0] {
	case "validate":
		code := fs.String("code", "", "invite code")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		printJSON(a.out, convert.InviteValidation(c.ValidateInvite(ctx, *code)))
	case "create":
		inv, err := c.CreateInvite(ctx)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Invite(inv))
	case "list":
		list, err := c.ListInvites(ctx)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Invites(list))
	case "revoke":
		raw := fs.String("id", "", "invite id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id, err := parseID("id", *raw)
		if err != nil {
			return err
		}
		inv, err := c.RevokeInvite(ctx, id)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Invite(inv))
	default:
		return errUsage
	}
	return nil
}

// cmdRoute prints what the route guard decides for path with the current session.
func (a *app) cmdRoute(ctx context.Context, args []string) error {
	fs := newFlags("route")
	path := fs.String("path", guard.RootPath, "path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	authenticated, loading := false, false
	if a.remote != nil {
		st, err := a.sessionStore(ctx)
		if err != nil {
			return err
		}
		snap := st.Snapshot()
		st.Close()
		authenticated, loading = snap.Authenticated(), snap.Loading()
	}
	d := guard.Decide(*path, authenticated, loading)
	if d.Redirect {
		fmt.Fprintf(a.out, "redirect %s\n", d.Target)
		return nil
	}
	fmt.Fprintf(a.out, "allow %s\n", *path)
	return nil
}

// ---- storage ----

func (a *app) cmdLocation(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	fs := newFlags("location " + args[0])
	switch args[0] {
	case "list":
		locs, err := a.store.ListLocations(ctx)
		if err != nil {
			return err
		}
		// печатаем вместе с количеством коробок
		items := make([]*structpb.Struct, 0, len(locs))
		for i := range locs {
			n, err := a.store.CountLocationBoxes(ctx, locs[i].ID)
			if err != nil {
				return err
			}
			st := convert.Location(&locs[i])
			st.Fields["box_count"] = structpb.NewNumberValue(float64(n))
			items = append(items, st)
		}
		printJSON(a.out, convert.Fields{}.List("locations", items).Struct())

	case "add":
		name := fs.String("name", "", "name")
		desc := fs.String("desc", "", "description")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		l, err := a.store.CreateLocation(ctx, *name, *desc)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Location(l))

	case "edit":
		raw := fs.String("id", "", "location id")
		name := fs.String("name", "", "name")
		desc := fs.String("desc", "", "description")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id, err := parseID("id", *raw)
		if err != nil {
			return err
		}
		upd := model.LocationUpdate{Name: optional(fs, "name", *name), Description: optional(fs, "desc", *desc)}
		l, err := a.store.UpdateLocation(ctx, id, upd)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Location(l))

	case "rm":
		raw := fs.String("id", "", "location id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id, err := parseID("id", *raw)
		if err != nil {
			return err
		}
		if err := a.store.DeleteLocation(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "deleted")

	default:
		return errUsage
	}
	return nil
}

func (a *app) cmdBox(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	fs := newFlags("box " + args[0])
	switch args[0] {
	case "list":
		list, err := a.store.ListBoxes(ctx)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Boxes(list))

	case "get", "rm":
		raw := fs.String("id", "", "box id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id, err := parseID("id", *raw)
		if err != nil {
			return err
		}
		if args[0] == "rm" {
			if err := a.store.DeleteBox(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "deleted")
			return nil
		}
		b, err := a.store.GetBox(ctx, id)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Box(b))

	case "scan":
		code := fs.String("code", "", "scanned QR payload")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		b, err := a.store.FindBoxByCode(ctx, *code)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Box(b))

	case "search":
		q := fs.String("q", "", "text to match")
		rawLoc := fs.String("location", "", "location id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		var loc *uuid.UUID
		if *rawLoc != "" {
			id, err := parseID("location", *rawLoc)
			if err != nil {
				return err
			}
			loc = &id
		}
		list, err := a.store.SearchBoxes(ctx, *q, loc)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Boxes(list))

	case "add":
		name := fs.String("name", "", "name")
		desc := fs.String("desc", "", "description")
		rawLoc := fs.String("location", "", "location id")
		contents := fs.String("contents", "", "comma separated contents")
		image := fs.String("image", "", "image URL")
		ai := fs.String("ai", "", "image analysis text")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		loc, err := parseID("location", *rawLoc)
		if err != nil {
			return err
		}
		b, err := a.store.CreateBox(ctx, *name, *desc, loc, splitList(*contents), *image, *ai)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Box(b))

	case "edit":
		raw := fs.String("id", "", "box id")
		name := fs.String("name", "", "name")
		desc := fs.String("desc", "", "description")
		rawLoc := fs.String("location", "", "location id")
		contents := fs.String("contents", "", "comma separated contents, replaces the list")
		image := fs.String("image", "", "image URL")
		ai := fs.String("ai", "", "image analysis text")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		id, err := parseID("id", *raw)
		if err != nil {
			return err
		}
		upd := model.BoxUpdate{
			Contents:    splitList(*contents),
			Name:        optional(fs, "name", *name),
			Description: optional(fs, "desc", *desc),
			ImageURL:    optional(fs, "image", *image),
			AIAnalysis:  optional(fs, "ai", *ai),
		}
		if !isSet(fs, "contents") {
			cur, err := a.store.GetBox(ctx, id)
			if err != nil {
				return err
			}
			upd.Contents = cur.Contents
		}
		if isSet(fs, "location") {
			loc, err := parseID("location", *rawLoc)
			if err != nil {
				return err
			}
			upd.LocationID = &loc
		}
		b, err := a.store.UpdateBox(ctx, id, upd)
		if err != nil {
			return err
		}
		printJSON(a.out, convert.Box(b))

	default:
		return errUsage
	}
	return nil
}
