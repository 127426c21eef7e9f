package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/nutrivision/internal/models"
	"github.com/desertthunder/nutrivision/internal/oauth"
	"github.com/urfave/cli/v3"
)

// AuthRegister creates an account and stores the returned session.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	auth, err := r.client.Register(ctx, cmd.String("name"), cmd.String("email"), cmd.String("password"))
	if err != nil {
		return r.explain(err)
	}
	r.writePlain("✓ Registered and signed in as %s\n", describeUser(auth.User))
	return nil
}

// AuthLogin signs in with email and password.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	auth, err := r.client.Login(ctx, cmd.String("email"), cmd.String("password"))
	if err != nil {
		return r.explain(err)
	}
	r.writePlain("✓ Signed in as %s\n", describeUser(auth.User))
	return nil
}

// AuthLogout forgets the stored session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if _, ok := r.session.Get(); !ok {
		r.writePlainln("Not signed in.")
		return nil
	}
	r.client.Logout()
	r.writePlainln("✓ Signed out")
	return nil
}

// AuthStatus shows the signed-in user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	sess, ok := r.session.Get()

	if cmd.Bool("json") {
		status := struct {
			SignedIn bool         `json:"signedIn"`
			User     *models.User `json:"user,omitempty"`
		}{SignedIn: ok}
		if ok {
			status.User = &sess.User
		}
		return r.writeJSON(status, true)
	}

	if !ok {
		r.writePlainln("Not signed in. Run 'nutrivision auth login' to sign in.")
		return nil
	}
	r.writePlain("Signed in as %s\n", describeUser(sess.User))
	if sess.User.Provider != "" {
		r.writePlain("Provider: %s\n", sess.User.Provider)
	}
	return nil
}

// AuthGoogle signs in through Google in the browser.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	return r.federate(ctx, r.google)
}

// AuthApple signs in through Apple in the browser.
func (r *Runner) AuthApple(ctx context.Context, cmd *cli.Command) error {
	return r.federate(ctx, r.apple)
}

func (r *Runner) federate(ctx context.Context, p oauth.Provider) error {
	name := "identity provider"
	if p != nil {
		name = p.Name()
	}
	r.writePlain("Signing in with %s...\n", name)

	sess, err := r.bridge.SignIn(ctx, p)
	if err != nil {
		r.writePlain("✗ Sign-in with %s failed\n", name)
		return r.explain(err)
	}
	r.writePlain("✓ Signed in as %s\n", describeUser(sess.User))
	return nil
}

func describeUser(u models.User) string {
	switch {
	case u.Name != "" && u.Email != "":
		return fmt.Sprintf("%s <%s>", u.Name, u.Email)
	case u.Email != "":
		return u.Email
	case u.Name != "":
		return u.Name
	default:
		return u.ID
	}
}
