package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"smartexpense/internal/core"
	"smartexpense/internal/session"
)

func runSignup(ctx context.Context, a *app, args []string) error {
	fs := a.flags("signup")
	name := fs.String("name", "", "Display name")
	email := fs.String("email", "", "Email address")
	pw := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := a.password(*pw)
	if err != nil {
		return err
	}
	sess, err := a.sessions.Signup(ctx, *name, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Welcome, %s! You are logged in.\n", sess.User.Name)
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "Email address")
	pw := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := a.password(*pw)
	if err != nil {
		return err
	}
	sess, err := a.sessions.Login(ctx, *email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Logged in as %s <%s>\n", sess.User.Name, sess.User.Email)
	return nil
}

func runLogout(ctx context.Context, a *app, args []string) error {
	if err := a.flags("logout").Parse(args); err != nil {
		return err
	}
	if err := a.sessions.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func runWhoami(ctx context.Context, a *app, args []string) error {
	if err := a.flags("whoami").Parse(args); err != nil {
		return err
	}
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	printUser(a, sess.User)
	return nil
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := a.flags("profile")
	name := fs.String("name", "", "New display name")
	image := fs.String("image", "", "Path of a new profile image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}

	if *name == "" && *image == "" {
		user, err := a.sessions.Profile(ctx, sess)
		if err != nil {
			return err
		}
		printUser(a, user)
		return nil
	}

	upd := session.ProfileUpdate{Name: *name}
	if *image != "" {
		f, err := os.Open(*image)
		if err != nil {
			return core.ValidationError(fmt.Sprintf("cannot open image %s", *image), err)
		}
		defer f.Close()
		upd.Image = f
		upd.ImageName = filepath.Base(*image)
	}
	user, err := a.sessions.UpdateProfile(ctx, sess, upd)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Profile updated")
	printUser(a, user)
	return nil
}

func printUser(a *app, u core.User) {
	fmt.Fprintf(a.stdout, "Name:  %s\nEmail: %s\nID:    %s\n", u.Name, u.Email, u.ID)
	if u.ProfileImage != "" {
		fmt.Fprintf(a.stdout, "Image: %s\n", imageURL(a.cfg.APIBaseURL, u.ProfileImage))
	}
}

// imageURL resolves a server relative image path against the API base URL.
func imageURL(base, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
