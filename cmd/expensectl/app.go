package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"smartexpense/internal/backend"
	"smartexpense/internal/cli"
	"smartexpense/internal/config"
	"smartexpense/internal/core"
	"smartexpense/internal/expenses"
	applog "smartexpense/internal/log"
	"smartexpense/internal/session"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *backend.BackendResult
	sessions *session.Manager
	tracker  *expenses.Tracker

	stdin  *bufio.Reader
	rawIn  io.Reader
	stdout io.Writer
	stderr io.Writer

	closers []func()
}

func newApp(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg, applog.ComponentCLI, stderr)

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		stdin:  bufio.NewReader(stdin),
		rawIn:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	a.closers = append(a.closers, func() {
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close store", applog.FieldError, err)
		}
	})

	notifier, closeNotifier := cli.OpenNotifier(cfg, logger)
	a.closers = append(a.closers, closeNotifier)

	a.tracker, err = cli.Tracker(cfg, store, notifier, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.sessions = session.NewManager(session.NewClient(cfg.APIBaseURL, cfg.APITimeout), store.Store, logger)
	return a, nil
}

// close runs the closers in reverse order. The active book is closed first
// so any in-flight save finishes before the store goes away.
func (a *app) close() {
	if a.tracker != nil {
		a.tracker.Deactivate()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// session returns the stored session or an AuthError asking to log in.
func (a *app) session(ctx context.Context) (core.Session, error) {
	sess, ok, err := a.sessions.Restore(ctx)
	if err != nil {
		return core.Session{}, err
	}
	if !ok {
		return core.Session{}, core.AuthError("not logged in, run expensectl login", nil)
	}
	return sess, nil
}

// book activates the expense book of the stored session.
func (a *app) book(ctx context.Context) (*expenses.Book, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	return a.tracker.Activate(ctx, sess)
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// password returns flagValue or prompts for one. Terminals get no echo.
func (a *app) password(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(a.stdout, "Password: ")
	defer fmt.Fprintln(a.stdout)

	if f, ok := a.rawIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := a.stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
