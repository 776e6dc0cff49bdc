package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"smartexpense/internal/cli"
	"smartexpense/internal/core"
)

const usage = `Usage: expensectl <command> [flags]

Account:
  signup    create an account and log in
  login     log in with email and password
  logout    forget the stored session
  whoami    show the stored session
  profile   show or update the profile

Expenses:
  add       record an expense
  edit      change an expense
  delete    remove an expense
  list      list a month's expenses grouped by day
  summary   show a month's total and category breakdown
  months    list the selectable months
  export    append a month to the configured Google spreadsheet
  watch     print change events from the broker

Run "expensectl <command> -h" for the flags of a command.
`

func main() {
	cli.LoadEnvFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", core.Message(err))
		os.Exit(1)
	}
}

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"signup":  runSignup,
	"login":   runLogin,
	"logout":  runLogout,
	"whoami":  runWhoami,
	"profile": runProfile,
	"add":     runAdd,
	"edit":    runEdit,
	"delete":  runDelete,
	"list":    runList,
	"summary": runSummary,
	"months":  runMonths,
	"export":  runExport,
	"watch":   runWatch,
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	a, err := newApp(ctx, stdin, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.close()

	return cmd(ctx, a, args[1:])
}
