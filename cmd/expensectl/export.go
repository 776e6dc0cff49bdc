package main

import (
	"context"
	"fmt"
	"time"

	"smartexpense/internal/amqp"
	"smartexpense/internal/core"
	"smartexpense/internal/export/sheets"
	"smartexpense/internal/query"
)

func runExport(ctx context.Context, a *app, args []string) error {
	fs := a.flags("export")
	selected := monthFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	month, year, err := selected()
	if err != nil {
		return err
	}
	if a.cfg.GoogleSpreadsheetID == "" {
		return core.ValidationError("export needs GOOGLE_SPREADSHEET_ID", nil)
	}

	book, err := a.book(ctx)
	if err != nil {
		return err
	}
	ex, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID: a.cfg.GoogleSpreadsheetID,
		SheetName:     a.cfg.GoogleSheetName,
	}, a.logger)
	if err != nil {
		return err
	}
	res, err := ex.ExportMonth(ctx, year, book.Month(month, year, query.Filters{}), time.Local)
	if err != nil {
		return core.NetworkError("export failed", err)
	}
	fmt.Fprintf(a.stdout, "Exported %d rows to %s\n", res.Rows, res.Range)
	return nil
}

// runWatch prints the change events of the logged in user until interrupted.
func runWatch(ctx context.Context, a *app, args []string) error {
	fs := a.flags("watch")
	all := fs.Bool("all", false, "Show events of every user")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.cfg.AMQPURL == "" {
		return core.ValidationError("watch needs AMQP_URL", nil)
	}

	var userID string
	if !*all {
		sess, err := a.session(ctx)
		if err != nil {
			return err
		}
		userID = sess.User.ID
	}

	client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, a.cfg.AMQPQueue)
	if err != nil {
		return core.NetworkError("could not reach the broker", err)
	}
	defer client.Close()

	err = client.ConsumeExpensesChanged(ctx, func(msg *amqp.ExpensesChangedMessage) error {
		if userID != "" && msg.UserID != userID {
			return nil
		}
		printEvent(a, msg.ChangeEvent)
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func printEvent(a *app, ev core.ChangeEvent) {
	fmt.Fprintf(a.stdout, "%s  %-7s %s  user=%s count=%d total=%s\n",
		ev.Timestamp.Local().Format(time.DateTime), ev.Op, ev.ExpenseID, ev.UserID, ev.Count, core.FormatAmount(ev.Total))
}
