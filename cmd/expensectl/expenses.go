package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/query"
)

const dateLayout = "2006-01-02"

// expenseFlags registers the editable expense fields on fs.
type expenseFlags struct {
	desc, amount, category, method, date, note *string
}

func addExpenseFlags(fs *flag.FlagSet) expenseFlags {
	return expenseFlags{
		desc:     fs.String("desc", "", "Description"),
		amount:   fs.String("amount", "", "Amount, e.g. 4.50"),
		category: fs.String("category", "Other", "Category ("+strings.Join(core.DefaultCategories, ", ")+")"),
		method:   fs.String("method", string(core.Cash), "Payment method (cash, card, bank)"),
		date:     fs.String("date", "", "Date as YYYY-MM-DD (default today)"),
		note:     fs.String("note", "", "Optional note"),
	}
}

// apply copies every flag that was set on fs into in. With all true, every
// flag is applied whether set or not.
func (f expenseFlags) apply(fs *flag.FlagSet, in *core.ExpenseInput, all bool) error {
	set := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	use := func(name string) bool { return all || set[name] }

	if use("desc") {
		in.Description = *f.desc
	}
	if use("amount") {
		amount, err := core.ParseAmount(*f.amount)
		if err != nil {
			return err
		}
		in.Amount = amount
	}
	if use("category") {
		in.Category = *f.category
	}
	if use("method") {
		pm, err := core.ParsePaymentMethod(*f.method)
		if err != nil {
			return err
		}
		in.PaymentMethod = pm
	}
	if use("date") {
		d, err := parseDate(*f.date)
		if err != nil {
			return err
		}
		in.Date = d
	}
	if use("note") {
		in.Note = *f.note
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Now(), nil
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, core.ValidationError(fmt.Sprintf("invalid date %q, use YYYY-MM-DD", s), core.ErrInvalidDate)
	}
	return d, nil
}

// monthFlags registers -month and -year, defaulting to the current month,
// plus -prev and -next to page one month back or forward from them.
func monthFlags(fs *flag.FlagSet) func() (time.Month, int, error) {
	now := time.Now()
	month := fs.Int("month", int(now.Month()), "Month (1-12)")
	year := fs.Int("year", now.Year(), "Year")
	prev := fs.Bool("prev", false, "The month before -month/-year")
	next := fs.Bool("next", false, "The month after -month/-year")
	return func() (time.Month, int, error) {
		if *month < 1 || *month > 12 {
			return 0, 0, core.ValidationError(fmt.Sprintf("month must be between 1 and 12, got %d", *month), nil)
		}
		m, y := time.Month(*month), *year
		switch {
		case *prev && *next:
			return 0, 0, core.ValidationError("use either -prev or -next", nil)
		case *prev:
			m, y = query.ShiftMonth(m, y, -1)
		case *next:
			m, y = query.ShiftMonth(m, y, 1)
		}
		return m, y, nil
	}
}

func runAdd(ctx context.Context, a *app, args []string) error {
	fs := a.flags("add")
	ef := addExpenseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var in core.ExpenseInput
	if err := ef.apply(fs, &in, true); err != nil {
		return err
	}
	e, err := core.NewExpense(in)
	if err != nil {
		return err
	}

	book, err := a.book(ctx)
	if err != nil {
		return err
	}
	if _, err := book.Add(ctx, e); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Added %s (%s) %s\n", e.Description, core.FormatAmount(e.Amount), e.ID)
	return nil
}

func runEdit(ctx context.Context, a *app, args []string) error {
	fs := a.flags("edit")
	id := fs.String("id", "", "Expense id")
	ef := addExpenseFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return core.ValidationError("missing -id", core.ErrMissingID)
	}

	book, err := a.book(ctx)
	if err != nil {
		return err
	}
	existing, ok := book.Get(*id)
	if !ok {
		return core.NotFoundError(fmt.Sprintf("no expense with id %s", *id), nil)
	}
	patch := existing.Input()
	if err := ef.apply(fs, &patch, false); err != nil {
		return err
	}
	if _, err := book.Update(ctx, *id, patch); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Updated %s\n", *id)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := a.flags("delete")
	id := fs.String("id", "", "Expense id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return core.ValidationError("missing -id", core.ErrMissingID)
	}

	book, err := a.book(ctx)
	if err != nil {
		return err
	}
	if _, ok := book.Get(*id); !ok {
		fmt.Fprintf(a.stdout, "No expense with id %s, nothing deleted\n", *id)
		return nil
	}
	if _, err := book.Delete(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted %s\n", *id)
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := a.flags("list")
	selected := monthFlags(fs)
	category := fs.String("category", "", "Only this category")
	method := fs.String("method", "", "Only this payment method")
	search := fs.String("search", "", "Only descriptions containing this text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	month, year, err := selected()
	if err != nil {
		return err
	}
	f := query.Filters{Category: *category, Text: *search}
	if *method != "" {
		if f.PaymentMethod, err = core.ParsePaymentMethod(*method); err != nil {
			return err
		}
	}

	book, err := a.book(ctx)
	if err != nil {
		return err
	}
	days := book.Days(month, year, f)
	if len(days) == 0 {
		fmt.Fprintf(a.stdout, "No expenses in %s %d\n", month, year)
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, day := range days {
		fmt.Fprintf(tw, "%s\t\t\t\t\t\n", day.Label)
		for _, e := range day.Expenses {
			fmt.Fprintf(tw, "\t%s\t%s\t%s\t%s\t%s\n",
				core.FormatAmount(e.Amount), e.Description, e.Category, e.PaymentMethod, e.ID)
		}
	}
	return tw.Flush()
}

func runSummary(ctx context.Context, a *app, args []string) error {
	fs := a.flags("summary")
	selected := monthFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	month, year, err := selected()
	if err != nil {
		return err
	}

	book, err := a.book(ctx)
	if err != nil {
		return err
	}
	ov := book.Overview(month, year)

	fmt.Fprintf(a.stdout, "%s %d\n", month, year)
	fmt.Fprintf(a.stdout, "Total: %s (%d expenses)\n", core.FormatAmount(ov.Total), ov.Count)
	if ov.Top != nil {
		fmt.Fprintf(a.stdout, "Top category: %s\n", ov.Top.Name)
	}
	if len(ov.ByCategory) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	for _, c := range ov.ByCategory {
		fmt.Fprintf(tw, "  %s\t%s\t%.1f%%\n", c.Name, core.FormatAmount(c.Amount), c.Percent)
	}
	return tw.Flush()
}

func runMonths(_ context.Context, a *app, args []string) error {
	fs := a.flags("months")
	back := fs.Int("back", 1, "Years before the current one")
	forward := fs.Int("forward", 1, "Years after the current one")
	if err := fs.Parse(args); err != nil {
		return err
	}

	items, current := query.MonthIndexRange(*back, *forward, time.Now())
	for i, it := range items {
		marker := " "
		if i == current {
			marker = "*"
		}
		fmt.Fprintf(a.stdout, "%s %3d  %s %d\n", marker, i, it.Name, it.Year)
	}
	return nil
}
