// Package sheets exports a month of expenses to a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
)

// Header is the first row written to an empty tab.
var Header = []any{"Date", "Description", "Category", "Payment Method", "Amount", "Note", "ID"}

type Config struct {
	SpreadsheetID string
	// SheetName is the tab base name; the export year is prefixed, e.g. "2024 Expenses".
	SheetName string
	// CredentialsJSON or CredentialsFile hold a service account key. When both
	// are empty GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE and
	// GOOGLE_APPLICATION_CREDENTIALS are consulted in that order.
	CredentialsJSON []byte
	CredentialsFile string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *slog.Logger
}

// Result describes what an export wrote.
type Result struct {
	Range string
	Rows  int
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Exporter, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, logger), nil
}

// NewWithService wraps an already configured Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *slog.Logger) *Exporter {
	if sheetName == "" {
		sheetName = "Expenses"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.With(applog.FieldComponent, applog.ComponentExport),
	}
}

func credentials(cfg Config) ([]byte, error) {
	if len(cfg.CredentialsJSON) > 0 {
		return cfg.CredentialsJSON, nil
	}
	file := cfg.CredentialsFile
	if file == "" {
		if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
			return []byte(inline), nil
		}
		file = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	}
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// ExportMonth appends the given expenses, oldest first, to the tab of year.
// The header row is written first when the tab is empty.
func (e *Exporter) ExportMonth(ctx context.Context, year int, expenses []core.Expense, loc *time.Location) (Result, error) {
	if e.svc == nil {
		return Result{}, errors.New("sheets service not initialized")
	}
	tab := yearPrefixedName(e.sheetName, year)
	rng := a1Range(tab, "A:G")

	rows := Rows(expenses, loc)
	existing, err := e.svc.Spreadsheets.Values.Get(e.spreadsheetID, a1Range(tab, "A1:A1")).Context(ctx).Do()
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", tab, err)
	}
	if len(existing.Values) == 0 {
		rows = append([][]any{Header}, rows...)
	}
	if len(rows) == 0 {
		return Result{Range: rng}, nil
	}

	resp, err := e.svc.Spreadsheets.Values.Append(e.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return Result{}, fmt.Errorf("append to %s: %w", tab, err)
	}

	res := Result{Range: rng, Rows: len(rows)}
	if resp.Updates != nil {
		res.Range = resp.Updates.UpdatedRange
		res.Rows = int(resp.Updates.UpdatedRows)
	}

	e.logger.InfoContext(ctx, "Exported expenses",
		applog.FieldYear, year,
		applog.FieldCount, len(expenses),
		"range", res.Range)
	return res, nil
}

// Rows renders expenses as sheet rows, oldest first.
func Rows(expenses []core.Expense, loc *time.Location) [][]any {
	if loc == nil {
		loc = time.Local
	}
	sorted := make([]core.Expense, len(expenses))
	copy(sorted, expenses)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	rows := make([][]any, 0, len(sorted))
	for _, x := range sorted {
		rows = append(rows, []any{
			x.Date.In(loc).Format("2006-01-02"),
			x.Description,
			x.Category,
			x.PaymentMethod.String(),
			x.Amount.StringFixed(2),
			x.Note,
			x.ID,
		})
	}
	return rows
}

func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return fmt.Sprintf("%d", year)
	}
	if strings.HasPrefix(base, fmt.Sprintf("%d ", year)) {
		return base
	}
	return fmt.Sprintf("%d %s", year, base)
}

// a1Range quotes tab so names with spaces are valid A1 notation.
func a1Range(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}
