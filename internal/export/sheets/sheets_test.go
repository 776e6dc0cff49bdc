package sheets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"smartexpense/internal/core"
)

func testExpenses() []core.Expense {
	return []core.Expense{
		{ID: "2", Description: "Dinner", Amount: decimal.RequireFromString("30"), Category: "Food",
			PaymentMethod: core.CreditCard, Date: time.Date(2024, 3, 5, 20, 0, 0, 0, time.UTC)},
		{ID: "1", Description: "Coffee", Amount: decimal.RequireFromString("4.5"), Category: "Food",
			PaymentMethod: core.Cash, Date: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), Note: "oat"},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(testExpenses(), time.UTC)

	require.Len(t, rows, 2)
	assert.Equal(t, []any{"2024-03-01", "Coffee", "Food", "Cash", "4.50", "oat", "1"}, rows[0])
	assert.Equal(t, []any{"2024-03-05", "Dinner", "Food", "Credit Card", "30.00", "", "2"}, rows[1])
}

func TestYearPrefixedName(t *testing.T) {
	assert.Equal(t, "2024 Expenses", yearPrefixedName("Expenses", 2024))
	assert.Equal(t, "2024 Expenses", yearPrefixedName("2024 Expenses", 2024))
	assert.Equal(t, "2024", yearPrefixedName(" ", 2024))
	assert.Equal(t, "'Bob''s 2024'!A:G", a1Range("Bob's 2024", "A:G"))
}

// fakeSheets answers the two Sheets API calls the exporter makes.
type fakeSheets struct {
	mu       sync.Mutex
	empty    bool
	appended [][]any
	paths    []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet:
		if f.empty {
			io.WriteString(w, `{"range":"x"}`)
			return
		}
		io.WriteString(w, `{"range":"x","values":[["Date"]]}`)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.appended = append(f.appended, vr.Values...)
		json.NewEncoder(w).Encode(gsheet.AppendValuesResponse{Updates: &gsheet.UpdateValuesResponse{
			UpdatedRange: "'2024 Expenses'!A2:G3",
			UpdatedRows:  int64(len(vr.Values)),
		}})
	default:
		http.NotFound(w, r)
	}
}

func newTestExporter(t *testing.T, fake *fakeSheets) *Exporter {
	t.Helper()
	ts := httptest.NewServer(fake)
	t.Cleanup(ts.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(ts.URL+"/"),
		goption.WithoutAuthentication())
	require.NoError(t, err)
	return NewWithService(svc, "sheet-id", "Expenses", nil)
}

func TestExportMonth_EmptyTabGetsHeader(t *testing.T) {
	fake := &fakeSheets{empty: true}
	ex := newTestExporter(t, fake)

	res, err := ex.ExportMonth(context.Background(), 2024, testExpenses(), time.UTC)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Rows)
	require.Len(t, fake.appended, 3)
	assert.Equal(t, "Date", fake.appended[0][0])
	assert.Equal(t, "Coffee", fake.appended[1][1])
	assert.Contains(t, fake.paths[0], "/v4/spreadsheets/sheet-id/values/")
}

func TestExportMonth_AppendsWithoutHeader(t *testing.T) {
	fake := &fakeSheets{}
	ex := newTestExporter(t, fake)

	res, err := ex.ExportMonth(context.Background(), 2024, testExpenses(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, "'2024 Expenses'!A2:G3", res.Range)
	require.Len(t, fake.appended, 2)
	assert.Equal(t, "Coffee", fake.appended[0][1])
}

func TestExportMonth_NothingToWrite(t *testing.T) {
	fake := &fakeSheets{}
	ex := newTestExporter(t, fake)

	res, err := ex.ExportMonth(context.Background(), 2024, nil, time.UTC)
	require.NoError(t, err)
	assert.Zero(t, res.Rows)
	assert.Len(t, fake.paths, 1, "only the emptiness probe is sent")
}

func TestNew_RequiresSpreadsheetAndCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err = New(context.Background(), Config{SpreadsheetID: "id"}, nil)
	assert.ErrorContains(t, err, "missing service account credentials")

	_, err = New(context.Background(), Config{SpreadsheetID: "id", CredentialsFile: "/does/not/exist.json"}, nil)
	assert.ErrorContains(t, err, "read service account file")
}
