package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"smartexpense/internal/authserver"
	"smartexpense/internal/core"
)

// setupEnv points expensectl at a fresh auth service and sqlite file.
func setupEnv(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv, err := authserver.New(authserver.NewMemoryUsers(), authserver.Config{
		JWTSecret:  []byte("0123456789abcdef0123456789abcdef"),
		UploadDir:  t.TempDir(),
		BcryptCost: bcrypt.MinCost,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	t.Setenv("API_BASE_URL", ts.URL)
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "expenses.db"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), err
}

func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, "", args...)
	require.NoError(t, err, "expensectl %s", strings.Join(args, " "))
	return out
}

// addedID extracts the id printed by the add command.
func addedID(t *testing.T, out string) string {
	t.Helper()
	fields := strings.Fields(out)
	require.NotEmpty(t, fields)
	return fields[len(fields)-1]
}

func TestRun_Usage(t *testing.T) {
	out, err := execute(t, "")
	require.NoError(t, err)
	assert.Contains(t, out, "Usage: expensectl")

	_, err = execute(t, "", "frobnicate")
	assert.ErrorContains(t, err, `unknown command "frobnicate"`)
}

func TestRun_ExpenseLifecycle(t *testing.T) {
	setupEnv(t)

	out := mustExecute(t, "signup", "-name", "Ada", "-email", "ada@example.com", "-password", "secret")
	assert.Contains(t, out, "Welcome, Ada!")

	out = mustExecute(t, "whoami")
	assert.Contains(t, out, "ada@example.com")

	coffee := addedID(t, mustExecute(t, "add", "-desc", "Coffee", "-amount", "4,50", "-category", "Food", "-method", "cash", "-date", "2024-03-01"))
	mustExecute(t, "add", "-desc", "Dinner", "-amount", "30", "-category", "Food", "-method", "card", "-date", "2024-03-05")
	bus := addedID(t, mustExecute(t, "add", "-desc", "Bus", "-amount", "2", "-category", "Transport", "-date", "2024-03-05"))

	out = mustExecute(t, "list", "-month", "3", "-year", "2024")
	assert.Contains(t, out, "Fri Mar 01 2024")
	assert.Contains(t, out, "Tue Mar 05 2024")
	assert.Contains(t, out, "Coffee")
	assert.Less(t, strings.Index(out, "Mar 05"), strings.Index(out, "Mar 01"), "newest day first")

	out = mustExecute(t, "list", "-month", "3", "-year", "2024", "-category", "Transport")
	assert.Contains(t, out, "Bus")
	assert.NotContains(t, out, "Coffee")

	out = mustExecute(t, "summary", "-month", "3", "-year", "2024")
	assert.Contains(t, out, "Total: 36.50 (3 expenses)")
	assert.Contains(t, out, "Top category: Food")

	mustExecute(t, "edit", "-id", coffee, "-amount", "5")
	out = mustExecute(t, "summary", "-month", "3", "-year", "2024")
	assert.Contains(t, out, "Total: 37.00")

	mustExecute(t, "delete", "-id", bus)
	out = mustExecute(t, "delete", "-id", bus)
	assert.Contains(t, out, "nothing deleted")

	out = mustExecute(t, "list", "-month", "3", "-year", "2024")
	assert.NotContains(t, out, "Bus")
	assert.Contains(t, out, "Coffee")

	out = mustExecute(t, "list", "-month", "4", "-year", "2024")
	assert.Contains(t, out, "No expenses in April 2024")

	out = mustExecute(t, "list", "-month", "4", "-year", "2024", "-prev")
	assert.Contains(t, out, "Coffee", "-prev pages back to March")
	out = mustExecute(t, "summary", "-month", "2", "-year", "2024", "-next")
	assert.Contains(t, out, "March 2024")
	out = mustExecute(t, "summary", "-month", "12", "-year", "2023", "-next")
	assert.Contains(t, out, "January 2024")

	mustExecute(t, "logout")
	_, err := execute(t, "", "list")
	assert.ErrorIs(t, err, core.ErrAuth)
}

func TestRun_IdentitiesDoNotShareExpenses(t *testing.T) {
	setupEnv(t)

	mustExecute(t, "signup", "-name", "Ada", "-email", "ada@example.com", "-password", "secret")
	mustExecute(t, "add", "-desc", "Coffee", "-amount", "4.5", "-date", "2024-03-01")
	mustExecute(t, "logout")

	mustExecute(t, "signup", "-name", "Bob", "-email", "bob@example.com", "-password", "secret")
	out := mustExecute(t, "list", "-month", "3", "-year", "2024")
	assert.Contains(t, out, "No expenses")
	mustExecute(t, "logout")

	out, err := execute(t, "secret\n", "login", "-email", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "Logged in as Ada")

	out = mustExecute(t, "list", "-month", "3", "-year", "2024")
	assert.Contains(t, out, "Coffee")
}

func TestRun_Errors(t *testing.T) {
	setupEnv(t)

	_, err := execute(t, "", "login", "-email", "nobody@example.com", "-password", "x")
	assert.ErrorIs(t, err, core.ErrAuth)

	_, err = execute(t, "", "whoami")
	assert.ErrorIs(t, err, core.ErrAuth)

	mustExecute(t, "signup", "-name", "Ada", "-email", "ada@example.com", "-password", "secret")

	tests := []struct {
		name string
		args []string
		kind error
	}{
		{"negative amount", []string{"add", "-desc", "x", "-amount", "-3"}, core.ErrValidation},
		{"not a number", []string{"add", "-desc", "x", "-amount", "abc"}, core.ErrValidation},
		{"missing description", []string{"add", "-amount", "3"}, core.ErrValidation},
		{"unknown method", []string{"add", "-desc", "x", "-amount", "3", "-method", "bitcoin"}, core.ErrValidation},
		{"bad date", []string{"add", "-desc", "x", "-amount", "3", "-date", "03/01/2024"}, core.ErrValidation},
		{"bad month", []string{"summary", "-month", "13"}, core.ErrValidation},
		{"prev and next", []string{"summary", "-prev", "-next"}, core.ErrValidation},
		{"edit unknown", []string{"edit", "-id", "nope", "-amount", "1"}, core.ErrNotFound},
		{"edit without id", []string{"edit"}, core.ErrValidation},
		{"export unconfigured", []string{"export"}, core.ErrValidation},
		{"watch unconfigured", []string{"watch"}, core.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "", tt.args...)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestRun_Months(t *testing.T) {
	setupEnv(t)

	out := mustExecute(t, "months", "-back", "0", "-forward", "0")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 12)
	assert.Equal(t, 1, strings.Count(out, "*"))
}

func TestImageURL(t *testing.T) {
	assert.Equal(t, "http://api/uploads/a.png", imageURL("http://api/", "/uploads/a.png"))
	assert.Equal(t, "https://cdn/x.png", imageURL("http://api", "https://cdn/x.png"))
}
