package expenses

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartexpense/internal/core"
	"smartexpense/internal/storage"
)

func TestRepository_LoadMissingIsEmpty(t *testing.T) {
	repo := NewRepository(newRecordingStore(), TreatAsEmpty, nil)

	got, err := repo.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRepository_RoundTripKeepsEveryField(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newRecordingStore(), FailOnCorrupt, nil)

	date := time.Date(2024, 3, 1, 8, 0, 0, 123456789, time.UTC)
	in := core.ExpenseInput{
		Description:   "Coffee",
		Amount:        decimal.RequireFromString("1234567.8901"),
		Category:      "Food",
		PaymentMethod: core.CreditCard,
		Date:          date,
		Note:          "with oat milk",
	}
	e, err := core.NewExpense(in)
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, "u1", []core.Expense{e}))
	got, err := repo.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, e.ID, got[0].ID)
	assert.Equal(t, e.Description, got[0].Description)
	assert.True(t, e.Amount.Equal(got[0].Amount), "amount %s != %s", e.Amount, got[0].Amount)
	assert.Equal(t, e.Category, got[0].Category)
	assert.Equal(t, e.PaymentMethod, got[0].PaymentMethod)
	assert.True(t, date.Equal(got[0].Date), "date %v != %v", date, got[0].Date)
	assert.Equal(t, e.Note, got[0].Note)
}

func TestRepository_LoadsNumericAmounts(t *testing.T) {
	store := newRecordingStore()
	require.NoError(t, store.Store.Set(context.Background(), storage.ExpensesKey("u1"),
		`[{"id":"1","description":"Coffee","amount":4.5,"category":"Food","paymentMethod":"Cash","date":"2024-03-01T08:00:00.000Z"}]`))

	got, err := NewRepository(store, FailOnCorrupt, nil).Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, decimal.RequireFromString("4.5").Equal(got[0].Amount))
	assert.Equal(t, core.Cash, got[0].PaymentMethod)
}

func TestRepository_CorruptContent(t *testing.T) {
	tests := []struct {
		name    string
		policy  CorruptPolicy
		wantErr bool
	}{
		{"treat as empty", TreatAsEmpty, false},
		{"fail on corrupt", FailOnCorrupt, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newRecordingStore()
			require.NoError(t, store.Store.Set(context.Background(), storage.ExpensesKey("u1"), "{not json"))

			got, err := NewRepository(store, tt.policy, nil).Load(context.Background(), "u1")
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrStorage)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestRepository_ReadFailure(t *testing.T) {
	store := newRecordingStore()
	store.failGets = true

	got, err := NewRepository(store, TreatAsEmpty, nil).Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewRepository(store, FailOnCorrupt, nil).Load(context.Background(), "u1")
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestRepository_SaveFailureIsStorageError(t *testing.T) {
	store := newRecordingStore()
	store.failSets = true

	err := NewRepository(store, TreatAsEmpty, nil).Save(context.Background(), "u1", nil)
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, err, errDiskFull)
}

func TestRepository_RequiresUser(t *testing.T) {
	repo := NewRepository(newRecordingStore(), TreatAsEmpty, nil)

	_, err := repo.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingUser)
	assert.ErrorIs(t, err, core.ErrValidation)

	assert.ErrorIs(t, repo.Save(context.Background(), "", nil), ErrMissingUser)
}

func TestRepository_UsersAreDisjoint(t *testing.T) {
	ctx := context.Background()
	store := newRecordingStore()
	repo := NewRepository(store, FailOnCorrupt, nil)
	day := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	a := mustExpense(t, "Rent", "800", "Bills", core.BankAccount, day)
	b := mustExpense(t, "Bus", "2", "Transport", core.Cash, day)
	require.NoError(t, repo.Save(ctx, "alice", []core.Expense{a}))
	require.NoError(t, repo.Save(ctx, "bob", []core.Expense{b}))

	gotA, err := repo.Load(ctx, "alice")
	require.NoError(t, err)
	gotB, err := repo.Load(ctx, "bob")
	require.NoError(t, err)

	require.Len(t, gotA, 1)
	require.Len(t, gotB, 1)
	assert.Equal(t, a.ID, gotA[0].ID)
	assert.Equal(t, b.ID, gotB[0].ID)
	assert.ElementsMatch(t, []string{"@expenses_alice", "@expenses_bob"}, store.Keys())
}

func TestParseCorruptPolicy(t *testing.T) {
	p, err := ParseCorruptPolicy("fail")
	require.NoError(t, err)
	assert.Equal(t, FailOnCorrupt, p)
	assert.Equal(t, "fail", p.String())

	p, err = ParseCorruptPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TreatAsEmpty, p)

	_, err = ParseCorruptPolicy("panic")
	assert.Error(t, err)
}

func seedAlice(t *testing.T, repo *Repository) []core.Expense {
	t.Helper()
	day := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	stored := []core.Expense{
		mustExpense(t, "Rent", "800", "Bills", core.BankAccount, day),
		mustExpense(t, "Coffee", "4.5", "Food", core.Cash, day),
		mustExpense(t, "Bus", "2", "Transport", core.Cash, day),
	}
	require.NoError(t, repo.Save(context.Background(), "alice", stored))
	return stored
}

func TestRepository_InterruptedLoadIsNotEmpty(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	cancelled, cancel2 := context.WithCancel(context.Background())
	cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want error
	}{
		{"cancelled", cancelled, context.Canceled},
		{"deadline exceeded", expired, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRepository(newRecordingStore(), TreatAsEmpty, nil)
			seedAlice(t, repo)

			got, err := repo.Load(tt.ctx, "alice")
			assert.ErrorIs(t, err, core.ErrStorage)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, got)

			got, err = repo.Load(context.Background(), "alice")
			require.NoError(t, err)
			assert.Len(t, got, 3)
		})
	}
}

func TestRepository_StoreReportingCancellationFailsLoad(t *testing.T) {
	store := newRecordingStore()
	repo := NewRepository(store, TreatAsEmpty, nil)
	seedAlice(t, repo)

	// the store sees a done context even though the shared read is detached
	_, err := repo.load(canceledContext(), "alice")
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRepository_CallerCancelledDuringSharedRead(t *testing.T) {
	store := newRecordingStore()
	repo := NewRepository(store, TreatAsEmpty, nil)
	seedAlice(t, repo)

	reached, release := store.blockReads(storage.ExpensesKey("alice"))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := repo.Load(ctx, "alice")
		errCh <- err
	}()

	<-reached
	cancel()
	release()

	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)

	got, err := repo.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRepository_InvalidStoredEntries(t *testing.T) {
	const raw = `[` +
		`{"id":"1","description":"Coffee","amount":"4.5","category":"Food","paymentMethod":"Cash","date":"2024-03-01T08:00:00Z"},` +
		`{"id":"2","description":"Gold","amount":"9","category":"Other","paymentMethod":"Bitcoin","date":"2024-03-01T08:00:00Z"}` +
		`]`

	store := newRecordingStore()
	require.NoError(t, store.Store.Set(context.Background(), storage.ExpensesKey("u1"), raw))

	got, err := NewRepository(store, TreatAsEmpty, nil).Load(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	_, err = NewRepository(store, FailOnCorrupt, nil).Load(context.Background(), "u1")
	assert.ErrorIs(t, err, core.ErrStorage)
	assert.ErrorIs(t, err, core.ErrInvalidPaymentMethod)
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
