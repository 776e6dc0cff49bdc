package expenses

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"smartexpense/internal/cache"
	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/query"
)

var (
	// ErrBookClosed is returned by mutations on a Book whose identity is no
	// longer active.
	ErrBookClosed = errors.New("expense book closed")
	// ErrDuplicateID is returned when adding an expense whose id is taken.
	ErrDuplicateID = errors.New("duplicate expense id")
)

// Notifier is told about every saved mutation. Failures are logged, never
// returned to the caller, since the collection is already durable.
type Notifier interface {
	Notify(ctx context.Context, ev core.ChangeEvent) error
}

// Options configure the Books created by a Tracker.
type Options struct {
	Notifier Notifier
	// Location is the calendar used for month and day bucketing. Nil means Local.
	Location  *time.Location
	CacheSize int
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

type monthKey struct {
	year  int
	month time.Month
}

// Book is the in-memory expense collection of one user.
// The mutex is held across saves, so Close waits for an in-flight save.
type Book struct {
	mu       sync.Mutex
	userID   string
	expenses []core.Expense
	closed   bool

	repo      *Repository
	notifier  Notifier
	loc       *time.Location
	overviews cache.Cache[monthKey, core.MonthOverview]
	logger    *slog.Logger
}

func newBook(userID string, expenses []core.Expense, repo *Repository, opts Options) *Book {
	size := opts.CacheSize
	if size <= 0 {
		size = 24
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Book{
		userID:    userID,
		expenses:  expenses,
		repo:      repo,
		notifier:  opts.Notifier,
		loc:       opts.Location,
		overviews: cache.NewLRU[monthKey, core.MonthOverview](size, opts.CacheTTL),
		logger: logger.With(
			applog.FieldComponent, applog.ComponentExpenses,
			applog.FieldUserID, userID),
	}
}

// OpenBook loads userID's collection and returns a Book for it.
func OpenBook(ctx context.Context, repo *Repository, userID string, opts Options) (*Book, error) {
	expenses, err := repo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newBook(userID, expenses, repo, opts), nil
}

func (b *Book) UserID() string { return b.userID }

// Add validates e and appends it. It returns the saved collection.
func (b *Book) Add(ctx context.Context, e core.Expense) ([]core.Expense, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	return b.mutate(ctx, core.OpAdded, e.ID, func(cur []core.Expense) ([]core.Expense, error) {
		if indexOf(cur, e.ID) >= 0 {
			return nil, core.ValidationError("an expense with this id already exists", ErrDuplicateID)
		}
		return append(cur, e), nil
	})
}

// Update replaces every field of the expense id except the id itself.
func (b *Book) Update(ctx context.Context, id string, patch core.ExpenseInput) ([]core.Expense, error) {
	return b.mutate(ctx, core.OpUpdated, id, func(cur []core.Expense) ([]core.Expense, error) {
		i := indexOf(cur, id)
		if i < 0 {
			return nil, core.NotFoundError("expense not found", nil)
		}
		updated, err := core.Update(cur[i], patch)
		if err != nil {
			return nil, err
		}
		cur[i] = updated
		return cur, nil
	})
}

// Delete removes the expense id. Deleting an unknown id changes nothing and
// does not write.
func (b *Book) Delete(ctx context.Context, id string) ([]core.Expense, error) {
	return b.mutate(ctx, core.OpDeleted, id, func(cur []core.Expense) ([]core.Expense, error) {
		i := indexOf(cur, id)
		if i < 0 {
			return nil, nil
		}
		return slices.Delete(cur, i, i+1), nil
	})
}

// mutate applies fn to a copy of the collection, saves the result and only
// then installs it. fn returning (nil, nil) means nothing changed.
func (b *Book) mutate(ctx context.Context, op core.ChangeOp, id string, fn func([]core.Expense) ([]core.Expense, error)) ([]core.Expense, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBookClosed
	}

	next, err := fn(slices.Clone(b.expenses))
	if err != nil {
		return nil, err
	}
	if next == nil {
		b.logger.DebugContext(ctx, "No-op mutation", applog.FieldOperation, string(op), applog.FieldExpenseID, id)
		return slices.Clone(b.expenses), nil
	}

	if err := b.repo.Save(ctx, b.userID, next); err != nil {
		return nil, err
	}

	b.expenses = next
	b.overviews.Purge()

	b.logger.InfoContext(ctx, "Expenses saved",
		applog.FieldOperation, string(op),
		applog.FieldExpenseID, id,
		applog.FieldCount, len(next))

	b.notify(ctx, core.ChangeEvent{
		UserID:    b.userID,
		Op:        op,
		ExpenseID: id,
		Count:     len(next),
		Total:     query.Total(next),
		Timestamp: time.Now().UTC(),
	})

	return slices.Clone(next), nil
}

func (b *Book) notify(ctx context.Context, ev core.ChangeEvent) {
	if b.notifier == nil {
		return
	}
	if err := b.notifier.Notify(ctx, ev); err != nil {
		b.logger.WarnContext(ctx, "Failed to publish change event",
			applog.FieldOperation, string(ev.Op),
			applog.FieldError, err)
	}
}

// Get returns the expense with the given id.
func (b *Book) Get(id string) (core.Expense, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if i := indexOf(b.expenses, id); i >= 0 {
		return b.expenses[i], true
	}
	return core.Expense{}, false
}

// All returns every expense, newest first.
func (b *Book) All() []core.Expense {
	b.mu.Lock()
	defer b.mu.Unlock()
	return query.SortByDateDescending(b.expenses)
}

func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.expenses)
}

// Month returns the filtered expenses of a calendar month, newest first.
func (b *Book) Month(month time.Month, year int, f query.Filters) []core.Expense {
	b.mu.Lock()
	defer b.mu.Unlock()
	return query.SortByDateDescending(query.MonthlyExpenses(b.expenses, month, year, b.loc, f))
}

// Days is Month grouped by calendar day.
func (b *Book) Days(month time.Month, year int, f query.Filters) []core.DayGroup {
	return query.GroupByCalendarDay(b.Month(month, year, f), b.loc)
}

// Overview summarises a month. Results are cached until the next mutation.
func (b *Book) Overview(month time.Month, year int) core.MonthOverview {
	key := monthKey{year: year, month: month}
	if ov, ok := b.overviews.Get(key); ok {
		return ov
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ov := query.MonthOverview(b.expenses, month, year, b.loc)
	if !b.closed {
		b.overviews.Set(key, ov)
	}
	return ov
}

// Close stops the book from accepting mutations. It blocks until an
// in-flight save has finished.
func (b *Book) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.overviews.Purge()
}

func indexOf(expenses []core.Expense, id string) int {
	return slices.IndexFunc(expenses, func(e core.Expense) bool { return e.ID == id })
}
