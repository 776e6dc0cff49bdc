package expenses

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
)

// ErrSuperseded is returned by Activate when a newer Activate or Deactivate
// started while the collection was loading. The loaded data is discarded.
var ErrSuperseded = errors.New("identity changed while loading expenses")

// Tracker owns the Book of the active identity.
type Tracker struct {
	repo   *Repository
	opts   Options
	logger *slog.Logger

	mu     sync.Mutex
	gen    uint64
	active *Book
}

func NewTracker(repo *Repository, opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		repo:   repo,
		opts:   opts,
		logger: logger.With(applog.FieldComponent, applog.ComponentExpenses),
	}
}

// Activate switches to the identity of sess. The previous Book is closed
// before the new collection is read, and the new Book is installed only if
// no other switch happened in the meantime.
func (t *Tracker) Activate(ctx context.Context, sess core.Session) (*Book, error) {
	if !sess.Valid() {
		return nil, core.AuthError("please log in first", nil)
	}

	t.mu.Lock()
	t.gen++
	gen := t.gen
	prev := t.active
	t.active = nil
	t.mu.Unlock()

	if prev != nil {
		prev.Close()
	}

	expenses, err := t.repo.Load(ctx, sess.User.ID)
	if err != nil {
		return nil, err
	}
	book := newBook(sess.User.ID, expenses, t.repo, t.opts)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		book.Close()
		t.logger.InfoContext(ctx, "Discarded stale expense load",
			applog.FieldUserID, sess.User.ID,
			applog.FieldGeneration, gen)
		return nil, ErrSuperseded
	}
	t.active = book

	t.logger.InfoContext(ctx, "Activated expense book",
		applog.FieldUserID, sess.User.ID,
		applog.FieldCount, len(expenses),
		applog.FieldGeneration, gen)
	return book, nil
}

// Deactivate closes the active Book, if any.
func (t *Tracker) Deactivate() {
	t.mu.Lock()
	t.gen++
	prev := t.active
	t.active = nil
	t.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// Active returns the current Book.
func (t *Tracker) Active() (*Book, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active, t.active != nil
}
