package expenses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/singleflight"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/storage"
)

// CorruptPolicy decides what Load does with stored content it cannot read.
type CorruptPolicy int

const (
	// TreatAsEmpty logs the problem and returns an empty collection.
	TreatAsEmpty CorruptPolicy = iota
	// FailOnCorrupt returns a StorageError.
	FailOnCorrupt
)

var ErrMissingUser = errors.New("missing user id")

// ParseCorruptPolicy accepts "treat-as-empty" and "fail".
func ParseCorruptPolicy(s string) (CorruptPolicy, error) {
	switch s {
	case "", "treat-as-empty":
		return TreatAsEmpty, nil
	case "fail":
		return FailOnCorrupt, nil
	default:
		return TreatAsEmpty, fmt.Errorf("unknown corrupt policy %q", s)
	}
}

func (p CorruptPolicy) String() string {
	if p == FailOnCorrupt {
		return "fail"
	}
	return "treat-as-empty"
}

// Repository loads and saves whole per-user expense collections.
type Repository struct {
	store  storage.KeyValueStore
	policy CorruptPolicy
	logger *slog.Logger
	loads  singleflight.Group
}

func NewRepository(store storage.KeyValueStore, policy CorruptPolicy, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:  store,
		policy: policy,
		logger: logger.With(applog.FieldComponent, applog.ComponentStorage),
	}
}

// Load returns the stored collection of userID, or an empty one when nothing
// is stored. Concurrent loads of the same user share one read, which runs
// detached from any single caller's cancellation. A caller whose ctx is done
// gets a StorageError, never an empty collection.
func (r *Repository) Load(ctx context.Context, userID string) ([]core.Expense, error) {
	if userID == "" {
		return nil, core.ValidationError("a signed-in user is required", ErrMissingUser)
	}
	if err := ctx.Err(); err != nil {
		return nil, interrupted(err)
	}

	v, err, _ := r.loads.Do(userID, func() (any, error) {
		return r.load(context.WithoutCancel(ctx), userID)
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, interrupted(err)
	}
	return slices.Clone(v.([]core.Expense)), nil
}

func (r *Repository) load(ctx context.Context, userID string) ([]core.Expense, error) {
	key := storage.ExpensesKey(userID)

	raw, ok, err := r.store.Get(ctx, key)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, interrupted(err)
	}
	if err != nil {
		return r.corrupt(ctx, userID, "read expenses", err)
	}
	if !ok || raw == "" {
		return []core.Expense{}, nil
	}

	var expenses []core.Expense
	if err := json.Unmarshal([]byte(raw), &expenses); err != nil {
		return r.corrupt(ctx, userID, "decode expenses", err)
	}
	expenses, err = r.valid(ctx, userID, expenses)
	if err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "Loaded expenses",
		applog.FieldUserID, userID,
		applog.FieldCount, len(expenses))
	return expenses, nil
}

// valid checks every decoded entry. Under FailOnCorrupt an invalid entry
// fails the load; under TreatAsEmpty it is logged and left out.
func (r *Repository) valid(ctx context.Context, userID string, expenses []core.Expense) ([]core.Expense, error) {
	out := make([]core.Expense, 0, len(expenses))
	for i, e := range expenses {
		err := e.Validate()
		if err == nil {
			out = append(out, e)
			continue
		}
		if r.policy == FailOnCorrupt {
			return nil, core.StorageError("stored expenses could not be read",
				fmt.Errorf("entry %d (%s): %w", i, e.ID, err))
		}
		r.logger.WarnContext(ctx, "Invalid stored expense skipped",
			applog.FieldUserID, userID,
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err)
	}
	return out, nil
}

func interrupted(err error) error {
	return core.StorageError("loading expenses was interrupted", err)
}

func (r *Repository) corrupt(ctx context.Context, userID, what string, err error) ([]core.Expense, error) {
	if r.policy == FailOnCorrupt {
		return nil, core.StorageError("stored expenses could not be read", fmt.Errorf("%s: %w", what, err))
	}
	r.logger.WarnContext(ctx, "Unreadable expenses treated as empty",
		applog.FieldUserID, userID,
		applog.FieldOperation, what,
		applog.FieldError, err)
	return []core.Expense{}, nil
}

// Save overwrites the stored collection of userID with a single write.
func (r *Repository) Save(ctx context.Context, userID string, expenses []core.Expense) error {
	if userID == "" {
		return core.ValidationError("a signed-in user is required", ErrMissingUser)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}

	body, err := json.Marshal(expenses)
	if err != nil {
		return core.StorageError("expenses could not be encoded", err)
	}
	if err := r.store.Set(ctx, storage.ExpensesKey(userID), string(body)); err != nil {
		r.logger.ErrorContext(ctx, "Failed to save expenses",
			applog.FieldUserID, userID,
			applog.FieldCount, len(expenses),
			applog.FieldError, err)
		return core.StorageError("expenses could not be saved", err)
	}

	r.logger.DebugContext(ctx, "Saved expenses",
		applog.FieldUserID, userID,
		applog.FieldCount, len(expenses))
	return nil
}
