package expenses

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"smartexpense/internal/core"
	"smartexpense/internal/storage/memory"
)

var errDiskFull = errors.New("disk full")

// recordingStore wraps a memory store, counts writes and can be told to fail
// them or to block reads of one key.
type recordingStore struct {
	*memory.Store

	mu        sync.Mutex
	sets      int
	failSets  bool
	failGets  bool
	blockKey  string
	blockCh   chan struct{}
	reachedCh chan struct{}
}

func newRecordingStore() *recordingStore {
	return &recordingStore{Store: memory.New()}
}

func (s *recordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	failGets := s.failGets
	block := s.blockCh
	reached := s.reachedCh
	blockKey := s.blockKey
	s.mu.Unlock()

	if block != nil && key == blockKey {
		close(reached)
		<-block
	}
	if failGets {
		return "", false, errDiskFull
	}
	// sql and redis clients fail reads on a done context
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	return s.Store.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSets {
		return errDiskFull
	}
	s.sets++
	return s.Store.Set(ctx, key, value)
}

func (s *recordingStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func (s *recordingStore) setFailSets(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSets = v
}

// blockReads makes the next Get of key wait until the returned release func
// is called. reached is closed once the Get has started.
func (s *recordingStore) blockReads(key string) (reached <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockKey = key
	s.blockCh = make(chan struct{})
	s.reachedCh = make(chan struct{})
	ch := s.blockCh
	return s.reachedCh, func() {
		s.mu.Lock()
		s.blockCh = nil
		s.mu.Unlock()
		close(ch)
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []core.ChangeEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, ev core.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return n.err
}

func mustExpense(t *testing.T, desc, amount, category string, pm core.PaymentMethod, date time.Time) core.Expense {
	t.Helper()
	e, err := core.NewExpense(core.ExpenseInput{
		Description:   desc,
		Amount:        decimal.RequireFromString(amount),
		Category:      category,
		PaymentMethod: pm,
		Date:          date,
	})
	require.NoError(t, err)
	return e
}

func session(id string) core.Session {
	return core.Session{Token: "token-" + id, User: core.User{ID: id, Name: id, Email: id + "@example.com"}}
}
