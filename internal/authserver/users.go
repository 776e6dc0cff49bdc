package authserver

import (
	"context"
	"strings"
	"sync"

	"smartexpense/internal/core"
	"smartexpense/internal/storage"
)

// UserStore persists accounts. Lookups of missing users return
// storage.ErrNotFound; creating a second account for an email returns
// storage.ErrDuplicate.
type UserStore interface {
	CreateUser(ctx context.Context, rec core.UserRecord) error
	UserByEmail(ctx context.Context, email string) (core.UserRecord, error)
	UserByID(ctx context.Context, id string) (core.UserRecord, error)
	UpdateUser(ctx context.Context, u core.User) error
}

// MemoryUsers is an in-process UserStore.
type MemoryUsers struct {
	mu      sync.RWMutex
	byID    map[string]core.UserRecord
	byEmail map[string]string
}

var _ UserStore = (*MemoryUsers)(nil)

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{
		byID:    make(map[string]core.UserRecord),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryUsers) CreateUser(_ context.Context, rec core.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(rec.Email)
	if _, ok := m.byEmail[email]; ok {
		return storage.ErrDuplicate
	}
	if _, ok := m.byID[rec.ID]; ok {
		return storage.ErrDuplicate
	}
	m.byID[rec.ID] = rec
	m.byEmail[email] = rec.ID
	return nil
}

func (m *MemoryUsers) UserByEmail(_ context.Context, email string) (core.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return core.UserRecord{}, storage.ErrNotFound
	}
	return m.byID[id], nil
}

func (m *MemoryUsers) UserByID(_ context.Context, id string) (core.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.byID[id]
	if !ok {
		return core.UserRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

// UpdateUser changes name and profile image. Email is immutable.
func (m *MemoryUsers) UpdateUser(_ context.Context, u core.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byID[u.ID]
	if !ok {
		return storage.ErrNotFound
	}
	rec.Name = u.Name
	rec.ProfileImage = u.ProfileImage
	m.byID[u.ID] = rec
	return nil
}
