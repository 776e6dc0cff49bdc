package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/storage"
)

// API is the remote half of the session lifecycle. *Client implements it.
type API interface {
	Signup(ctx context.Context, req SignupRequest) (core.Session, error)
	Login(ctx context.Context, creds Credentials) (core.Session, error)
	Profile(ctx context.Context, token string) (core.User, error)
	UpdateProfile(ctx context.Context, token string, upd ProfileUpdate) (core.User, error)
}

var _ API = (*Client)(nil)

// Manager persists the session locally around the remote calls. It keeps no
// current user of its own: callers pass the session they hold.
type Manager struct {
	api    API
	store  storage.KeyValueStore
	logger *slog.Logger
}

func NewManager(api API, store storage.KeyValueStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:    api,
		store:  store,
		logger: logger.With(applog.FieldComponent, applog.ComponentSession),
	}
}

// Login authenticates and persists the resulting session.
func (m *Manager) Login(ctx context.Context, email, password string) (core.Session, error) {
	sess, err := m.api.Login(ctx, Credentials{Email: email, Password: password})
	if err != nil {
		m.logFailure(ctx, applog.OpLogin, err)
		return core.Session{}, err
	}
	if err := m.persist(ctx, sess); err != nil {
		return core.Session{}, err
	}
	m.logger.InfoContext(ctx, "Logged in", applog.FieldUserID, sess.User.ID)
	return sess, nil
}

// Signup creates an account and persists the resulting session.
func (m *Manager) Signup(ctx context.Context, name, email, password string) (core.Session, error) {
	sess, err := m.api.Signup(ctx, SignupRequest{Name: name, Email: email, Password: password})
	if err != nil {
		m.logFailure(ctx, applog.OpSignup, err)
		return core.Session{}, err
	}
	if err := m.persist(ctx, sess); err != nil {
		return core.Session{}, err
	}
	m.logger.InfoContext(ctx, "Signed up", applog.FieldUserID, sess.User.ID)
	return sess, nil
}

// Restore returns the persisted session, if any. It never contacts the
// server, so an expired token only shows up on the next remote call.
// Unreadable records are treated as absent.
func (m *Manager) Restore(ctx context.Context) (core.Session, bool, error) {
	raw, ok, err := m.store.Get(ctx, storage.SessionKey)
	if err != nil {
		m.logger.WarnContext(ctx, "Session storage unreadable, starting signed out",
			applog.FieldOperation, applog.OpRestore,
			applog.FieldError, err)
		return core.Session{}, false, nil
	}
	if !ok {
		return core.Session{}, false, nil
	}

	var sess core.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil || !sess.Valid() {
		m.logger.WarnContext(ctx, "Discarding unreadable session record",
			applog.FieldOperation, applog.OpRestore,
			applog.FieldError, err)
		return core.Session{}, false, nil
	}
	return sess, true, nil
}

// Logout forgets the persisted session. The token itself stays valid on
// the server until it expires.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.store.Delete(ctx, storage.SessionKey); err != nil {
		return core.StorageError("could not clear the saved session", err)
	}
	m.logger.InfoContext(ctx, "Logged out")
	return nil
}

// Profile fetches the current profile and refreshes the persisted snapshot.
func (m *Manager) Profile(ctx context.Context, sess core.Session) (core.User, error) {
	user, err := m.api.Profile(ctx, sess.Token)
	if err != nil {
		m.logFailure(ctx, applog.OpProfile, err)
		return core.User{}, err
	}
	m.refresh(ctx, sess, user)
	return user, nil
}

// UpdateProfile changes name and/or image and refreshes the persisted snapshot.
func (m *Manager) UpdateProfile(ctx context.Context, sess core.Session, upd ProfileUpdate) (core.User, error) {
	user, err := m.api.UpdateProfile(ctx, sess.Token, upd)
	if err != nil {
		m.logFailure(ctx, applog.OpProfile, err)
		return core.User{}, err
	}
	m.refresh(ctx, sess, user)
	m.logger.InfoContext(ctx, "Profile updated", applog.FieldUserID, user.ID)
	return user, nil
}

func (m *Manager) persist(ctx context.Context, sess core.Session) error {
	body, err := json.Marshal(sess)
	if err != nil {
		return core.StorageError("could not encode the session", err)
	}
	if err := m.store.Set(ctx, storage.SessionKey, string(body)); err != nil {
		return core.StorageError("could not save the session", err)
	}
	return nil
}

// refresh rewrites the persisted user snapshot when sess is the persisted
// session. A failure only costs a stale cached profile, so it is logged.
func (m *Manager) refresh(ctx context.Context, sess core.Session, user core.User) {
	stored, ok, _ := m.Restore(ctx)
	if !ok || stored.Token != sess.Token {
		return
	}
	stored.User = user
	if err := m.persist(ctx, stored); err != nil {
		m.logger.WarnContext(ctx, "Failed to refresh saved profile", applog.FieldError, err)
	}
}

func (m *Manager) logFailure(ctx context.Context, op string, err error) {
	m.logger.WarnContext(ctx, "Session call failed",
		applog.FieldOperation, op,
		applog.FieldErrorType, errorType(err),
		applog.FieldError, err)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, core.ErrValidation):
		return applog.ErrorTypeValidation
	case errors.Is(err, core.ErrAuth):
		return applog.ErrorTypeAuth
	case errors.Is(err, core.ErrNotFound):
		return applog.ErrorTypeNotFound
	case errors.Is(err, core.ErrStorage):
		return applog.ErrorTypeStorage
	case errors.Is(err, core.ErrNetwork):
		return applog.ErrorTypeNetwork
	default:
		return applog.ErrorTypeInternal
	}
}
