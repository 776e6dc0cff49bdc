package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"smartexpense/internal/core"
	"smartexpense/internal/storage"

	_ "modernc.org/sqlite"
)

var _ storage.KeyValueStore = (*Repository)(nil)

// Repository is a SQLite-backed key/value store. It also keeps the user
// accounts of the auth service.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" || strings.HasPrefix(dbPath, ":memory:") {
		return nil, fmt.Errorf("sqlite repository needs a file path, got %q", dbPath)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (r *Repository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	slog.DebugContext(ctx, "Stored entry", "key", key, "bytes", len(value))
	return nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// CreateUser inserts rec. It fails with storage.ErrDuplicate when the email is taken.
func (r *Repository) CreateUser(ctx context.Context, rec core.UserRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, rec.Email).Scan(&exists); err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return storage.ErrDuplicate
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, profile_image, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Email, rec.PasswordHash, rec.ProfileImage, createdAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", rec.ID)
	return nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (core.UserRecord, error) {
	return r.scanUser(ctx, `WHERE email = ?`, email)
}

func (r *Repository) UserByID(ctx context.Context, id string) (core.UserRecord, error) {
	return r.scanUser(ctx, `WHERE id = ?`, id)
}

// UpdateUser stores the mutable profile fields (name, profile image) of u.
func (r *Repository) UpdateUser(ctx context.Context, u core.User) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET name = ?, profile_image = ? WHERE id = ?`,
		u.Name, u.ProfileImage, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *Repository) scanUser(ctx context.Context, where string, arg any) (core.UserRecord, error) {
	var rec core.UserRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, profile_image, created_at
		FROM users `+where, arg).Scan(
		&rec.ID, &rec.Name, &rec.Email, &rec.PasswordHash, &rec.ProfileImage, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return core.UserRecord{}, fmt.Errorf("get user: %w", err)
	}
	return rec, nil
}
