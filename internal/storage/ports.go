package storage

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by stores used after Close.
	ErrClosed = errors.New("store closed")
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique record already exists.
	ErrDuplicate = errors.New("record already exists")
)

// KeyValueStore is the durable text store backing sessions and expense
// collections. Set replaces the whole value of a key atomically: a
// concurrent or later Get sees either the old or the new value, never a mix.
type KeyValueStore interface {
	// Get returns the value of key and whether it was present.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
