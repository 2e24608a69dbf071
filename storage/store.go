package storage

import (
	"context"
	"errors"
)

var (
	ErrEmptyKey      = errors.New("keys must not be empty")
	ErrInvalidBackup = errors.New("backup is not a JSON object")
	ErrClosed        = errors.New("store is closed")
)

// Update describes a change to a single key. Deleted updates carry no
// Value.
type Update struct {
	Key     string
	Value   []byte
	Deleted bool
}

type Store interface {
	Set(ctx context.Context, key string, value []byte) error

	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Del removes keys and returns how many of them existed.
	Del(ctx context.Context, keys ...string) (int, error)

	Restore(values []byte) error
	Backup() ([]byte, error)

	// ListenToUpdates returns a channel receiving every later change. The
	// channel is closed when the store is closed. Updates are dropped for a
	// listener whose channel is full.
	ListenToUpdates() <-chan *Update

	// StopListening closes a channel returned by ListenToUpdates.
	StopListening(updates <-chan *Update)

	Close() error
}
