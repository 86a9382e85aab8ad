// Package store provides persistence for the tutor's local state.
package store

import (
	"context"
)

// Keys of the persisted state blobs.
const (
	ProgressKey = "aptitude_guru_progress"
	HistoryKey  = "aptitude_guru_chat_history"
)

// Repository persists opaque serialized blobs under fixed keys.
type Repository interface {
	// GetBlob returns the blob stored under key, or nil if none exists.
	GetBlob(ctx context.Context, key string) ([]byte, error)

	// PutBlob overwrites the blob stored under key.
	PutBlob(ctx context.Context, key string, value []byte) error

	// DeleteBlob removes the blob stored under key.
	DeleteBlob(ctx context.Context, key string) error

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close releases the backing storage.
	Close() error
}
