// Package store defines versioned persistence for room documents.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no document exists for a room.
	ErrNotFound = errors.New("room document not found")
	// ErrAlreadyExists is returned by Create when the room already has a document.
	ErrAlreadyExists = errors.New("room document already exists")
	// ErrConflict is returned by CompareAndSwap when the stored version moved on.
	ErrConflict = errors.New("room document version conflict")
)

// Snapshot is a stored document and the version it was written at.
type Snapshot struct {
	RoomID    string
	Version   uint64
	Doc       []byte
	UpdatedAt time.Time
}

// Store holds one versioned document per room. Versions start at 1 and
// increase by one on every successful write.
type Store interface {
	// Create stores the first version of a room document.
	Create(ctx context.Context, roomID string, doc []byte) (uint64, error)
	// Read returns the latest snapshot of a room.
	Read(ctx context.Context, roomID string) (Snapshot, error)
	// CompareAndSwap replaces the document only if the stored version equals
	// expected, returning the new version. Otherwise it returns ErrConflict.
	CompareAndSwap(ctx context.Context, roomID string, expected uint64, doc []byte) (uint64, error)
	// Delete removes a room document.
	Delete(ctx context.Context, roomID string) error
	// Close releases resources held by the store.
	Close() error
}
