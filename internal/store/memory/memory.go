// Package memory provides an in-process Store.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/thraizz/coup-server-go/internal/store"
)

type record struct {
	version   uint64
	doc       []byte
	updatedAt time.Time
}

// Store keeps room documents in a map.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]record
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{rooms: make(map[string]record)}
}

// Create stores version 1 of a room document.
func (s *Store) Create(ctx context.Context, roomID string, doc []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	roomID = strings.TrimSpace(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[roomID]; exists {
		return 0, store.ErrAlreadyExists
	}
	s.rooms[roomID] = record{version: 1, doc: append([]byte(nil), doc...), updatedAt: time.Now().UTC()}
	return 1, nil
}

// Read returns the current snapshot.
func (s *Store) Read(ctx context.Context, roomID string) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	roomID = strings.TrimSpace(roomID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return store.Snapshot{}, store.ErrNotFound
	}
	return store.Snapshot{
		RoomID:    roomID,
		Version:   rec.version,
		Doc:       append([]byte(nil), rec.doc...),
		UpdatedAt: rec.updatedAt,
	}, nil
}

// CompareAndSwap writes doc if the stored version equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, roomID string, expected uint64, doc []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	roomID = strings.TrimSpace(roomID)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[roomID]
	if !ok {
		return 0, store.ErrNotFound
	}
	if rec.version != expected {
		return 0, store.ErrConflict
	}
	next := record{version: rec.version + 1, doc: append([]byte(nil), doc...), updatedAt: time.Now().UTC()}
	s.rooms[roomID] = next
	return next.version, nil
}

// Delete removes a room document.
func (s *Store) Delete(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	roomID = strings.TrimSpace(roomID)
	if _, ok := s.rooms[roomID]; !ok {
		return store.ErrNotFound
	}
	delete(s.rooms, roomID)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
