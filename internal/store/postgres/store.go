// Package postgres provides a PostgreSQL-backed room store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/thraizz/coup-server-go/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS rooms (
    room_id TEXT PRIMARY KEY,
    version BIGINT NOT NULL,
    doc JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store persists room documents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Open connects to databaseURL and ensures the rooms table exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Create inserts version 1 of a room document.
func (s *Store) Create(ctx context.Context, roomID string, doc []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return 0, fmt.Errorf("room id is required")
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rooms (room_id, version, doc) VALUES ($1, 1, $2) ON CONFLICT (room_id) DO NOTHING`,
		roomID, string(doc),
	)
	if err != nil {
		return 0, fmt.Errorf("create room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return 0, store.ErrAlreadyExists
	}
	return 1, nil
}

// Read returns the latest snapshot of a room.
func (s *Store) Read(ctx context.Context, roomID string) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	roomID = strings.TrimSpace(roomID)

	var (
		snap    store.Snapshot
		version int64
		doc     string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT room_id, version, doc::text, updated_at FROM rooms WHERE room_id = $1`,
		roomID,
	).Scan(&snap.RoomID, &version, &doc, &snap.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Snapshot{}, store.ErrNotFound
		}
		return store.Snapshot{}, fmt.Errorf("read room: %w", err)
	}
	snap.Version = uint64(version)
	snap.Doc = []byte(doc)
	return snap, nil
}

// CompareAndSwap writes doc if the stored version equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, roomID string, expected uint64, doc []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	roomID = strings.TrimSpace(roomID)

	var version int64
	err := s.pool.QueryRow(ctx,
		`UPDATE rooms SET doc = $3, version = version + 1, updated_at = now()
		  WHERE room_id = $1 AND version = $2
		RETURNING version`,
		roomID, int64(expected), string(doc),
	).Scan(&version)
	if err == nil {
		return uint64(version), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("update room: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE room_id = $1)`, roomID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check room: %w", err)
	}
	if !exists {
		return 0, store.ErrNotFound
	}
	return 0, store.ErrConflict
}

// Delete removes a room document.
func (s *Store) Delete(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE room_id = $1`, strings.TrimSpace(roomID))
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
