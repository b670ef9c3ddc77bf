// Package sqlite provides a SQLite-backed room store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/thraizz/coup-server-go/internal/store"
	"github.com/thraizz/coup-server-go/internal/store/sqlite/migrations"
)

// Store persists room documents in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite room store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite serializes writers.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var count int
		if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, file).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if count > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, file, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
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

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO rooms (room_id, version, doc, updated_at) VALUES (?, 1, ?, ?)`,
		roomID, string(doc), toMillis(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, store.ErrAlreadyExists
		}
		return 0, fmt.Errorf("create room: %w", err)
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
		snap      store.Snapshot
		doc       string
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT room_id, version, doc, updated_at FROM rooms WHERE room_id = ?`,
		roomID,
	).Scan(&snap.RoomID, &snap.Version, &doc, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Snapshot{}, store.ErrNotFound
		}
		return store.Snapshot{}, fmt.Errorf("read room: %w", err)
	}
	snap.Doc = []byte(doc)
	snap.UpdatedAt = fromMillis(updatedAt)
	return snap, nil
}

// CompareAndSwap writes doc if the stored version equals expected.
func (s *Store) CompareAndSwap(ctx context.Context, roomID string, expected uint64, doc []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	roomID = strings.TrimSpace(roomID)

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE rooms SET doc = ?, version = version + 1, updated_at = ? WHERE room_id = ? AND version = ?`,
		string(doc), toMillis(time.Now()), roomID, expected,
	)
	if err != nil {
		return 0, fmt.Errorf("update room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update room: %w", err)
	}
	if affected == 1 {
		return expected + 1, nil
	}

	var exists int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE room_id = ?`, roomID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check room: %w", err)
	}
	if exists == 0 {
		return 0, store.ErrNotFound
	}
	return 0, store.ErrConflict
}

// Delete removes a room document.
func (s *Store) Delete(ctx context.Context, roomID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM rooms WHERE room_id = ?`, strings.TrimSpace(roomID))
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
