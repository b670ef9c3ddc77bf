// Package storetest holds behaviour tests shared by every Store backend.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thraizz/coup-server-go/internal/store"
)

// Run exercises a Store implementation. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("create and read", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		version, err := s.Create(ctx, "ROOM01", []byte(`{"turn":1}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(1), version)

		snap, err := s.Read(ctx, "ROOM01")
		require.NoError(t, err)
		assert.Equal(t, "ROOM01", snap.RoomID)
		assert.Equal(t, uint64(1), snap.Version)
		assert.JSONEq(t, `{"turn":1}`, string(snap.Doc))
		assert.False(t, snap.UpdatedAt.IsZero())

		_, err = s.Create(ctx, "ROOM01", []byte(`{}`))
		assert.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("missing room", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Read(ctx, "NOPE")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = s.CompareAndSwap(ctx, "NOPE", 1, []byte(`{}`))
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, "NOPE"), store.ErrNotFound)
	})

	t.Run("compare and swap", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, "ROOM02", []byte(`{"turn":1}`))
		require.NoError(t, err)

		version, err := s.CompareAndSwap(ctx, "ROOM02", 1, []byte(`{"turn":2}`))
		require.NoError(t, err)
		assert.Equal(t, uint64(2), version)

		_, err = s.CompareAndSwap(ctx, "ROOM02", 1, []byte(`{"turn":99}`))
		assert.ErrorIs(t, err, store.ErrConflict)

		snap, err := s.Read(ctx, "ROOM02")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), snap.Version)
		assert.JSONEq(t, `{"turn":2}`, string(snap.Doc))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, "ROOM03", []byte(`{}`))
		require.NoError(t, err)

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.CompareAndSwap(ctx, "ROOM03", 1, []byte(`{"winner":true}`)); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins, "exactly one writer may win a version")

		snap, err := s.Read(ctx, "ROOM03")
		require.NoError(t, err)
		assert.Equal(t, uint64(2), snap.Version)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.Create(ctx, "ROOM04", []byte(`{}`))
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, "ROOM04"))
		_, err = s.Read(ctx, "ROOM04")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		s := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Create(ctx, "ROOM05", []byte(`{}`))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
