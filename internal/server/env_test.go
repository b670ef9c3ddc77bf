package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/thraizz/coup-server-go/internal/lobby"
	"github.com/thraizz/coup-server-go/internal/room"
	"github.com/thraizz/coup-server-go/internal/store/memory"
)

type testEnv struct {
	rooms   *room.Manager
	lobbies *lobby.Manager
	service *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)
	rooms := room.NewManager(room.Options{Logger: logger, Store: memory.New(), Seed: 11})
	t.Cleanup(rooms.CloseAll)
	return &testEnv{
		rooms:   rooms,
		lobbies: lobby.NewManager(logger, rooms, 2, 6),
		service: NewService(rooms, logger),
	}
}

// startGame runs a lobby through to a started room and returns its id.
func (e *testEnv) startGame(t *testing.T, players ...string) string {
	t.Helper()
	snap, err := e.lobbies.Create(players[0])
	require.NoError(t, err)
	for _, p := range players[1:] {
		_, err := e.lobbies.Join(snap.Code, p)
		require.NoError(t, err)
	}
	_, err = e.lobbies.Start(context.Background(), snap.Code, players[0])
	require.NoError(t, err)
	return snap.Code
}
