package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStarter struct {
	rooms map[string][]string
	err   error
}

func (f *fakeStarter) StartRoom(_ context.Context, roomID string, players []string) error {
	if f.err != nil {
		return f.err
	}
	if f.rooms == nil {
		f.rooms = make(map[string][]string)
	}
	f.rooms[roomID] = players
	return nil
}

func newTestManager(t *testing.T, starter RoomStarter) *Manager {
	t.Helper()
	n := 0
	return NewManager(zaptest.NewLogger(t), starter, 2, 6, WithCodeGenerator(func() string {
		n++
		return fmt.Sprintf("CODE%02d", n)
	}))
}

func TestRandomCode(t *testing.T) {
	code := randomCode()
	assert.Len(t, code, CodeLength)
	assert.Equal(t, NormalizeCode(code), code)
}

func TestCreateAndJoin(t *testing.T) {
	m := newTestManager(t, &fakeStarter{})

	snap, err := m.Create("alice")
	require.NoError(t, err)
	assert.Equal(t, "CODE01", snap.Code)
	assert.Equal(t, "alice", snap.Host)
	assert.Equal(t, StateWaiting, snap.State)

	snap, err = m.Join("code01", "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, snap.Players)

	_, err = m.Join("CODE01", "bob")
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = m.Join("CODE01", "  ")
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = m.Join("NOPE00", "carol")
	assert.ErrorIs(t, err, ErrLobbyNotFound)

	_, err = m.Create("")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCodeCollisionRetries(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	m := NewManager(zaptest.NewLogger(t), &fakeStarter{}, 2, 6, WithCodeGenerator(func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}))

	first, err := m.Create("alice")
	require.NoError(t, err)
	second, err := m.Create("bob")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Code)
	assert.Equal(t, "BBBBBB", second.Code)
}

func TestLobbyFull(t *testing.T) {
	m := newTestManager(t, &fakeStarter{})
	snap, err := m.Create("p1")
	require.NoError(t, err)
	for i := 2; i <= 6; i++ {
		_, err := m.Join(snap.Code, fmt.Sprintf("p%d", i))
		require.NoError(t, err)
	}
	_, err = m.Join(snap.Code, "p7")
	assert.ErrorIs(t, err, ErrLobbyFull)
}

func TestStart(t *testing.T) {
	starter := &fakeStarter{}
	m := newTestManager(t, starter)
	ctx := context.Background()

	snap, err := m.Create("alice")
	require.NoError(t, err)

	_, err = m.Start(ctx, snap.Code, "alice")
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	_, err = m.Join(snap.Code, "bob")
	require.NoError(t, err)

	_, err = m.Start(ctx, snap.Code, "bob")
	assert.ErrorIs(t, err, ErrNotHost)

	started, err := m.Start(ctx, snap.Code, "alice")
	require.NoError(t, err)
	assert.Equal(t, StateStarted, started.State)
	require.NotNil(t, started.StartTime)
	assert.Equal(t, []string{"alice", "bob"}, starter.rooms[snap.Code])

	_, err = m.Start(ctx, snap.Code, "alice")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	_, err = m.Join(snap.Code, "carol")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	assert.Equal(t, 0, m.GetWaitingLobbyCount())
}

func TestStartFailureKeepsLobbyWaiting(t *testing.T) {
	boom := errors.New("store down")
	m := newTestManager(t, &fakeStarter{err: boom})
	snap, err := m.Create("alice")
	require.NoError(t, err)
	_, err = m.Join(snap.Code, "bob")
	require.NoError(t, err)

	_, err = m.Start(context.Background(), snap.Code, "alice")
	assert.ErrorIs(t, err, boom)

	lobby, ok := m.GetLobby(snap.Code)
	require.True(t, ok)
	assert.Equal(t, StateWaiting, lobby.GetState())
}

func TestLeaveHandsOverHost(t *testing.T) {
	m := newTestManager(t, &fakeStarter{})
	snap, err := m.Create("alice")
	require.NoError(t, err)
	_, err = m.Join(snap.Code, "bob")
	require.NoError(t, err)

	left, err := m.Leave(snap.Code, "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", left.Host)
	assert.Equal(t, []string{"bob"}, left.Players)

	_, err = m.Leave(snap.Code, "carol")
	assert.ErrorIs(t, err, ErrNotInLobby)

	left, err = m.Leave(snap.Code, "bob")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, left.State)
	_, ok := m.GetLobby(snap.Code)
	assert.False(t, ok)
}

func TestListAndSnapshotJSON(t *testing.T) {
	m := newTestManager(t, &fakeStarter{})
	_, err := m.Create("alice")
	require.NoError(t, err)
	_, err = m.Create("bob")
	require.NoError(t, err)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, 2, m.GetWaitingLobbyCount())

	data, err := json.Marshal(list[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"WAITING"`)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "WAITING", StateWaiting.String())
	assert.Equal(t, "STARTED", StateStarted.String())
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "UNKNOWN", State(42).String())
}
