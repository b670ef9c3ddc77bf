package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/store"
	"github.com/thraizz/coup-server-go/internal/store/memory"
)

type hands map[string][]game.Role

// openRoom stores a dealt game with fixed hands and opens it through a manager.
func openRoom(t *testing.T, opts Options, h hands, players ...string) (*Manager, *Room) {
	t.Helper()
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.Logger == nil {
		opts.Logger = zaptest.NewLogger(t)
	}

	s, err := game.NewEngine(opts.Logger, game.WithSeed(7)).NewGame("ROOM01", players)
	require.NoError(t, err)
	for name, roles := range h {
		s.Player(name).Influence = append([]game.Role(nil), roles...)
	}
	doc, err := game.Encode(s)
	require.NoError(t, err)
	_, err = opts.Store.Create(context.Background(), "ROOM01", doc)
	require.NoError(t, err)

	m := NewManager(opts)
	r, err := m.Open(context.Background(), "ROOM01")
	require.NoError(t, err)
	t.Cleanup(m.CloseAll)
	return m, r
}

func viewOf(t *testing.T, r *Room, viewer string) game.GameView {
	t.Helper()
	view, _ := r.Snapshot(viewer)
	return view
}

func playerView(t *testing.T, view game.GameView, name string) game.PlayerView {
	t.Helper()
	for _, p := range view.Players {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("player %s not in view", name)
	return game.PlayerView{}
}

func receive(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestSubscribeDeliversRedactedSnapshot(t *testing.T) {
	_, r := openRoom(t, Options{}, hands{
		"alice": {game.RoleDuke, game.RoleCaptain},
		"bob":   {game.RoleContessa, game.RoleAssassin},
	}, "alice", "bob")

	ch, cancel := r.Subscribe("alice")
	defer cancel()

	u := receive(t, ch)
	assert.Equal(t, uint64(1), u.Version)
	assert.Equal(t, []game.Role{game.RoleDuke, game.RoleCaptain}, playerView(t, u.View, "alice").Influence)
	bob := playerView(t, u.View, "bob")
	assert.Empty(t, bob.Influence)
	assert.Equal(t, 2, bob.InfluenceCount)
}

func TestCommandCommitsAndFansOut(t *testing.T) {
	_, r := openRoom(t, Options{}, nil, "alice", "bob")
	ctx := context.Background()

	aliceCh, cancelAlice := r.Subscribe("alice")
	defer cancelAlice()
	bobCh, cancelBob := r.Subscribe("bob")
	defer cancelBob()
	receive(t, aliceCh)
	receive(t, bobCh)

	res, err := r.PerformAction(ctx, "alice", game.ActionIncome, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Version)
	assert.False(t, res.Stale)
	assert.Equal(t, 3, playerView(t, res.View, "alice").Coins)

	for _, ch := range []<-chan Update{aliceCh, bobCh} {
		u := receive(t, ch)
		assert.Equal(t, uint64(2), u.Version)
		assert.Equal(t, "bob", u.View.CurrentTurn)
		assert.NotEmpty(t, u.Events)
	}
}

func TestIllegalMoveChangesNothing(t *testing.T) {
	_, r := openRoom(t, Options{}, nil, "alice", "bob")

	res, err := r.PerformAction(context.Background(), "bob", game.ActionIncome, "")
	require.ErrorIs(t, err, game.ErrIllegalMove)
	assert.Equal(t, uint64(1), res.Version)
	assert.Equal(t, 2, playerView(t, viewOf(t, r, "bob"), "bob").Coins)
	assert.Equal(t, uint64(1), r.Version())
}

func TestStaleVoteIsDiscarded(t *testing.T) {
	_, r := openRoom(t, Options{}, hands{"alice": {game.RoleDuke, game.RoleDuke}}, "alice", "bob")
	ctx := context.Background()

	res, err := r.PerformAction(ctx, "alice", game.ActionTax, "")
	require.NoError(t, err)
	require.NotNil(t, res.View.Phase)
	phaseID := res.View.Phase.ID

	res, err = r.SubmitChallengeVote(ctx, "bob", phaseID, false)
	require.NoError(t, err)
	assert.Nil(t, res.View.Phase)
	version := res.Version

	res, err = r.SubmitChallengeVote(ctx, "bob", phaseID, true)
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, version, res.Version)
	assert.Equal(t, 5, playerView(t, res.View, "alice").Coins)
}

func TestExpectedVersionMismatch(t *testing.T) {
	_, r := openRoom(t, Options{}, nil, "alice", "bob")

	_, err := r.Submit(context.Background(), Command{
		Kind:            CommandPerformAction,
		Player:          "alice",
		Action:          game.ActionIncome,
		ExpectedVersion: 5,
	})
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, uint64(1), r.Version())

	res, err := r.Submit(context.Background(), Command{
		Kind:            CommandPerformAction,
		Player:          "alice",
		Action:          game.ActionIncome,
		ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Version)
}

func TestStoreConflictReloadsState(t *testing.T) {
	st := memory.New()
	_, r := openRoom(t, Options{Store: st}, nil, "alice", "bob")
	ctx := context.Background()

	// Another writer moves the stored document on.
	snap, err := st.Read(ctx, "ROOM01")
	require.NoError(t, err)
	s, err := game.Decode(snap.Doc)
	require.NoError(t, err)
	s.Player("alice").Coins = 6
	doc, err := game.Encode(s)
	require.NoError(t, err)
	_, err = st.CompareAndSwap(ctx, "ROOM01", snap.Version, doc)
	require.NoError(t, err)

	_, err = r.PerformAction(ctx, "alice", game.ActionIncome, "")
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, uint64(2), r.Version())
	assert.Equal(t, 6, playerView(t, viewOf(t, r, "alice"), "alice").Coins)

	res, err := r.PerformAction(ctx, "alice", game.ActionIncome, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Version)
	assert.Equal(t, 7, playerView(t, res.View, "alice").Coins)
}

type flakyStore struct {
	store.Store
	mu   sync.Mutex
	fail bool
}

func (f *flakyStore) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *flakyStore) CompareAndSwap(ctx context.Context, roomID string, expected uint64, doc []byte) (uint64, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return 0, errors.New("connection refused")
	}
	return f.Store.CompareAndSwap(ctx, roomID, expected, doc)
}

func TestStorageFailureChangesNothing(t *testing.T) {
	st := &flakyStore{Store: memory.New()}
	_, r := openRoom(t, Options{Store: st}, nil, "alice", "bob")
	ctx := context.Background()

	ch, cancel := r.Subscribe("bob")
	defer cancel()
	receive(t, ch)

	st.setFail(true)
	_, err := r.PerformAction(ctx, "alice", game.ActionIncome, "")
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, uint64(1), r.Version())
	assert.Equal(t, "alice", viewOf(t, r, "").CurrentTurn)
	select {
	case u := <-ch:
		t.Fatalf("unexpected update %d", u.Version)
	default:
	}

	st.setFail(false)
	res, err := r.PerformAction(ctx, "alice", game.ActionIncome, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Version)
}

func TestPhaseDeadlineAppliesDefaults(t *testing.T) {
	_, r := openRoom(t, Options{PhaseTimeout: 20 * time.Millisecond}, hands{"alice": {game.RoleDuke, game.RoleCaptain}}, "alice", "bob")

	res, err := r.PerformAction(context.Background(), "alice", game.ActionTax, "")
	require.NoError(t, err)
	require.NotNil(t, res.View.Phase)

	require.Eventually(t, func() bool {
		view := viewOf(t, r, "alice")
		return view.Phase == nil && view.CurrentTurn == "bob"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 5, playerView(t, viewOf(t, r, "alice"), "alice").Coins)
}

func TestDeadlineDiscardsFirstCard(t *testing.T) {
	_, r := openRoom(t, Options{PhaseTimeout: 300 * time.Millisecond}, hands{
		"alice": {game.RoleCaptain, game.RoleContessa},
		"bob":   {game.RoleAssassin, game.RoleDuke},
	}, "alice", "bob")
	ctx := context.Background()

	// alice bluffs Duke; bob challenges and then nobody picks a card.
	res, err := r.PerformAction(ctx, "alice", game.ActionTax, "")
	require.NoError(t, err)
	res, err = r.SubmitChallengeVote(ctx, "bob", res.View.Phase.ID, true)
	require.NoError(t, err)
	require.NotNil(t, res.View.Phase)
	assert.Equal(t, game.PhaseInfluenceLoss, res.View.Phase.Kind)
	assert.False(t, res.Stale)
	assert.False(t, res.View.Finished)

	require.Eventually(t, func() bool {
		return viewOf(t, r, "").CurrentTurn == "bob"
	}, 2*time.Second, 5*time.Millisecond)
	alice := playerView(t, viewOf(t, r, "alice"), "alice")
	assert.Equal(t, []game.Role{game.RoleCaptain}, alice.Revealed)
	assert.Equal(t, []game.Role{game.RoleContessa}, alice.Influence)
}

func TestSubscriptionUpdatesCarryDeadline(t *testing.T) {
	_, r := openRoom(t, Options{PhaseTimeout: time.Minute}, nil, "alice", "bob")

	ch, cancel := r.Subscribe("bob")
	defer cancel()
	assert.True(t, receive(t, ch).Deadline.IsZero())

	_, err := r.PerformAction(context.Background(), "alice", game.ActionTax, "")
	require.NoError(t, err)
	u := receive(t, ch)
	assert.False(t, u.Deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Minute), u.Deadline, 5*time.Second)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	_, r := openRoom(t, Options{SubscriberBuffer: 1}, nil, "alice", "bob")
	ctx := context.Background()

	ch, cancel := r.Subscribe("bob")
	defer cancel()
	require.Equal(t, 1, r.SubscriberCount())

	// The initial snapshot fills the buffer.
	_, err := r.PerformAction(ctx, "alice", game.ActionIncome, "")
	require.NoError(t, err)
	assert.Equal(t, 0, r.SubscriberCount())

	u := receive(t, ch)
	assert.Equal(t, uint64(1), u.Version)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestConcurrentVotesResolveOnce(t *testing.T) {
	_, r := openRoom(t, Options{}, hands{"alice": {game.RoleDuke, game.RoleCaptain}},
		"alice", "bob", "carol", "dave")
	ctx := context.Background()

	res, err := r.PerformAction(ctx, "alice", game.ActionTax, "")
	require.NoError(t, err)
	phaseID := res.View.Phase.ID

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for _, voter := range []string{"bob", "carol", "dave"} {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			_, err := r.SubmitChallengeVote(ctx, voter, phaseID, false)
			errs <- err
		}(voter)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	view, version := r.Snapshot("alice")
	assert.Equal(t, uint64(5), version)
	assert.Nil(t, view.Phase)
	assert.Equal(t, "bob", view.CurrentTurn)
	assert.Equal(t, 5, playerView(t, view, "alice").Coins)
}

func TestClosedRoomRejectsCommands(t *testing.T) {
	_, r := openRoom(t, Options{}, nil, "alice", "bob")

	ch, _ := r.Subscribe("alice")
	receive(t, ch)

	r.Close()
	_, ok := <-ch
	assert.False(t, ok)

	_, err := r.PerformAction(context.Background(), "alice", game.ActionIncome, "")
	assert.ErrorIs(t, err, ErrRoomClosed)

	late, _ := r.Subscribe("bob")
	_, ok = <-late
	assert.False(t, ok)
}

func TestParseCommandKind(t *testing.T) {
	kind, err := ParseCommandKind("block_vote")
	require.NoError(t, err)
	assert.Equal(t, CommandBlockVote, kind)

	_, err = ParseCommandKind("timeout")
	assert.ErrorIs(t, err, game.ErrIllegalMove)
}
