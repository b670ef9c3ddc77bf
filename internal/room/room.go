// Package room runs one authoritative goroutine per game. Every command is
// applied to a copy of the state, persisted with compare-and-swap and only
// then published to subscribers.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/game/rules"
	"github.com/thraizz/coup-server-go/internal/store"
)

const commandQueueSize = 64

type request struct {
	ctx   context.Context
	cmd   Command
	reply chan reply
}

type reply struct {
	result Result
	err    error
}

type subscriber struct {
	viewer      string
	ch          chan Update
	lastVersion uint64
}

// Room owns the state of one game.
type Room struct {
	id       string
	logger   *zap.Logger
	store    store.Store
	engine   *game.Engine
	tracer   trace.Tracer
	recorder *game.ReplayRecorder

	phaseTimeout time.Duration
	bufferSize   int

	commands  chan request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// Owned by the run goroutine.
	pending    []rules.Event
	timer      *time.Timer
	timerPhase string

	// Committed state. Never mutated after it is swapped in.
	mu       sync.RWMutex
	state    *game.State
	version  uint64
	deadline time.Time

	subsMu  sync.Mutex
	subs    map[int]*subscriber
	nextSub int
}

func newRoom(id string, s *game.State, version uint64, opts Options) *Room {
	opts = opts.withDefaults()
	r := &Room{
		id:           id,
		logger:       opts.Logger.With(zap.String("room_id", id)),
		store:        opts.Store,
		tracer:       opts.Tracer,
		recorder:     opts.Recorder,
		phaseTimeout: opts.PhaseTimeout,
		bufferSize:   opts.SubscriberBuffer,
		commands:     make(chan request, commandQueueSize),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		state:        s,
		version:      version,
		subs:         make(map[int]*subscriber),
	}
	r.engine = opts.newEngine(r.logger, r.collect)
	return r
}

func (r *Room) collect(evt rules.Event) {
	r.pending = append(r.pending, evt)
}

// start runs the command loop and arms the deadline of a restored phase.
func (r *Room) start() {
	r.deadline = r.armDeadline(r.state)
	go r.run()
}

func (r *Room) run() {
	defer close(r.stopped)
	for {
		select {
		case req := <-r.commands:
			result, err := r.handle(req.ctx, req.cmd)
			if req.reply != nil {
				req.reply <- reply{result: result, err: err}
			}
		case <-r.done:
			r.stopTimer()
			return
		}
	}
}

// ID returns the room id.
func (r *Room) ID() string {
	return r.id
}

// Submit queues cmd and waits for its result.
func (r *Room) Submit(ctx context.Context, cmd Command) (Result, error) {
	req := request{ctx: ctx, cmd: cmd, reply: make(chan reply, 1)}
	select {
	case r.commands <- req:
	case <-r.done:
		return Result{}, ErrRoomClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	select {
	case rep := <-req.reply:
		return rep.result, rep.err
	case <-r.done:
		return Result{}, ErrRoomClosed
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// PerformAction declares action for player.
func (r *Room) PerformAction(ctx context.Context, player string, action game.ActionType, target string) (Result, error) {
	return r.Submit(ctx, Command{Kind: CommandPerformAction, Player: player, Action: action, Target: target})
}

// SubmitChallengeVote answers a challenge phase.
func (r *Room) SubmitChallengeVote(ctx context.Context, player, phaseID string, challenge bool) (Result, error) {
	return r.Submit(ctx, Command{Kind: CommandChallengeVote, Player: player, PhaseID: phaseID, Yes: challenge})
}

// SubmitBlockVote answers a block phase.
func (r *Room) SubmitBlockVote(ctx context.Context, player, phaseID string, block bool) (Result, error) {
	return r.Submit(ctx, Command{Kind: CommandBlockVote, Player: player, PhaseID: phaseID, Yes: block})
}

// SubmitBlockChallengeVote answers a block-challenge phase.
func (r *Room) SubmitBlockChallengeVote(ctx context.Context, player, phaseID string, challenge bool) (Result, error) {
	return r.Submit(ctx, Command{Kind: CommandBlockChallengeVote, Player: player, PhaseID: phaseID, Yes: challenge})
}

// SelectDiscard chooses the card player loses.
func (r *Room) SelectDiscard(ctx context.Context, player, phaseID string, card game.Role) (Result, error) {
	return r.Submit(ctx, Command{Kind: CommandDiscard, Player: player, PhaseID: phaseID, Card: card})
}

// SelectExchangeKeep chooses the cards an exchanging player keeps.
func (r *Room) SelectExchangeKeep(ctx context.Context, player, phaseID string, keep []game.Role) (Result, error) {
	return r.Submit(ctx, Command{Kind: CommandExchangeKeep, Player: player, PhaseID: phaseID, Keep: keep})
}

// Snapshot returns the committed state as viewer sees it.
func (r *Room) Snapshot(viewer string) (game.GameView, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.View(viewer), r.version
}

// Version returns the committed version.
func (r *Room) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Finished reports whether the game has a winner.
func (r *Room) Finished() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Finished
}

// Subscribe registers viewer for updates. The current snapshot is delivered
// first. The channel is closed when the room closes, when cancel is called,
// or when the subscriber falls behind.
func (r *Room) Subscribe(viewer string) (<-chan Update, func()) {
	ch := make(chan Update, r.bufferSize)

	r.subsMu.Lock()
	select {
	case <-r.done:
		r.subsMu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	id := r.nextSub
	r.nextSub++

	r.mu.RLock()
	initial := Update{Version: r.version, View: r.state.View(viewer), Deadline: r.deadline}
	r.mu.RUnlock()

	ch <- initial
	r.subs[id] = &subscriber{viewer: viewer, ch: ch, lastVersion: initial.Version}
	r.subsMu.Unlock()

	r.logger.Debug("subscriber added", zap.String("viewer", viewer), zap.Int("subscribers", r.SubscriberCount()))

	var once sync.Once
	return ch, func() {
		once.Do(func() { r.unsubscribe(id) })
	}
}

func (r *Room) unsubscribe(id int) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	if sub, ok := r.subs[id]; ok {
		delete(r.subs, id)
		close(sub.ch)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (r *Room) SubscriberCount() int {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	return len(r.subs)
}

// Close stops the room and closes every subscription. Queued commands fail
// with ErrRoomClosed.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		r.subsMu.Lock()
		close(r.done)
		for id, sub := range r.subs {
			delete(r.subs, id)
			close(sub.ch)
		}
		r.subsMu.Unlock()
		<-r.stopped
		r.logger.Info("room closed")
	})
}

func (r *Room) handle(ctx context.Context, cmd Command) (Result, error) {
	ctx, span := r.tracer.Start(ctx, "room."+string(cmd.Kind), trace.WithAttributes(
		attribute.String("room.id", r.id),
		attribute.String("room.player", cmd.Player),
		attribute.String("room.phase_id", cmd.PhaseID),
	))
	defer span.End()

	current, version := r.committed()
	if cmd.ExpectedVersion != 0 && cmd.ExpectedVersion != version {
		return r.result(cmd.Player), fmt.Errorf("%w: expected version %d, room is at %d", ErrConflict, cmd.ExpectedVersion, version)
	}

	next := current.Clone()
	r.pending = nil
	if err := r.dispatch(r.engine, next, cmd); err != nil {
		r.pending = nil
		if errors.Is(err, game.ErrStaleResponse) {
			r.logger.Debug("discarded stale command",
				zap.String("command", string(cmd.Kind)),
				zap.String("player", cmd.Player),
				zap.Error(err),
			)
			span.SetAttributes(attribute.Bool("room.stale", true))
			res := r.result(cmd.Player)
			res.Stale = true
			return res, nil
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return r.result(cmd.Player), err
	}

	if err := r.commit(ctx, next); err != nil {
		if cmd.Kind == commandTimeout {
			// Try the defaults again after another full period.
			r.stopTimer()
			r.armDeadline(current)
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return r.result(cmd.Player), err
	}
	span.SetAttributes(attribute.Int64("room.version", int64(r.Version())))
	return r.result(cmd.Player), nil
}

func (r *Room) committed() (*game.State, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.version
}

func (r *Room) result(viewer string) Result {
	view, version := r.Snapshot(viewer)
	return Result{Version: version, View: view}
}

// commit persists next and, on success, swaps it in and fans it out.
func (r *Room) commit(ctx context.Context, next *game.State) error {
	events := r.pending
	r.pending = nil

	doc, err := game.Encode(next)
	if err != nil {
		return fmt.Errorf("encode room %s: %w", r.id, err)
	}

	_, expected := r.committed()
	version, err := r.store.CompareAndSwap(ctx, r.id, expected, doc)
	switch {
	case errors.Is(err, store.ErrConflict):
		r.logger.Warn("state changed in store, reloading", zap.Uint64("expected_version", expected))
		r.reload(ctx)
		return fmt.Errorf("%w: version %d is no longer current", ErrConflict, expected)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrRoomNotFound, r.id)
	case err != nil:
		r.logger.Error("failed to persist room state", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	r.swap(next, version, events, doc)
	return nil
}

// reload replaces the committed state with the stored one.
func (r *Room) reload(ctx context.Context) {
	snap, err := r.store.Read(ctx, r.id)
	if err != nil {
		r.logger.Error("failed to reload room state", zap.Error(err))
		return
	}
	s, err := game.Decode(snap.Doc)
	if err != nil {
		r.logger.Error("stored room state is unreadable", zap.Error(err))
		return
	}
	r.swap(s, snap.Version, nil, snap.Doc)
}

func (r *Room) swap(next *game.State, version uint64, events []rules.Event, doc []byte) {
	deadline := r.armDeadline(next)

	r.mu.Lock()
	r.state = next
	r.version = version
	r.deadline = deadline
	r.mu.Unlock()

	for _, evt := range events {
		r.logger.Debug("game event",
			zap.String("type", string(evt.Type)),
			zap.String("player", evt.PlayerID),
			zap.String("target", evt.TargetID),
			zap.String("action", evt.Action),
		)
	}

	if r.recorder != nil {
		r.recorder.Record(r.id, version, doc)
		if next.Finished {
			if err := r.recorder.Save(r.id); err != nil {
				r.logger.Warn("failed to save replay", zap.Error(err))
			}
		}
	}
	if next.Finished {
		r.logger.Info("game finished", zap.String("winner", next.Winner), zap.Uint64("version", version))
	}

	r.broadcast(next, version, events, deadline)
}

func (r *Room) broadcast(s *game.State, version uint64, events []rules.Event, deadline time.Time) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	for id, sub := range r.subs {
		if sub.lastVersion >= version {
			continue
		}
		update := Update{Version: version, View: s.View(sub.viewer), Events: events, Deadline: deadline}
		select {
		case sub.ch <- update:
			sub.lastVersion = version
		default:
			r.logger.Warn("dropping slow subscriber", zap.String("viewer", sub.viewer))
			delete(r.subs, id)
			close(sub.ch)
		}
	}
}

// armDeadline starts the timer for a newly opened phase and returns its
// deadline. A phase that stays open keeps its original deadline.
func (r *Room) armDeadline(s *game.State) time.Time {
	if r.phaseTimeout <= 0 || s.Phase == nil || s.Finished {
		r.stopTimer()
		return time.Time{}
	}
	phaseID := s.Phase.ID()
	if phaseID == r.timerPhase && r.timer != nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.deadline
	}

	r.stopTimer()
	r.timerPhase = phaseID
	r.timer = time.AfterFunc(r.phaseTimeout, func() { r.expire(phaseID) })
	return time.Now().Add(r.phaseTimeout)
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.timerPhase = ""
}

func (r *Room) expire(phaseID string) {
	req := request{ctx: context.Background(), cmd: Command{Kind: commandTimeout, PhaseID: phaseID}}
	select {
	case r.commands <- req:
	case <-r.done:
	}
}
