package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/game/rules"
	"github.com/thraizz/coup-server-go/internal/store"
)

const tracerName = "github.com/thraizz/coup-server-go/internal/room"

// Options configures the rooms a Manager opens.
type Options struct {
	Logger   *zap.Logger
	Store    store.Store
	Recorder *game.ReplayRecorder
	Tracer   trace.Tracer

	// PhaseTimeout bounds how long a phase waits for input. Zero disables deadlines.
	PhaseTimeout     time.Duration
	SubscriberBuffer int
	// Seed makes every room shuffle deterministically. Zero means random.
	Seed uint64

	// EngineOptions are appended to the options every room engine is built with.
	EngineOptions []game.Option
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Tracer == nil {
		o.Tracer = otel.Tracer(tracerName)
	}
	if o.SubscriberBuffer < 1 {
		o.SubscriberBuffer = 16
	}
	return o
}

func (o Options) newEngine(logger *zap.Logger, collect rules.Listener) *game.Engine {
	bus := rules.NewEventBus()
	bus.Subscribe(collect)
	opts := []game.Option{game.WithEventBus(bus)}
	if o.Seed != 0 {
		opts = append(opts, game.WithSeed(o.Seed))
	}
	opts = append(opts, o.EngineOptions...)
	return game.NewEngine(logger, opts...)
}

// Manager tracks the open rooms of this process.
type Manager struct {
	opts   Options
	logger *zap.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewManager creates a room manager persisting through opts.Store.
func NewManager(opts Options) *Manager {
	opts = opts.withDefaults()
	return &Manager{
		opts:   opts,
		logger: opts.Logger,
		rooms:  make(map[string]*Room),
	}
}

// Create deals a new game for players and opens its room.
func (m *Manager) Create(ctx context.Context, roomID string, players []string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[roomID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, roomID)
	}

	r := newRoom(roomID, nil, 0, m.opts)
	s, err := r.engine.NewGame(roomID, players)
	if err != nil {
		return nil, err
	}
	r.pending = nil

	doc, err := game.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("encode room %s: %w", roomID, err)
	}
	version, err := m.opts.Store.Create(ctx, roomID, doc)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return nil, fmt.Errorf("%w: %s", ErrRoomExists, roomID)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	r.state, r.version = s, version
	if m.opts.Recorder != nil {
		m.opts.Recorder.Record(roomID, version, doc)
	}
	r.start()
	m.rooms[roomID] = r

	m.logger.Info("room created",
		zap.String("room_id", roomID),
		zap.Strings("players", players),
		zap.Uint64("version", version),
	)
	return r, nil
}

// StartRoom opens a room for a lobby that has started.
func (m *Manager) StartRoom(ctx context.Context, roomID string, players []string) error {
	_, err := m.Create(ctx, roomID, players)
	return err
}

// Get returns an open room.
func (m *Manager) Get(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[roomID]
	return r, ok
}

// Open returns the room, restoring it from the store if this process has
// not opened it yet.
func (m *Manager) Open(ctx context.Context, roomID string) (*Room, error) {
	if r, ok := m.Get(roomID); ok {
		return r, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[roomID]; ok {
		return r, nil
	}

	snap, err := m.opts.Store.Read(ctx, roomID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	s, err := game.Decode(snap.Doc)
	if err != nil {
		return nil, fmt.Errorf("restore room %s: %w", roomID, err)
	}

	r := newRoom(roomID, s, snap.Version, m.opts)
	r.start()
	m.rooms[roomID] = r

	m.logger.Info("room restored",
		zap.String("room_id", roomID),
		zap.Uint64("version", snap.Version),
	)
	return r, nil
}

// Remove closes a room and deletes its stored document.
func (m *Manager) Remove(ctx context.Context, roomID string) error {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	delete(m.rooms, roomID)
	m.mu.Unlock()

	if ok {
		r.Close()
	}
	if m.opts.Recorder != nil {
		m.opts.Recorder.Clear(roomID)
	}
	if err := m.opts.Store.Delete(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
		}
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	m.logger.Info("room removed", zap.String("room_id", roomID))
	return nil
}

// Count returns the number of open rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// CloseAll closes every open room. Stored documents are kept.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[string]*Room)
	m.mu.Unlock()

	for _, r := range rooms {
		r.Close()
	}
	m.logger.Info("closed all rooms", zap.Int("count", len(rooms)))
}
