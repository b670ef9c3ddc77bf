package lobby

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CodeLength is the length of a lobby code.
const CodeLength = 6

// RoomStarter opens the game room for a started lobby.
type RoomStarter interface {
	StartRoom(ctx context.Context, roomID string, players []string) error
}

// Manager manages lobbies
type Manager struct {
	lobbies map[string]*Lobby
	mu      sync.RWMutex
	logger  *zap.Logger
	starter RoomStarter

	minPlayers int
	maxPlayers int
	newCode    func() string
}

// Option configures a Manager.
type Option func(*Manager)

// WithCodeGenerator overrides how lobby codes are minted.
func WithCodeGenerator(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newCode = fn
		}
	}
}

// NewManager creates a new lobby manager
func NewManager(logger *zap.Logger, starter RoomStarter, minPlayers, maxPlayers int, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		lobbies:    make(map[string]*Lobby),
		logger:     logger,
		starter:    starter,
		minPlayers: minPlayers,
		maxPlayers: maxPlayers,
		newCode:    randomCode,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func randomCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:CodeLength]
}

// NormalizeCode upper-cases and trims a code typed by a player.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create opens a lobby hosted by host.
func (m *Manager) Create(host string) (Snapshot, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Snapshot{}, ErrInvalidName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	code := m.newCode()
	for attempts := 0; m.lobbies[code] != nil; attempts++ {
		if attempts > 16 {
			return Snapshot{}, fmt.Errorf("could not allocate a lobby code")
		}
		code = m.newCode()
	}

	lobby := newLobby(code, host, m.maxPlayers)
	m.lobbies[code] = lobby

	m.logger.Info("lobby created",
		zap.String("code", code),
		zap.String("host", host),
	)
	return lobby.Snapshot(), nil
}

// GetLobby retrieves a lobby by code
func (m *Manager) GetLobby(code string) (*Lobby, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lobby, ok := m.lobbies[NormalizeCode(code)]
	return lobby, ok
}

func (m *Manager) lookup(code string) (*Lobby, error) {
	lobby, ok := m.GetLobby(code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLobbyNotFound, NormalizeCode(code))
	}
	return lobby, nil
}

// Join adds player to the lobby with code.
func (m *Manager) Join(code, player string) (Snapshot, error) {
	lobby, err := m.lookup(code)
	if err != nil {
		return Snapshot{}, err
	}
	if err := lobby.AddPlayer(player); err != nil {
		return Snapshot{}, err
	}

	m.logger.Info("player joined lobby",
		zap.String("code", lobby.Code),
		zap.String("player", player),
		zap.Int("players", lobby.PlayerCount()),
	)
	return lobby.Snapshot(), nil
}

// Leave removes player from a waiting lobby. An empty lobby is removed.
func (m *Manager) Leave(code, player string) (Snapshot, error) {
	lobby, err := m.lookup(code)
	if err != nil {
		return Snapshot{}, err
	}
	if err := lobby.RemovePlayer(player); err != nil {
		return Snapshot{}, err
	}

	snap := lobby.Snapshot()
	if snap.State == StateClosed {
		m.RemoveLobby(snap.Code)
	}
	m.logger.Info("player left lobby",
		zap.String("code", snap.Code),
		zap.String("player", player),
		zap.String("host", snap.Host),
	)
	return snap, nil
}

// Start opens the game room. Only the host may start, and only with enough players.
func (m *Manager) Start(ctx context.Context, code, requester string) (Snapshot, error) {
	lobby, err := m.lookup(code)
	if err != nil {
		return Snapshot{}, err
	}

	lobby.mu.Lock()
	defer lobby.mu.Unlock()

	if lobby.State != StateWaiting {
		return Snapshot{}, ErrAlreadyStarted
	}
	if lobby.Host != requester {
		return Snapshot{}, ErrNotHost
	}
	if len(lobby.Players) < m.minPlayers {
		return Snapshot{}, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughPlayers, m.minPlayers, len(lobby.Players))
	}

	if err := m.starter.StartRoom(ctx, lobby.Code, append([]string(nil), lobby.Players...)); err != nil {
		m.logger.Error("failed to start room",
			zap.String("code", lobby.Code),
			zap.Error(err),
		)
		return Snapshot{}, fmt.Errorf("start room %s: %w", lobby.Code, err)
	}

	now := time.Now()
	lobby.State = StateStarted
	lobby.StartTime = &now

	m.logger.Info("lobby started",
		zap.String("code", lobby.Code),
		zap.Strings("players", lobby.Players),
	)
	return lobby.snapshot(), nil
}

// RemoveLobby removes a lobby
func (m *Manager) RemoveLobby(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.lobbies, NormalizeCode(code))

	m.logger.Info("lobby removed", zap.String("code", code))
}

// List returns snapshots of every lobby, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	lobbies := make([]*Lobby, 0, len(m.lobbies))
	for _, lobby := range m.lobbies {
		lobbies = append(lobbies, lobby)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(lobbies))
	for _, lobby := range lobbies {
		snaps = append(snaps, lobby.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreateTime.Equal(snaps[j].CreateTime) {
			return snaps[i].Code < snaps[j].Code
		}
		return snaps[i].CreateTime.Before(snaps[j].CreateTime)
	})
	return snaps
}

// GetWaitingLobbyCount returns the count of lobbies that have not started.
func (m *Manager) GetWaitingLobbyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, lobby := range m.lobbies {
		if lobby.GetState() == StateWaiting {
			count++
		}
	}
	return count
}
