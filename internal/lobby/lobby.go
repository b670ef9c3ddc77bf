// Package lobby gathers players under a short room code until the host starts the game.
package lobby

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrLobbyNotFound    = errors.New("lobby not found")
	ErrInvalidName      = errors.New("player name is required")
	ErrNameTaken        = errors.New("player name already taken")
	ErrLobbyFull        = errors.New("lobby is full")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrNotHost          = errors.New("only the host can start the game")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrNotInLobby       = errors.New("player is not in the lobby")
)

// State represents the state of a lobby
type State int

const (
	StateWaiting State = iota
	StateStarted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StateStarted:
		return "STARTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "WAITING":
		*s = StateWaiting
	case "STARTED":
		*s = StateStarted
	case "CLOSED":
		*s = StateClosed
	default:
		return fmt.Errorf("unknown lobby state %q", text)
	}
	return nil
}

// Snapshot captures a consistent view of a lobby.
type Snapshot struct {
	Code       string     `json:"code"`
	Host       string     `json:"host"`
	State      State      `json:"state"`
	Players    []string   `json:"players"`
	MaxPlayers int        `json:"maxPlayers"`
	CreateTime time.Time  `json:"createTime"`
	StartTime  *time.Time `json:"startTime,omitempty"`
}

// Lobby is a room code and the players waiting behind it, in join order.
type Lobby struct {
	Code       string
	Host       string
	State      State
	Players    []string
	MaxPlayers int
	CreateTime time.Time
	StartTime  *time.Time
	mu         sync.RWMutex
}

func newLobby(code, host string, maxPlayers int) *Lobby {
	return &Lobby{
		Code:       code,
		Host:       host,
		State:      StateWaiting,
		Players:    []string{host},
		MaxPlayers: maxPlayers,
		CreateTime: time.Now(),
	}
}

// AddPlayer adds a player to the lobby
func (l *Lobby) AddPlayer(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if l.State != StateWaiting {
		return ErrAlreadyStarted
	}
	if l.hasPlayer(name) {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	if len(l.Players) >= l.MaxPlayers {
		return ErrLobbyFull
	}
	l.Players = append(l.Players, name)
	return nil
}

// RemovePlayer removes a waiting player. If the host leaves, the next
// player in join order becomes host.
func (l *Lobby) RemovePlayer(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State != StateWaiting {
		return ErrAlreadyStarted
	}
	for i, p := range l.Players {
		if p != name {
			continue
		}
		l.Players = append(l.Players[:i], l.Players[i+1:]...)
		if len(l.Players) == 0 {
			l.State = StateClosed
		} else if l.Host == name {
			l.Host = l.Players[0]
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotInLobby, name)
}

func (l *Lobby) hasPlayer(name string) bool {
	for _, p := range l.Players {
		if p == name {
			return true
		}
	}
	return false
}

// IsHost checks if a player is the lobby host
func (l *Lobby) IsHost(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.Host == name
}

// PlayerCount returns the number of players
func (l *Lobby) PlayerCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.Players)
}

// GetState returns the current lobby state.
func (l *Lobby) GetState() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.State
}

// Snapshot returns a copy of the lobby safe to hand out.
func (l *Lobby) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot()
}

func (l *Lobby) snapshot() Snapshot {
	return Snapshot{
		Code:       l.Code,
		Host:       l.Host,
		State:      l.State,
		Players:    append([]string(nil), l.Players...),
		MaxPlayers: l.MaxPlayers,
		CreateTime: l.CreateTime,
		StartTime:  cloneTime(l.StartTime),
	}
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	cp := *src
	return &cp
}
