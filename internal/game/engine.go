package game

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// Table size limits.
const (
	MinPlayers = 2
	MaxPlayers = 6
)

// Engine applies Coup rules to a State. It holds no game state of its own;
// callers own the State and must serialize calls per game.
type Engine struct {
	logger *zap.Logger
	events *rules.EventBus

	rngMu sync.Mutex
	rng   *rand.Rand

	newID func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed makes deck shuffles deterministic.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewSource(seed))
	}
}

// WithEventBus publishes engine events on bus instead of a private one.
func WithEventBus(bus *rules.EventBus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.events = bus
		}
	}
}

// WithIDGenerator overrides how phase identifiers are minted.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine creates a rules engine.
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		logger: logger,
		events: rules.NewEventBus(),
		rng:    rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Events returns the bus engine events are published on.
func (e *Engine) Events() *rules.EventBus {
	return e.events
}

func (e *Engine) publish(evt rules.Event) {
	e.events.Publish(evt)
}

// withRNG runs fn while holding the shuffle lock; one Engine may serve many rooms.
func (e *Engine) withRNG(fn func(rng *rand.Rand)) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	fn(e.rng)
}

// NewGame deals a fresh game for players in seat order. The first player
// takes the first turn.
func (e *Engine) NewGame(roomID string, players []string) (*State, error) {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return nil, illegalf("a game needs %d to %d players, got %d", MinPlayers, MaxPlayers, len(players))
	}

	seen := make(map[string]bool, len(players))
	s := &State{
		RoomID:  roomID,
		Players: make([]*Player, 0, len(players)),
		Deck:    NewDeck(),
		Turn:    1,
	}
	for _, name := range players {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, illegalf("player name is required")
		}
		if seen[name] {
			return nil, illegalf("duplicate player name %q", name)
		}
		seen[name] = true
		s.Players = append(s.Players, &Player{Name: name, Coins: StartingCoins})
	}

	e.withRNG(func(rng *rand.Rand) { s.Deck.Shuffle(rng) })
	for _, p := range s.Players {
		p.Influence = s.Deck.Draw(StartingHand)
	}

	s.CurrentTurn = s.Players[0].Name
	s.Started = true
	s.addMessage(fmt.Sprintf("Game started. %s goes first.", s.CurrentTurn))

	e.logger.Info("game started",
		zap.String("room_id", roomID),
		zap.Strings("players", players),
		zap.String("first_player", s.CurrentTurn),
	)
	e.publish(rules.NewEvent(rules.EventGameStarted, s.CurrentTurn, "", ""))
	return s, nil
}

// Timeout resolves the open phase identified by phaseID with default
// answers: "no" for every missing voter, the first hidden card for a
// pending discard, and the current hand for a pending exchange.
func (e *Engine) Timeout(s *State, phaseID string) error {
	if s.Finished {
		return ErrGameOver
	}
	if s.Phase == nil || s.Phase.ID() != phaseID {
		return stalef("phase %s is no longer open", phaseID)
	}

	e.logger.Debug("phase deadline expired",
		zap.String("room_id", s.RoomID),
		zap.String("phase_id", phaseID),
		zap.String("phase", string(s.Phase.Kind())),
	)
	evt := rules.NewEvent(rules.EventDefaultsApplied, "", "", "")
	evt.Data = string(s.Phase.Kind())
	e.publish(evt)

	switch p := s.Phase.(type) {
	case *ChallengePhase:
		return e.submitDefaults(s, p.Missing(), func(player string) error {
			return e.SubmitChallengeVote(s, player, phaseID, false)
		})
	case *BlockPhase:
		return e.submitDefaults(s, p.Missing(), func(player string) error {
			return e.SubmitBlockVote(s, player, phaseID, false)
		})
	case *BlockChallengePhase:
		return e.submitDefaults(s, p.Missing(), func(player string) error {
			return e.SubmitBlockChallengeVote(s, player, phaseID, false)
		})
	case *InfluenceLossPhase:
		player := s.Player(p.Player)
		if !player.Alive() {
			s.Phase = nil
			e.afterLoss(s, p)
			return nil
		}
		return e.SelectDiscard(s, p.Player, phaseID, player.Influence[0])
	case *ExchangePhase:
		return e.SelectExchangeKeep(s, p.Actor, phaseID, append([]Role(nil), p.Pool[:p.Keep]...))
	}
	return fmt.Errorf("unhandled phase %T", s.Phase)
}

func (e *Engine) submitDefaults(s *State, missing []string, submit func(string) error) error {
	for _, player := range missing {
		if err := submit(player); err != nil {
			return err
		}
	}
	return nil
}
