package game

import (
	"time"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// MaxMessages bounds the message log kept in the state.
const MaxMessages = 50

// StartingCoins is the purse every player begins with.
const StartingCoins = 2

// StartingHand is the number of influence cards dealt to every player.
const StartingHand = 2

// Player is a seat at the table.
type Player struct {
	Name      string
	Coins     int
	Influence []Role // hidden cards
	Revealed  []Role // lost cards, face up
}

// Alive reports whether the player still holds influence.
func (p *Player) Alive() bool {
	return p != nil && len(p.Influence) > 0
}

// HoldsAny returns the first hidden card matching one of roles.
func (p *Player) HoldsAny(roles ...Role) (Role, bool) {
	for _, card := range p.Influence {
		for _, role := range roles {
			if card == role {
				return card, true
			}
		}
	}
	return "", false
}

func (p *Player) discard(card Role) bool {
	for i, held := range p.Influence {
		if held == card {
			p.Influence = append(p.Influence[:i:i], p.Influence[i+1:]...)
			p.Revealed = append(p.Revealed, card)
			return true
		}
	}
	return false
}

func (p *Player) clone() *Player {
	return &Player{
		Name:      p.Name,
		Coins:     p.Coins,
		Influence: append([]Role(nil), p.Influence...),
		Revealed:  append([]Role(nil), p.Revealed...),
	}
}

// LastAction describes the most recent step for display.
type LastAction struct {
	Actor   string     `json:"actor"`
	Action  ActionType `json:"action"`
	Target  string     `json:"target,omitempty"`
	Message string     `json:"message"`
}

// Message is an entry in the game log.
type Message struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the complete authoritative state of one game.
type State struct {
	RoomID      string
	Players     []*Player // fixed join order
	CurrentTurn string
	Turn        int
	LastAction  *LastAction
	Phase       Phase
	Started     bool
	Finished    bool
	Winner      string
	Deck        *Deck
	Messages    []Message
	// Seq numbers responses in arrival order across the whole game.
	Seq uint64
}

// Player looks up a player by name.
func (s *State) Player(name string) *Player {
	for _, p := range s.Players {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Living returns the names of players with influence, in seat order.
func (s *State) Living() []string {
	var names []string
	for _, p := range s.Players {
		if p.Alive() {
			names = append(names, p.Name)
		}
	}
	return names
}

// livingExcept returns living players other than skip, in seat order.
func (s *State) livingExcept(skip string) []string {
	var names []string
	for _, p := range s.Players {
		if p.Alive() && p.Name != skip {
			names = append(names, p.Name)
		}
	}
	return names
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.Players = make([]*Player, len(s.Players))
	for i, p := range s.Players {
		c.Players[i] = p.clone()
	}
	if s.LastAction != nil {
		la := *s.LastAction
		c.LastAction = &la
	}
	c.Phase = clonePhase(s.Phase)
	c.Deck = s.Deck.clone()
	c.Messages = append([]Message(nil), s.Messages...)
	return &c
}

func (s *State) addMessage(text string) {
	s.Messages = append(s.Messages, Message{Text: text, Timestamp: time.Now()})
	if over := len(s.Messages) - MaxMessages; over > 0 {
		s.Messages = append([]Message(nil), s.Messages[over:]...)
	}
}

// stateAccessor adapts State to the rules package interfaces.
type stateAccessor struct {
	s *State
}

func (a stateAccessor) FindPlayer(name string) (rules.PlayerInfo, bool) {
	p := a.s.Player(name)
	if p == nil {
		return rules.PlayerInfo{}, false
	}
	return rules.PlayerInfo{Name: p.Name, Coins: p.Coins, Influence: len(p.Influence)}, true
}

func (a stateAccessor) ActivePlayer() string { return a.s.CurrentTurn }

func (a stateAccessor) OpenPhase() string {
	if a.s.Phase == nil {
		return ""
	}
	return string(a.s.Phase.Kind())
}

func (a stateAccessor) GameOver() bool { return a.s.Finished }

func (a stateAccessor) SeatOrder() []string {
	names := make([]string, len(a.s.Players))
	for i, p := range a.s.Players {
		names[i] = p.Name
	}
	return names
}

func (a stateAccessor) IsAlive(name string) bool {
	return a.s.Player(name).Alive()
}
