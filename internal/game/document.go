package game

import (
	"encoding/json"
	"fmt"
)

// Document is the persisted JSON form of a State. At most one of
// PendingAction, BlockingPhase, PendingBlock and SpecialState is set.
type Document struct {
	RoomID        string         `json:"roomId"`
	Players       []PlayerRecord `json:"players"`
	CurrentTurn   string         `json:"currentTurn"`
	Turn          int            `json:"turn"`
	LastAction    *LastAction    `json:"lastAction,omitempty"`
	PendingAction *PhaseRecord   `json:"pendingAction,omitempty"`
	BlockingPhase *PhaseRecord   `json:"blockingPhase,omitempty"`
	PendingBlock  *PhaseRecord   `json:"pendingBlock,omitempty"`
	SpecialState  *PhaseRecord   `json:"specialState,omitempty"`
	GameStarted   bool           `json:"gameStarted"`
	Finished      bool           `json:"finished"`
	Winner        string         `json:"winner,omitempty"`
	Deck          []Role         `json:"deck"`
	Messages      []Message      `json:"messages,omitempty"`
	Seq           uint64         `json:"seq"`
}

// PlayerRecord is the persisted form of a Player.
type PlayerRecord struct {
	Name      string `json:"name"`
	Coins     int    `json:"coins"`
	Influence []Role `json:"influence"`
	Revealed  []Role `json:"revealed"`
}

// PhaseRecord is the persisted form of any phase. Type is "action" for a
// challenge phase, "exchange" for an exchange, "block" and "block_challenge"
// for the block phases, or the LossReason of an influence loss.
type PhaseRecord struct {
	Type      string     `json:"type"`
	ID        string     `json:"id"`
	Action    ActionType `json:"action,omitempty"`
	Actor     string     `json:"actor,omitempty"`
	Target    string     `json:"target,omitempty"`
	Claim     Role       `json:"claim,omitempty"`
	Blocker   string     `json:"blocker,omitempty"`
	Player    string     `json:"player,omitempty"`
	Eligible  []string   `json:"eligible,omitempty"`
	Responses []Response `json:"responses,omitempty"`
	Pool      []Role     `json:"pool,omitempty"`
	Keep      int        `json:"keep,omitempty"`
}

const (
	recordAction   = "action"
	recordExchange = "exchange"
)

// Document converts the state into its persisted form.
func (s *State) Document() Document {
	doc := Document{
		RoomID:      s.RoomID,
		Players:     make([]PlayerRecord, len(s.Players)),
		CurrentTurn: s.CurrentTurn,
		Turn:        s.Turn,
		GameStarted: s.Started,
		Finished:    s.Finished,
		Winner:      s.Winner,
		Messages:    append([]Message(nil), s.Messages...),
		Seq:         s.Seq,
	}
	for i, p := range s.Players {
		doc.Players[i] = PlayerRecord{
			Name:      p.Name,
			Coins:     p.Coins,
			Influence: append([]Role{}, p.Influence...),
			Revealed:  append([]Role{}, p.Revealed...),
		}
	}
	if s.LastAction != nil {
		la := *s.LastAction
		doc.LastAction = &la
	}
	if s.Deck != nil {
		doc.Deck = append([]Role{}, s.Deck.Cards...)
	}

	switch p := s.Phase.(type) {
	case *ChallengePhase:
		doc.PendingAction = &PhaseRecord{
			Type: recordAction, ID: p.PhaseID, Action: p.Action, Actor: p.Actor, Target: p.Target,
			Claim: p.Claim, Eligible: p.Eligible, Responses: p.Responses,
		}
	case *InfluenceLossPhase:
		doc.PendingAction = &PhaseRecord{
			Type: string(p.Reason), ID: p.PhaseID, Action: p.Action, Actor: p.Actor, Target: p.Target,
			Blocker: p.Blocker, Player: p.Player,
		}
	case *BlockPhase:
		doc.BlockingPhase = &PhaseRecord{
			Type: string(PhaseBlock), ID: p.PhaseID, Action: p.Action, Actor: p.Actor, Target: p.Target,
			Eligible: p.Eligible, Responses: p.Responses,
		}
	case *BlockChallengePhase:
		doc.PendingBlock = &PhaseRecord{
			Type: string(PhaseBlockChallenge), ID: p.PhaseID, Action: p.Action, Actor: p.Actor, Target: p.Target,
			Blocker: p.Blocker, Eligible: p.Eligible, Responses: p.Responses,
		}
	case *ExchangePhase:
		doc.SpecialState = &PhaseRecord{
			Type: recordExchange, ID: p.PhaseID, Actor: p.Actor, Pool: p.Pool, Keep: p.Keep,
		}
	}
	return doc
}

// State rebuilds a State from the persisted form.
func (d Document) State() (*State, error) {
	s := &State{
		RoomID:      d.RoomID,
		Players:     make([]*Player, len(d.Players)),
		CurrentTurn: d.CurrentTurn,
		Turn:        d.Turn,
		Started:     d.GameStarted,
		Finished:    d.Finished,
		Winner:      d.Winner,
		Deck:        &Deck{Cards: append([]Role(nil), d.Deck...)},
		Messages:    append([]Message(nil), d.Messages...),
		Seq:         d.Seq,
	}
	for i, p := range d.Players {
		if len(p.Influence) > StartingHand {
			return nil, fmt.Errorf("player %s holds %d cards", p.Name, len(p.Influence))
		}
		if p.Coins < 0 {
			return nil, fmt.Errorf("player %s has negative coins", p.Name)
		}
		s.Players[i] = &Player{
			Name:      p.Name,
			Coins:     p.Coins,
			Influence: append([]Role(nil), p.Influence...),
			Revealed:  append([]Role(nil), p.Revealed...),
		}
	}
	if d.LastAction != nil {
		la := *d.LastAction
		s.LastAction = &la
	}

	set := 0
	for _, r := range []*PhaseRecord{d.PendingAction, d.BlockingPhase, d.PendingBlock, d.SpecialState} {
		if r != nil {
			set++
		}
	}
	if set > 1 {
		return nil, fmt.Errorf("document has %d phases open", set)
	}

	switch {
	case d.PendingAction != nil:
		r := d.PendingAction
		if r.Type == recordAction {
			s.Phase = &ChallengePhase{
				Ballot: r.ballot(), Action: r.Action, Actor: r.Actor, Target: r.Target, Claim: r.Claim,
			}
			break
		}
		reason := LossReason(r.Type)
		if !reason.Valid() {
			return nil, fmt.Errorf("unknown pending action type %q", r.Type)
		}
		if s.Player(r.Player) == nil {
			return nil, fmt.Errorf("influence loss names unknown player %q", r.Player)
		}
		s.Phase = &InfluenceLossPhase{
			PhaseID: r.ID, Player: r.Player, Reason: reason, Action: r.Action,
			Actor: r.Actor, Target: r.Target, Blocker: r.Blocker,
		}
	case d.BlockingPhase != nil:
		r := d.BlockingPhase
		s.Phase = &BlockPhase{Ballot: r.ballot(), Action: r.Action, Actor: r.Actor, Target: r.Target}
	case d.PendingBlock != nil:
		r := d.PendingBlock
		s.Phase = &BlockChallengePhase{
			Ballot: r.ballot(), Action: r.Action, Actor: r.Actor, Target: r.Target, Blocker: r.Blocker,
		}
	case d.SpecialState != nil:
		r := d.SpecialState
		if r.Type != recordExchange {
			return nil, fmt.Errorf("unknown special state %q", r.Type)
		}
		s.Phase = &ExchangePhase{PhaseID: r.ID, Actor: r.Actor, Pool: append([]Role(nil), r.Pool...), Keep: r.Keep}
	}
	return s, nil
}

func (r *PhaseRecord) ballot() Ballot {
	return Ballot{
		PhaseID:   r.ID,
		Eligible:  append([]string(nil), r.Eligible...),
		Responses: append([]Response(nil), r.Responses...),
	}
}

// MarshalJSON encodes the state as its Document.
func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Document())
}

// UnmarshalJSON decodes a Document into the state.
func (s *State) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	decoded, err := doc.State()
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// Encode serializes the state for storage.
func Encode(s *State) ([]byte, error) {
	return json.Marshal(s)
}

// Decode parses a stored state.
func Decode(data []byte) (*State, error) {
	s := &State{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("decode game state: %w", err)
	}
	return s, nil
}
