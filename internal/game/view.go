package game

import (
	"fmt"
	"strings"
)

// GameView is the state as one viewer is allowed to see it.
type GameView struct {
	RoomID      string       `json:"roomId"`
	Viewer      string       `json:"viewer"`
	Players     []PlayerView `json:"players"`
	CurrentTurn string       `json:"currentTurn"`
	Turn        int          `json:"turn"`
	LastAction  *LastAction  `json:"lastAction,omitempty"`
	Phase       *PhaseView   `json:"phase,omitempty"`
	Prompt      *Prompt      `json:"prompt,omitempty"`
	Started     bool         `json:"gameStarted"`
	Finished    bool         `json:"finished"`
	Winner      string       `json:"winner,omitempty"`
	DeckSize    int          `json:"deckSize"`
	Messages    []Message    `json:"messages,omitempty"`
}

// PlayerView shows a player's public information. Influence is only filled
// in for the viewer's own seat.
type PlayerView struct {
	Name           string `json:"name"`
	Coins          int    `json:"coins"`
	InfluenceCount int    `json:"influenceCount"`
	Influence      []Role `json:"influence,omitempty"`
	Revealed       []Role `json:"revealed"`
	Eliminated     bool   `json:"eliminated"`
}

// PhaseView is the public part of an open phase. Who answered is public,
// how they answered is not until the phase resolves.
type PhaseView struct {
	ID        string     `json:"id"`
	Kind      PhaseKind  `json:"kind"`
	Action    ActionType `json:"action,omitempty"`
	Actor     string     `json:"actor,omitempty"`
	Target    string     `json:"target,omitempty"`
	Claim     Role       `json:"claim,omitempty"`
	Blocker   string     `json:"blocker,omitempty"`
	Player    string     `json:"player,omitempty"`
	Reason    LossReason `json:"reason,omitempty"`
	Eligible  []string   `json:"eligible,omitempty"`
	Responded []string   `json:"responded,omitempty"`
	Pool      []Role     `json:"pool,omitempty"`
	Keep      int        `json:"keep,omitempty"`
}

// Prompt tells the viewer what input the game is waiting for from them.
type Prompt struct {
	Player  string   `json:"player"`
	PhaseID string   `json:"phaseId,omitempty"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// View returns the state redacted for viewer. An empty viewer sees only
// public information.
func (s *State) View(viewer string) GameView {
	view := GameView{
		RoomID:      s.RoomID,
		Viewer:      viewer,
		Players:     make([]PlayerView, len(s.Players)),
		CurrentTurn: s.CurrentTurn,
		Turn:        s.Turn,
		Started:     s.Started,
		Finished:    s.Finished,
		Winner:      s.Winner,
		DeckSize:    s.Deck.Len(),
		Messages:    append([]Message(nil), s.Messages...),
	}
	for i, p := range s.Players {
		pv := PlayerView{
			Name:           p.Name,
			Coins:          p.Coins,
			InfluenceCount: len(p.Influence),
			Revealed:       append([]Role{}, p.Revealed...),
			Eliminated:     !p.Alive(),
		}
		if viewer != "" && p.Name == viewer {
			pv.Influence = append([]Role(nil), p.Influence...)
		}
		view.Players[i] = pv
	}
	if s.LastAction != nil {
		la := *s.LastAction
		view.LastAction = &la
	}
	view.Phase = phaseView(s.Phase, viewer)
	view.Prompt = s.prompt(viewer)
	return view
}

func phaseView(phase Phase, viewer string) *PhaseView {
	if phase == nil {
		return nil
	}
	pv := &PhaseView{ID: phase.ID(), Kind: phase.Kind()}
	fillBallot := func(b Ballot) {
		pv.Eligible = append([]string(nil), b.Eligible...)
		for _, r := range b.Responses {
			pv.Responded = append(pv.Responded, r.Player)
		}
	}

	switch p := phase.(type) {
	case *ChallengePhase:
		pv.Action, pv.Actor, pv.Target, pv.Claim = p.Action, p.Actor, p.Target, p.Claim
		fillBallot(p.Ballot)
	case *BlockPhase:
		pv.Action, pv.Actor, pv.Target = p.Action, p.Actor, p.Target
		fillBallot(p.Ballot)
	case *BlockChallengePhase:
		pv.Action, pv.Actor, pv.Target, pv.Blocker = p.Action, p.Actor, p.Target, p.Blocker
		fillBallot(p.Ballot)
	case *InfluenceLossPhase:
		pv.Action, pv.Actor, pv.Target, pv.Blocker = p.Action, p.Actor, p.Target, p.Blocker
		pv.Player, pv.Reason = p.Player, p.Reason
	case *ExchangePhase:
		pv.Action, pv.Actor, pv.Keep = ActionExchange, p.Actor, p.Keep
		if viewer == p.Actor {
			pv.Pool = append([]Role(nil), p.Pool...)
		}
	}
	return pv
}

// prompt describes what the game needs from viewer, or nil if nothing.
func (s *State) prompt(viewer string) *Prompt {
	if viewer == "" || s.Finished || !s.Started {
		return nil
	}
	yesNo := []string{"yes", "no"}

	switch p := s.Phase.(type) {
	case nil:
		if viewer != s.CurrentTurn {
			return nil
		}
		return &Prompt{
			Player:  viewer,
			Text:    "Choose an action.",
			Options: s.availableActions(viewer),
		}
	case *ChallengePhase:
		if !p.IsEligible(viewer) || p.Answered(viewer) {
			return nil
		}
		return &Prompt{
			Player:  viewer,
			PhaseID: p.PhaseID,
			Text:    fmt.Sprintf("%s claims %s. Challenge?", p.Actor, p.Claim),
			Options: yesNo,
		}
	case *BlockPhase:
		if !p.IsEligible(viewer) || p.Answered(viewer) {
			return nil
		}
		spec, _ := p.Action.Spec()
		return &Prompt{
			Player:  viewer,
			PhaseID: p.PhaseID,
			Text:    fmt.Sprintf("Block %s's %s with %s?", p.Actor, displayAction(p.Action), joinRoles(spec.BlockedBy)),
			Options: yesNo,
		}
	case *BlockChallengePhase:
		if !p.IsEligible(viewer) || p.Answered(viewer) {
			return nil
		}
		return &Prompt{
			Player:  viewer,
			PhaseID: p.PhaseID,
			Text:    fmt.Sprintf("%s blocks %s's %s. Challenge the block?", p.Blocker, p.Actor, displayAction(p.Action)),
			Options: yesNo,
		}
	case *InfluenceLossPhase:
		if viewer != p.Player {
			return nil
		}
		return &Prompt{
			Player:  viewer,
			PhaseID: p.PhaseID,
			Text:    "Choose an influence to lose.",
			Options: roleStrings(s.Player(viewer).Influence),
		}
	case *ExchangePhase:
		if viewer != p.Actor {
			return nil
		}
		return &Prompt{
			Player:  viewer,
			PhaseID: p.PhaseID,
			Text:    fmt.Sprintf("Choose %d cards to keep.", p.Keep),
			Options: roleStrings(p.Pool),
		}
	}
	return nil
}

func (s *State) availableActions(player string) []string {
	p := s.Player(player)
	var options []string
	for _, action := range []ActionType{
		ActionIncome, ActionForeignAid, ActionCoup, ActionTax, ActionSteal, ActionAssassinate, ActionExchange,
	} {
		spec, _ := action.Spec()
		if p.Coins >= spec.Cost {
			options = append(options, string(action))
		}
	}
	return options
}

func roleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func joinRoles(roles []Role) string {
	return strings.Join(roleStrings(roles), " or ")
}
