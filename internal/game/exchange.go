package game

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// beginExchange draws cards into a pool with the actor's hand. The actor
// keeps as many cards as they currently hold.
func (e *Engine) beginExchange(s *State, actor string) {
	player := s.Player(actor)
	if !player.Alive() {
		e.advanceTurn(s)
		return
	}
	pool := append([]Role(nil), player.Influence...)
	pool = append(pool, s.Deck.Draw(ExchangeDraw)...)

	phase := &ExchangePhase{
		PhaseID: e.newID(),
		Actor:   actor,
		Pool:    pool,
		Keep:    len(player.Influence),
	}
	s.Phase = phase
	e.phaseOpened(s, phase)
}

// SelectExchangeKeep completes an exchange. keep must contain exactly the
// original hand size of cards taken from the pool; the rest go back into
// the deck.
func (e *Engine) SelectExchangeKeep(s *State, player, phaseID string, keep []Role) error {
	if s.Finished {
		return ErrGameOver
	}
	phase, ok := s.Phase.(*ExchangePhase)
	if !ok || (phaseID != "" && phase.PhaseID != phaseID) {
		return stalef("exchange %s is not open", phaseID)
	}
	if phase.Actor != player {
		return illegalf("%s is not exchanging", player)
	}
	if len(keep) != phase.Keep {
		return illegalf("must keep exactly %d cards, got %d", phase.Keep, len(keep))
	}
	returned, ok := removeCards(phase.Pool, keep)
	if !ok {
		return illegalf("kept cards must come from the exchange pool")
	}

	s.Player(player).Influence = append([]Role(nil), keep...)
	e.withRNG(func(rng *rand.Rand) { s.Deck.Return(returned, rng) })
	s.Phase = nil

	e.setLastMessage(s, fmt.Sprintf("%s exchanged cards with the court deck.", player))
	e.publish(rules.NewEventWithAmount(rules.EventExchangeCompleted, player, "", string(ActionExchange), len(returned)))
	e.publish(rules.NewEvent(rules.EventActionResolved, player, "", string(ActionExchange)))
	e.advanceTurn(s)
	e.checkGameEnd(s)
	return nil
}
