package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// lossContext carries the action a forced discard interrupted.
type lossContext struct {
	Action  ActionType
	Actor   string
	Target  string
	Blocker string
}

// beginLoss opens a forced discard for player. A player with no hidden
// cards has nothing to lose, so the follow-up runs at once.
func (e *Engine) beginLoss(s *State, player string, reason LossReason, ctx lossContext) {
	phase := &InfluenceLossPhase{
		PhaseID: e.newID(),
		Player:  player,
		Reason:  reason,
		Action:  ctx.Action,
		Actor:   ctx.Actor,
		Target:  ctx.Target,
		Blocker: ctx.Blocker,
	}
	if !s.Player(player).Alive() {
		e.afterLoss(s, phase)
		return
	}
	s.Phase = phase
	e.phaseOpened(s, phase)
}

// SelectDiscard reveals card from player's hand to settle the open influence loss.
func (e *Engine) SelectDiscard(s *State, player, phaseID string, card Role) error {
	if s.Finished {
		return ErrGameOver
	}
	phase, ok := s.Phase.(*InfluenceLossPhase)
	if !ok || (phaseID != "" && phase.PhaseID != phaseID) {
		return stalef("influence loss %s is not open", phaseID)
	}
	if phase.Player != player {
		return illegalf("%s is not the player losing influence", player)
	}
	owner := s.Player(player)
	if !owner.discard(card) {
		return illegalf("%s does not hold %s", player, card)
	}

	s.Phase = nil
	s.addMessage(fmt.Sprintf("%s revealed %s.", player, card))
	evt := rules.NewEvent(rules.EventInfluenceLost, player, phase.Actor, string(phase.Action))
	evt.Data = string(card)
	evt.Description = string(phase.Reason)
	e.publish(evt)
	if !owner.Alive() {
		s.addMessage(fmt.Sprintf("%s has been eliminated.", player))
		e.publish(rules.NewEvent(rules.EventPlayerEliminated, player, "", ""))
		e.logger.Info("player eliminated",
			zap.String("room_id", s.RoomID),
			zap.String("player", player),
		)
	}

	e.afterLoss(s, phase)
	e.checkGameEnd(s)
	return nil
}

// afterLoss runs the follow-up selected by the loss reason.
func (e *Engine) afterLoss(s *State, phase *InfluenceLossPhase) {
	if e.checkGameEnd(s) {
		return
	}
	ctx := lossContext{Action: phase.Action, Actor: phase.Actor, Target: phase.Target, Blocker: phase.Blocker}

	switch phase.Reason {
	case LossBluff:
		if phase.Action == ActionAssassinate {
			s.Player(phase.Actor).Coins += AssassinateCost
			e.publish(rules.NewEventWithAmount(rules.EventCoinsChanged, phase.Actor, "", string(phase.Action), AssassinateCost))
		}
		e.publish(rules.NewEvent(rules.EventActionCancelled, phase.Actor, "", string(phase.Action)))
		e.advanceTurn(s)
	case LossChallenger:
		e.proceedUnopposed(s, phase.Action, phase.Actor, phase.Target)
	case LossFailedBlock:
		if phase.Action == ActionAssassinate {
			e.beginLoss(s, phase.Blocker, LossAssassination, ctx)
			return
		}
		e.setLastMessage(s, fmt.Sprintf("%s's %s is cancelled.", phase.Actor, displayAction(phase.Action)))
		e.publish(rules.NewEvent(rules.EventActionCancelled, phase.Actor, phase.Blocker, string(phase.Action)))
		e.advanceTurn(s)
	case LossBlockChallenger:
		e.blockHolds(s, phase.Action, phase.Actor, phase.Blocker)
	case LossCoup, LossAssassination:
		e.publish(rules.NewEvent(rules.EventActionResolved, phase.Actor, phase.Player, string(phase.Action)))
		e.advanceTurn(s)
	}
}
