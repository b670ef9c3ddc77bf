package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

func (e *Engine) openChallenge(s *State, action ActionType, actor, target string, claim Role) {
	eligible := s.livingExcept(actor)
	if len(eligible) == 0 {
		e.proceedUnopposed(s, action, actor, target)
		return
	}
	phase := &ChallengePhase{
		Ballot: Ballot{PhaseID: e.newID(), Eligible: eligible},
		Action: action,
		Actor:  actor,
		Target: target,
		Claim:  claim,
	}
	s.Phase = phase
	e.phaseOpened(s, phase)
}

// SubmitChallengeVote records whether player challenges the actor's claim in
// the open challenge phase. The phase resolves once every eligible player has
// answered.
func (e *Engine) SubmitChallengeVote(s *State, player, phaseID string, challenge bool) error {
	if s.Finished {
		return ErrGameOver
	}
	phase, ok := s.Phase.(*ChallengePhase)
	if !ok || (phaseID != "" && phase.PhaseID != phaseID) {
		return stalef("challenge phase %s is not open", phaseID)
	}
	if err := e.recordVote(s, &phase.Ballot, player, challenge, string(phase.Action)); err != nil {
		return err
	}
	if phase.Complete() {
		e.resolveChallenge(s, phase)
		e.checkGameEnd(s)
	}
	return nil
}

func (e *Engine) resolveChallenge(s *State, phase *ChallengePhase) {
	s.Phase = nil
	ctx := lossContext{Action: phase.Action, Actor: phase.Actor, Target: phase.Target}

	challenger, challenged := phase.FirstYes()
	if !challenged {
		e.proceedUnopposed(s, phase.Action, phase.Actor, phase.Target)
		return
	}

	e.publish(rules.NewEvent(rules.EventChallengeIssued, challenger, phase.Actor, string(phase.Action)))
	actor := s.Player(phase.Actor)
	if _, holds := actor.HoldsAny(phase.Claim); holds {
		e.setLastMessage(s, fmt.Sprintf("%s challenged %s, but %s had the %s. %s loses an influence.",
			challenger, phase.Actor, phase.Actor, phase.Claim, challenger))
		e.publish(rules.NewEvent(rules.EventChallengeLost, challenger, phase.Actor, string(phase.Action)))
		e.logger.Debug("challenge failed",
			zap.String("room_id", s.RoomID),
			zap.String("challenger", challenger),
			zap.String("actor", phase.Actor),
			zap.String("claim", string(phase.Claim)),
		)
		e.beginLoss(s, challenger, LossChallenger, ctx)
		return
	}

	e.setLastMessage(s, fmt.Sprintf("%s challenged %s and caught a bluff. %s loses an influence.",
		challenger, phase.Actor, phase.Actor))
	e.publish(rules.NewEvent(rules.EventChallengeWon, challenger, phase.Actor, string(phase.Action)))
	e.logger.Debug("challenge succeeded",
		zap.String("room_id", s.RoomID),
		zap.String("challenger", challenger),
		zap.String("actor", phase.Actor),
		zap.String("claim", string(phase.Claim)),
	)
	e.beginLoss(s, phase.Actor, LossBluff, ctx)
}

// recordVote validates and appends one answer to ballot.
func (e *Engine) recordVote(s *State, ballot *Ballot, player string, yes bool, action string) error {
	if !ballot.IsEligible(player) {
		return illegalf("%s may not respond to this phase", player)
	}
	if ballot.Answered(player) {
		return ErrDuplicateResponse
	}
	s.Seq++
	ballot.record(player, yes, s.Seq)

	evt := rules.NewEvent(rules.EventResponseRecorded, player, "", action)
	evt.Data = ballot.PhaseID
	if yes {
		evt.Amount = 1
	}
	e.publish(evt)
	return nil
}

func (e *Engine) phaseOpened(s *State, phase Phase) {
	evt := rules.NewEvent(rules.EventPhaseOpened, "", "", "")
	evt.Data = string(phase.Kind())
	evt.Description = phase.ID()
	e.publish(evt)
	e.logger.Debug("phase opened",
		zap.String("room_id", s.RoomID),
		zap.String("phase", string(phase.Kind())),
		zap.String("phase_id", phase.ID()),
	)
}

// setLastMessage replaces the display message of the current action and logs it.
func (e *Engine) setLastMessage(s *State, text string) {
	if s.LastAction != nil {
		s.LastAction.Message = text
	}
	s.addMessage(text)
}
