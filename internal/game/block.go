package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// allowedBlockers returns who may block action: every other living player
// for foreign aid, the living target for steal and assassinate.
func allowedBlockers(s *State, action ActionType, actor, target string) []string {
	switch action {
	case ActionForeignAid:
		return s.livingExcept(actor)
	case ActionSteal, ActionAssassinate:
		if s.Player(target).Alive() {
			return []string{target}
		}
	}
	return nil
}

func (e *Engine) openBlock(s *State, action ActionType, actor, target string) {
	blockers := allowedBlockers(s, action, actor, target)
	if len(blockers) == 0 {
		e.finalize(s, action, actor, target)
		return
	}
	phase := &BlockPhase{
		Ballot: Ballot{PhaseID: e.newID(), Eligible: blockers},
		Action: action,
		Actor:  actor,
		Target: target,
	}
	s.Phase = phase
	e.phaseOpened(s, phase)
}

// SubmitBlockVote records whether player blocks the pending action.
func (e *Engine) SubmitBlockVote(s *State, player, phaseID string, block bool) error {
	if s.Finished {
		return ErrGameOver
	}
	phase, ok := s.Phase.(*BlockPhase)
	if !ok || (phaseID != "" && phase.PhaseID != phaseID) {
		return stalef("block phase %s is not open", phaseID)
	}
	if err := e.recordVote(s, &phase.Ballot, player, block, string(phase.Action)); err != nil {
		return err
	}
	if !phase.Complete() {
		return nil
	}

	s.Phase = nil
	if blocker, blocked := phase.FirstYes(); blocked {
		e.setLastMessage(s, fmt.Sprintf("%s blocks %s's %s.", blocker, phase.Actor, displayAction(phase.Action)))
		e.publish(rules.NewEvent(rules.EventBlockDeclared, blocker, phase.Actor, string(phase.Action)))
		e.openBlockChallenge(s, phase, blocker)
	} else {
		e.finalize(s, phase.Action, phase.Actor, phase.Target)
	}
	e.checkGameEnd(s)
	return nil
}

func (e *Engine) openBlockChallenge(s *State, block *BlockPhase, blocker string) {
	eligible := s.livingExcept(blocker)
	if len(eligible) == 0 {
		e.blockHolds(s, block.Action, block.Actor, blocker)
		return
	}
	phase := &BlockChallengePhase{
		Ballot:  Ballot{PhaseID: e.newID(), Eligible: eligible},
		Action:  block.Action,
		Actor:   block.Actor,
		Target:  block.Target,
		Blocker: blocker,
	}
	s.Phase = phase
	e.phaseOpened(s, phase)
}

// SubmitBlockChallengeVote records whether player challenges the declared block.
func (e *Engine) SubmitBlockChallengeVote(s *State, player, phaseID string, challenge bool) error {
	if s.Finished {
		return ErrGameOver
	}
	phase, ok := s.Phase.(*BlockChallengePhase)
	if !ok || (phaseID != "" && phase.PhaseID != phaseID) {
		return stalef("block challenge phase %s is not open", phaseID)
	}
	if err := e.recordVote(s, &phase.Ballot, player, challenge, string(phase.Action)); err != nil {
		return err
	}
	if phase.Complete() {
		e.resolveBlockChallenge(s, phase)
		e.checkGameEnd(s)
	}
	return nil
}

func (e *Engine) resolveBlockChallenge(s *State, phase *BlockChallengePhase) {
	s.Phase = nil
	ctx := lossContext{Action: phase.Action, Actor: phase.Actor, Target: phase.Target, Blocker: phase.Blocker}

	challenger, challenged := phase.FirstYes()
	if !challenged {
		e.blockHolds(s, phase.Action, phase.Actor, phase.Blocker)
		return
	}

	e.publish(rules.NewEvent(rules.EventChallengeIssued, challenger, phase.Blocker, string(phase.Action)))
	spec, _ := phase.Action.Spec()
	blocker := s.Player(phase.Blocker)
	if role, holds := blocker.HoldsAny(spec.BlockedBy...); holds {
		e.setLastMessage(s, fmt.Sprintf("%s challenged the block, but %s had the %s. %s loses an influence.",
			challenger, phase.Blocker, role, challenger))
		e.publish(rules.NewEvent(rules.EventChallengeLost, challenger, phase.Blocker, string(phase.Action)))
		e.beginLoss(s, challenger, LossBlockChallenger, ctx)
		return
	}

	e.setLastMessage(s, fmt.Sprintf("%s challenged the block and caught %s bluffing. %s loses an influence.",
		challenger, phase.Blocker, phase.Blocker))
	e.publish(rules.NewEvent(rules.EventChallengeWon, challenger, phase.Blocker, string(phase.Action)))
	e.publish(rules.NewEvent(rules.EventBlockFailed, phase.Blocker, phase.Actor, string(phase.Action)))
	e.logger.Debug("block failed",
		zap.String("room_id", s.RoomID),
		zap.String("blocker", phase.Blocker),
		zap.String("challenger", challenger),
		zap.String("action", string(phase.Action)),
	)
	e.beginLoss(s, phase.Blocker, LossFailedBlock, ctx)
}

// blockHolds cancels the blocked action and passes the turn. Costs already
// paid stay paid.
func (e *Engine) blockHolds(s *State, action ActionType, actor, blocker string) {
	e.setLastMessage(s, fmt.Sprintf("%s's block holds. %s's %s is cancelled.", blocker, actor, displayAction(action)))
	e.publish(rules.NewEvent(rules.EventBlockHeld, blocker, actor, string(action)))
	e.publish(rules.NewEvent(rules.EventActionCancelled, actor, blocker, string(action)))
	e.advanceTurn(s)
}

func displayAction(action ActionType) string {
	switch action {
	case ActionForeignAid:
		return "foreign aid"
	case ActionAssassinate:
		return "assassination"
	}
	return string(action)
}
