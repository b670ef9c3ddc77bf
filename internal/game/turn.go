package game

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// advanceTurn passes the turn to the next living player in seat order. With
// nobody alive the state is left as is.
func (e *Engine) advanceTurn(s *State) {
	if s.Finished {
		return
	}
	tc := rules.NewTurnController(stateAccessor{s}, s.Turn)
	next, ok := tc.Advance(s.CurrentTurn)
	if !ok {
		return
	}
	s.CurrentTurn = next
	s.Turn = tc.TurnNumber()
	e.publish(rules.NewEventWithAmount(rules.EventTurnChanged, next, "", "", s.Turn))
}

// checkGameEnd declares a winner once exactly one player holds influence.
// It reports whether the game is over.
func (e *Engine) checkGameEnd(s *State) bool {
	if s.Finished {
		return true
	}
	living := s.Living()
	if len(living) != 1 {
		return false
	}

	s.Finished = true
	s.Winner = living[0]
	s.Phase = nil
	s.CurrentTurn = s.Winner
	s.addMessage(fmt.Sprintf("%s wins the game!", s.Winner))

	e.publish(rules.NewEvent(rules.EventGameWon, s.Winner, "", ""))
	e.logger.Info("game finished",
		zap.String("room_id", s.RoomID),
		zap.String("winner", s.Winner),
		zap.Int("turns", s.Turn),
	)
	return true
}
