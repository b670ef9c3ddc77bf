package game

import (
	"fmt"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// finalize applies the effect of an action that survived every challenge
// and block.
func (e *Engine) finalize(s *State, action ActionType, actor, target string) {
	player := s.Player(actor)

	switch action {
	case ActionIncome:
		e.gain(s, player, action, IncomeAmount)
		e.setLastMessage(s, fmt.Sprintf("%s took income.", actor))
	case ActionForeignAid:
		e.gain(s, player, action, ForeignAidGain)
		e.setLastMessage(s, fmt.Sprintf("%s took foreign aid.", actor))
	case ActionTax:
		e.gain(s, player, action, TaxGain)
		e.setLastMessage(s, fmt.Sprintf("%s collected tax.", actor))
	case ActionSteal:
		victim := s.Player(target)
		amount := min(StealAmount, victim.Coins)
		victim.Coins -= amount
		player.Coins += amount
		e.publish(rules.NewEventWithAmount(rules.EventCoinsChanged, target, actor, string(action), -amount))
		e.publish(rules.NewEventWithAmount(rules.EventCoinsChanged, actor, target, string(action), amount))
		e.setLastMessage(s, fmt.Sprintf("%s stole %d coins from %s.", actor, amount, target))
	case ActionAssassinate:
		e.setLastMessage(s, fmt.Sprintf("%s assassinated %s's influence.", actor, target))
		e.beginLoss(s, target, LossAssassination, lossContext{Action: action, Actor: actor, Target: target})
		return
	case ActionCoup:
		e.beginLoss(s, target, LossCoup, lossContext{Action: action, Actor: actor, Target: target})
		return
	case ActionExchange:
		e.beginExchange(s, actor)
		return
	}

	e.publish(rules.NewEvent(rules.EventActionResolved, actor, target, string(action)))
	e.advanceTurn(s)
}

func (e *Engine) gain(s *State, player *Player, action ActionType, amount int) {
	player.Coins += amount
	e.publish(rules.NewEventWithAmount(rules.EventCoinsChanged, player.Name, "", string(action), amount))
}
