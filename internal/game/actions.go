package game

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// ActionType is one of the seven turn actions.
type ActionType string

const (
	ActionIncome      ActionType = "income"
	ActionForeignAid  ActionType = "foreign_aid"
	ActionCoup        ActionType = "coup"
	ActionTax         ActionType = "tax"
	ActionSteal       ActionType = "steal"
	ActionAssassinate ActionType = "assassinate"
	ActionExchange    ActionType = "exchange"
)

// Action costs and payouts.
const (
	CoupCost        = 7
	AssassinateCost = 3
	IncomeAmount    = 1
	ForeignAidGain  = 2
	TaxGain         = 3
	StealAmount     = 2
	ExchangeDraw    = 2
)

// ActionSpec describes an action's cost, role claim, targeting and counters.
type ActionSpec struct {
	Cost        int
	Claim       Role // empty when the action claims no role
	NeedsTarget bool
	BlockedBy   []Role
}

var actionSpecs = map[ActionType]ActionSpec{
	ActionIncome:      {},
	ActionForeignAid:  {BlockedBy: []Role{RoleDuke}},
	ActionCoup:        {Cost: CoupCost, NeedsTarget: true},
	ActionTax:         {Claim: RoleDuke},
	ActionSteal:       {Claim: RoleCaptain, NeedsTarget: true, BlockedBy: []Role{RoleCaptain, RoleAmbassador}},
	ActionAssassinate: {Cost: AssassinateCost, Claim: RoleAssassin, NeedsTarget: true, BlockedBy: []Role{RoleContessa}},
	ActionExchange:    {Claim: RoleAmbassador},
}

// Spec returns the static description of the action.
func (a ActionType) Spec() (ActionSpec, bool) {
	spec, ok := actionSpecs[a]
	return spec, ok
}

// ParseAction normalizes an action name.
func ParseAction(name string) (ActionType, error) {
	action := ActionType(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := actionSpecs[action]; !ok {
		return "", illegalf("unknown action %q", name)
	}
	return action, nil
}

// PerformAction validates and starts the current player's action. On error
// the state is not modified.
func (e *Engine) PerformAction(s *State, actor string, action ActionType, target string) error {
	if s.Finished {
		return ErrGameOver
	}
	if !s.Started {
		return illegalf("game has not started")
	}
	spec, ok := action.Spec()
	if !ok {
		return illegalf("unknown action %q", action)
	}
	actor = strings.TrimSpace(actor)
	target = strings.TrimSpace(target)
	if !spec.NeedsTarget {
		target = ""
	}

	result := rules.NewLegalityChecker(stateAccessor{s}).CheckAction(actor, rules.ActionRequirement{
		Action:      string(action),
		Cost:        spec.Cost,
		NeedsTarget: spec.NeedsTarget,
	}, target)
	if !result.Legal {
		e.logger.Debug("action rejected",
			zap.String("room_id", s.RoomID),
			zap.String("actor", actor),
			zap.String("action", string(action)),
			zap.String("reason", result.Reason),
			zap.Any("details", result.Details),
		)
		return illegalf("%s", result.Reason)
	}

	player := s.Player(actor)
	if spec.Cost > 0 {
		player.Coins -= spec.Cost
		e.publish(rules.NewEventWithAmount(rules.EventCoinsChanged, actor, "", string(action), -spec.Cost))
	}

	s.LastAction = &LastAction{
		Actor:   actor,
		Action:  action,
		Target:  target,
		Message: declarationMessage(actor, action, target),
	}
	s.addMessage(s.LastAction.Message)
	e.publish(rules.NewEvent(rules.EventActionDeclared, actor, target, string(action)))

	switch action {
	case ActionIncome:
		player.Coins += IncomeAmount
		e.publish(rules.NewEventWithAmount(rules.EventCoinsChanged, actor, "", string(action), IncomeAmount))
		e.publish(rules.NewEvent(rules.EventActionResolved, actor, "", string(action)))
		e.advanceTurn(s)
	case ActionForeignAid:
		e.openBlock(s, action, actor, "")
	case ActionCoup:
		e.beginLoss(s, target, LossCoup, lossContext{Action: action, Actor: actor, Target: target})
	default:
		e.openChallenge(s, action, actor, target, spec.Claim)
	}

	e.checkGameEnd(s)
	return nil
}

func declarationMessage(actor string, action ActionType, target string) string {
	switch action {
	case ActionIncome:
		return fmt.Sprintf("%s took income.", actor)
	case ActionForeignAid:
		return fmt.Sprintf("%s is attempting to take foreign aid.", actor)
	case ActionCoup:
		return fmt.Sprintf("%s launched a coup against %s.", actor, target)
	case ActionTax:
		return fmt.Sprintf("%s claims Duke to collect tax.", actor)
	case ActionSteal:
		return fmt.Sprintf("%s claims Captain to steal from %s.", actor, target)
	case ActionAssassinate:
		return fmt.Sprintf("%s claims Assassin to assassinate %s.", actor, target)
	case ActionExchange:
		return fmt.Sprintf("%s claims Ambassador to exchange cards.", actor)
	}
	return fmt.Sprintf("%s declared %s.", actor, action)
}

// proceedUnopposed continues an action whose role claim stood or was never
// challenged.
func (e *Engine) proceedUnopposed(s *State, action ActionType, actor, target string) {
	switch action {
	case ActionTax:
		e.finalize(s, action, actor, target)
	case ActionSteal, ActionAssassinate, ActionForeignAid:
		e.openBlock(s, action, actor, target)
	case ActionExchange:
		e.beginExchange(s, actor)
	default:
		e.finalize(s, action, actor, target)
	}
}
