package rules

import (
	"fmt"
	"strings"
)

// LegalityChecker validates declared actions before the engine mutates state.
type LegalityChecker struct {
	gameState GameStateAccessor
}

// GameStateAccessor provides access to game state needed for legality checks.
type GameStateAccessor interface {
	// FindPlayer finds player info by name
	FindPlayer(name string) (PlayerInfo, bool)
	// ActivePlayer returns the player whose turn it is
	ActivePlayer() string
	// OpenPhase returns the kind of the negotiation phase in progress, or "" when idle
	OpenPhase() string
	// GameOver reports whether a winner has been declared
	GameOver() bool
}

// PlayerInfo provides information about a player for legality checks.
type PlayerInfo struct {
	Name      string
	Coins     int
	Influence int
}

// Alive reports whether the player still holds at least one hidden card.
func (p PlayerInfo) Alive() bool {
	return p.Influence > 0
}

// ActionRequirement describes what an action demands of the actor.
type ActionRequirement struct {
	Action      string
	Cost        int
	NeedsTarget bool
}

// LegalityResult represents the result of a legality check. Details holds
// the values behind an illegal Reason for logging.
type LegalityResult struct {
	Legal   bool
	Reason  string
	Details map[string]string
}

// NewLegalityChecker creates a new legality checker.
func NewLegalityChecker(gameState GameStateAccessor) *LegalityChecker {
	return &LegalityChecker{
		gameState: gameState,
	}
}

func illegal(reason string, details map[string]string) LegalityResult {
	return LegalityResult{Legal: false, Reason: reason, Details: details}
}

// CheckAction validates that actor may declare req against target right now.
func (lc *LegalityChecker) CheckAction(actor string, req ActionRequirement, target string) LegalityResult {
	if lc == nil || lc.gameState == nil {
		return illegal("legality checker not initialized", nil)
	}

	if lc.gameState.GameOver() {
		return illegal("game is over", nil)
	}

	if phase := lc.gameState.OpenPhase(); phase != "" {
		return illegal(fmt.Sprintf("cannot declare an action while the %s phase is open", phase), map[string]string{
			"phase": phase,
		})
	}

	actor = strings.TrimSpace(actor)
	player, found := lc.gameState.FindPlayer(actor)
	if !found {
		return illegal("actor not found", map[string]string{"actor": actor})
	}
	if !player.Alive() {
		return illegal("actor has been eliminated", map[string]string{"actor": actor})
	}

	if active := lc.gameState.ActivePlayer(); active != actor {
		return illegal("not your turn", map[string]string{
			"actor":  actor,
			"active": active,
		})
	}

	if player.Coins < req.Cost {
		return illegal(fmt.Sprintf("%s costs %d coins", req.Action, req.Cost), map[string]string{
			"coins": fmt.Sprintf("%d", player.Coins),
			"cost":  fmt.Sprintf("%d", req.Cost),
		})
	}

	if !req.NeedsTarget {
		return LegalityResult{Legal: true}
	}

	target = strings.TrimSpace(target)
	if target == "" {
		return illegal(fmt.Sprintf("%s requires a target", req.Action), nil)
	}
	if target == actor {
		return illegal("cannot target yourself", map[string]string{"target": target})
	}
	victim, found := lc.gameState.FindPlayer(target)
	if !found {
		return illegal("target not found", map[string]string{"target": target})
	}
	if !victim.Alive() {
		return illegal("target has been eliminated", map[string]string{"target": target})
	}

	return LegalityResult{Legal: true}
}
