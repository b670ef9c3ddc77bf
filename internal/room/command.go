package room

import (
	"fmt"
	"time"

	"github.com/thraizz/coup-server-go/internal/game"
	"github.com/thraizz/coup-server-go/internal/game/rules"
)

// CommandKind names a room command.
type CommandKind string

// Room commands. Each maps onto one engine entry point.
const (
	CommandPerformAction      CommandKind = "perform_action"
	CommandChallengeVote      CommandKind = "challenge_vote"
	CommandBlockVote          CommandKind = "block_vote"
	CommandBlockChallengeVote CommandKind = "block_challenge_vote"
	CommandDiscard            CommandKind = "discard"
	CommandExchangeKeep       CommandKind = "exchange_keep"

	commandTimeout CommandKind = "timeout"
)

// ParseCommandKind validates a command name received from a client.
func ParseCommandKind(name string) (CommandKind, error) {
	switch kind := CommandKind(name); kind {
	case CommandPerformAction, CommandChallengeVote, CommandBlockVote,
		CommandBlockChallengeVote, CommandDiscard, CommandExchangeKeep:
		return kind, nil
	}
	return "", fmt.Errorf("%w: unknown command %q", game.ErrIllegalMove, name)
}

// Command is one player input addressed to a room.
type Command struct {
	Kind   CommandKind
	Player string

	// PhaseID is the phase the client answered. Empty means the open phase.
	PhaseID string
	// ExpectedVersion, when non-zero, must equal the room's committed version.
	ExpectedVersion uint64

	Action game.ActionType
	Target string
	Yes    bool
	Card   game.Role
	Keep   []game.Role
}

// Result reports the outcome of a command.
type Result struct {
	Version uint64
	// Stale is set when the command answered a phase that had already
	// resolved. Stale commands change nothing and are not errors.
	Stale bool
	View  game.GameView
}

// Update is pushed to subscribers after every commit.
type Update struct {
	Version  uint64
	View     game.GameView
	Events   []rules.Event
	Deadline time.Time
}

func (r *Room) dispatch(e *game.Engine, s *game.State, cmd Command) error {
	switch cmd.Kind {
	case CommandPerformAction:
		return e.PerformAction(s, cmd.Player, cmd.Action, cmd.Target)
	case CommandChallengeVote:
		return e.SubmitChallengeVote(s, cmd.Player, cmd.PhaseID, cmd.Yes)
	case CommandBlockVote:
		return e.SubmitBlockVote(s, cmd.Player, cmd.PhaseID, cmd.Yes)
	case CommandBlockChallengeVote:
		return e.SubmitBlockChallengeVote(s, cmd.Player, cmd.PhaseID, cmd.Yes)
	case CommandDiscard:
		return e.SelectDiscard(s, cmd.Player, cmd.PhaseID, cmd.Card)
	case CommandExchangeKeep:
		return e.SelectExchangeKeep(s, cmd.Player, cmd.PhaseID, cmd.Keep)
	case commandTimeout:
		return e.Timeout(s, cmd.PhaseID)
	}
	return fmt.Errorf("%w: unknown command %q", game.ErrIllegalMove, cmd.Kind)
}
