package game

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalMove is returned when a command violates the rules. State is unchanged.
	ErrIllegalMove = errors.New("illegal move")
	// ErrGameOver is returned for any command after a winner has been declared.
	ErrGameOver = fmt.Errorf("%w: game is over", ErrIllegalMove)
	// ErrStaleResponse is returned for responses addressed to a phase that has
	// already resolved or been replaced.
	ErrStaleResponse = errors.New("stale response")
	// ErrDuplicateResponse is returned when a responder answers the same phase twice.
	ErrDuplicateResponse = fmt.Errorf("%w: already answered", ErrStaleResponse)
)

func illegalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalMove, fmt.Sprintf(format, args...))
}

func stalef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStaleResponse, fmt.Sprintf(format, args...))
}
