package rules

import "strings"

// SeatAccessor exposes the seating information the turn controller needs.
type SeatAccessor interface {
	// SeatOrder returns player names in fixed join order.
	SeatOrder() []string
	// IsAlive reports whether the player still holds influence.
	IsAlive(name string) bool
}

// TurnController tracks whose turn it is and rotates the turn around the table.
type TurnController struct {
	seats      SeatAccessor
	turnNumber int
}

// NewTurnController creates a turn controller starting at the given turn number.
func NewTurnController(seats SeatAccessor, turnNumber int) *TurnController {
	if turnNumber < 1 {
		turnNumber = 1
	}
	return &TurnController{
		seats:      seats,
		turnNumber: turnNumber,
	}
}

// TurnNumber returns the current turn number (1-based).
func (tc *TurnController) TurnNumber() int {
	return tc.turnNumber
}

// Next returns the first living player after current in seat order, wrapping
// around the table. When nobody is alive it returns current and false.
// A current player missing from the table is treated as sitting before seat 0.
func (tc *TurnController) Next(current string) (string, bool) {
	order := tc.seats.SeatOrder()
	if len(order) == 0 {
		return current, false
	}

	current = strings.TrimSpace(current)
	start := -1
	for i, name := range order {
		if name == current {
			start = i
			break
		}
	}

	for step := 1; step <= len(order); step++ {
		idx := (start + step) % len(order)
		if idx < 0 {
			idx += len(order)
		}
		if tc.seats.IsAlive(order[idx]) {
			return order[idx], true
		}
	}
	return current, false
}

// Advance moves the turn to the next living player and bumps the turn number.
// The returned bool is false when no living player exists; the turn number is
// left unchanged in that case.
func (tc *TurnController) Advance(current string) (string, bool) {
	next, ok := tc.Next(current)
	if !ok {
		return current, false
	}
	tc.turnNumber++
	return next, true
}
