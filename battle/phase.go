// battle/phase.go
package battle

import (
	"errors"
)

// Phase 对战所处的阶段
type Phase string

const (
	PhaseWaiting     Phase = "waiting"
	PhasePlayer1Turn Phase = "player1-turn"
	PhaseGenerating  Phase = "generating"
	PhasePlayer2Turn Phase = "player2-turn"
	PhaseComplete    Phase = "complete"
)

// ErrTransitionNotAllowed is returned when a phase change is not in the table.
var ErrTransitionNotAllowed = errors.New("phase transition not allowed")

// transitions lists the legal phase changes. PhaseComplete is terminal: the
// only way out of it is an explicit reset, which bypasses the table.
var transitions = map[Phase][]Phase{
	PhaseWaiting:     {PhasePlayer1Turn},
	PhasePlayer1Turn: {PhaseGenerating},
	PhasePlayer2Turn: {PhaseGenerating},
	PhaseGenerating:  {PhasePlayer1Turn, PhasePlayer2Turn, PhaseComplete},
	PhaseComplete:    {},
}

func canTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// TurnPhase returns the turn phase owned by the given player position.
func TurnPhase(player int) Phase {
	if player == 2 {
		return PhasePlayer2Turn
	}
	return PhasePlayer1Turn
}

// IsTurn reports whether the phase is one of the two editable turn phases.
func (p Phase) IsTurn() bool {
	return p == PhasePlayer1Turn || p == PhasePlayer2Turn
}
