package process

import "fmt"

// State is a position in the supervision state machine:
//
//	idle ──▶ starting ──▶ running ──▶ exited_clean
//	             │            │
//	             └────────────┴─────▶ exited_error
//
// Both exited states may move back to starting.
type State string

const (
	StateIdle        State = "idle"
	StateStarting    State = "starting"
	StateRunning     State = "running"
	StateExitedClean State = "exited_clean"
	StateExitedError State = "exited_error"
)

var transitions = map[State][]State{
	StateIdle:        {StateStarting},
	StateStarting:    {StateRunning, StateExitedError},
	StateRunning:     {StateExitedClean, StateExitedError},
	StateExitedClean: {StateStarting},
	StateExitedError: {StateStarting},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Exited reports whether s is a terminal state of a run.
func (s State) Exited() bool {
	return s == StateExitedClean || s == StateExitedError
}

func checkTransition(from, to State) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
