package domain

import (
	"fmt"
	"strings"
)

// State is the lifecycle state shared by tasks and member progress rows.
type State string

const (
	StateNotAssigned State = "NotAssigned"
	StateOngoing     State = "Ongoing"
	StateInterrupted State = "Interrupted"
	StateCompleted   State = "Completed"
	StateCanceled    State = "Canceled"
)

// States lists every known state in declaration order.
var States = []State{StateNotAssigned, StateOngoing, StateInterrupted, StateCompleted, StateCanceled}

// transitions is built once and only read afterwards.
var transitions = map[State]map[State]struct{}{
	StateNotAssigned: {StateOngoing: {}},
	StateOngoing:     {StateInterrupted: {}, StateCompleted: {}},
	StateInterrupted: {StateOngoing: {}, StateCanceled: {}},
	StateCompleted:   {},
	StateCanceled:    {},
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no direct transition leaves s.
func (s State) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s State) String() string { return string(s) }

// CanTransition reports whether a direct (non-aggregated) change from one
// global state to another is allowed.
func CanTransition(from, to State) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// NextStates returns the states reachable from s by a direct change.
func NextStates(s State) []State {
	out := make([]State, 0, 2)
	for _, candidate := range States {
		if CanTransition(s, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// ParseState matches a state name case-insensitively.
func ParseState(raw string) (State, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range States {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown state %q", ErrValidation, raw)
}

// Aggregate derives a task's global state from its member progress states.
// The result depends only on the multiset of states, never on their order.
//
// All-Canceled (or any mix without Completed-only, Ongoing or Interrupted
// members) falls back to Ongoing.
func Aggregate(hasTeam bool, current State, states []State) State {
	if !hasTeam {
		return StateNotAssigned
	}
	if len(states) == 0 {
		if current == StateNotAssigned {
			return StateOngoing
		}
		return current
	}
	var completed, ongoing, interrupted int
	for _, s := range states {
		switch s {
		case StateCompleted:
			completed++
		case StateOngoing:
			ongoing++
		case StateInterrupted:
			interrupted++
		}
	}
	switch {
	case completed == len(states):
		return StateCompleted
	case ongoing > 0:
		return StateOngoing
	case interrupted > 0:
		return StateInterrupted
	default:
		return StateOngoing
	}
}
