package graph

import "fmt"

// State is the lifecycle position of a node
type State uint8

const (
	StateDiscovered State = iota
	StateResolving
	StateInstantiated
	StateSynthesized
	StateEmitted
	StateRejected
)

var stateNames = [...]string{"discovered", "resolving", "instantiated", "synthesized", "emitted", "rejected"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return s == StateEmitted || s == StateRejected
}

var transitions = map[State][]State{
	StateDiscovered:   {StateResolving},
	StateResolving:    {StateInstantiated, StateSynthesized},
	StateInstantiated: {StateSynthesized},
	StateSynthesized:  {StateEmitted},
}

// Advance validates the transition from s to next and returns next.
// Rejected is reachable from every non-terminal state.
func (s State) Advance(next State) (State, error) {
	if s.Terminal() {
		return s, fmt.Errorf("node is %s; cannot move to %s", s, next)
	}
	if next == StateRejected {
		return next, nil
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("invalid transition %s -> %s", s, next)
}
