package workflow

import "fmt"

// Machine is an immutable transition table for reimbursement forms
type Machine struct {
	edges map[State]map[Trigger]transition
}

// Next returns the state reached by firing trigger from current.
// On failure current is returned unchanged.
func (m *Machine) Next(current State, trigger Trigger, locked bool) (State, error) {
	t, ok := m.edges[current][trigger]
	if !ok {
		return current, fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, current)
	}
	if t.unlockedOnly && locked {
		return current, fmt.Errorf("%w: %s from %s", ErrLocked, trigger, current)
	}
	return t.to, nil
}
