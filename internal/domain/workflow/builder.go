package workflow

import "fmt"

// transition is one permitted edge of the form lifecycle
type transition struct {
	to State
	// unlockedOnly edges are refused while the form is locked
	unlockedOnly bool
}

// tableBuilder collects transitions; the first invalid edge sticks as err
type tableBuilder struct {
	edges map[State]map[Trigger]transition
	err   error
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{edges: make(map[State]map[Trigger]transition)}
}

// permit allows trigger to move a form from one state to another
func (b *tableBuilder) permit(from State, trigger Trigger, to State) *tableBuilder {
	return b.add(from, trigger, transition{to: to})
}

// permitUnlocked is permit restricted to forms that are not locked
func (b *tableBuilder) permitUnlocked(from State, trigger Trigger, to State) *tableBuilder {
	return b.add(from, trigger, transition{to: to, unlockedOnly: true})
}

func (b *tableBuilder) add(from State, trigger Trigger, t transition) *tableBuilder {
	if b.err != nil {
		return b
	}
	switch {
	case !from.IsValid():
		b.err = fmt.Errorf("invalid source state %q", from)
		return b
	case !t.to.IsValid():
		b.err = fmt.Errorf("invalid target state %q", t.to)
		return b
	}

	byTrigger, ok := b.edges[from]
	if !ok {
		byTrigger = make(map[Trigger]transition)
		b.edges[from] = byTrigger
	}
	if _, dup := byTrigger[trigger]; dup {
		b.err = fmt.Errorf("duplicate transition %s from %s", trigger, from)
		return b
	}
	byTrigger[trigger] = t
	return b
}

// build freezes the collected edges into a Machine
func (b *tableBuilder) build() (*Machine, error) {
	if b.err != nil {
		return nil, b.err
	}
	edges := make(map[State]map[Trigger]transition, len(b.edges))
	for from, byTrigger := range b.edges {
		cp := make(map[Trigger]transition, len(byTrigger))
		for trigger, t := range byTrigger {
			cp[trigger] = t
		}
		edges[from] = cp
	}
	return &Machine{edges: edges}, nil
}
