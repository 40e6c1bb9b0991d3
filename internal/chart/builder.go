package chart

import "fmt"

// Builder provides a fluent API for declaring charts using state names,
// deferring all checking to Build so chart definitions read as tables.
type Builder struct {
	chart *Chart
	seen  map[string]bool
	order []string
	first string
	final map[string]bool
}

// NewBuilder creates a builder for the given entity type.
func NewBuilder(t EntityType) *Builder {
	return &Builder{
		chart: &Chart{
			Type:    t,
			Guards:  map[string]Guard{},
			Actions: map[string]Action{},
		},
		seen:  map[string]bool{},
		final: map[string]bool{},
	}
}

func (b *Builder) touch(name string) {
	if name == "" || b.seen[name] {
		return
	}
	b.seen[name] = true
	b.order = append(b.order, name)
}

// Initial declares the initial state, registering it if unseen.
func (b *Builder) Initial(name string) *Builder {
	b.touch(name)
	b.first = name
	return b
}

// Terminal marks states as final, registering them if unseen.
func (b *Builder) Terminal(names ...string) *Builder {
	for _, n := range names {
		b.touch(n)
		b.final[n] = true
	}
	return b
}

// Guard registers a named guard predicate.
func (b *Builder) Guard(name string, g Guard) *Builder {
	b.chart.Guards[name] = g
	return b
}

// Action registers a named action.
func (b *Builder) Action(name string, a Action) *Builder {
	b.chart.Actions[name] = a
	return b
}

// TransitionBuilder configures one edge before it is appended.
type TransitionBuilder struct {
	b *Builder
	t Transition
}

// On starts a transition declaration for (from, event). States are
// auto-registered on first mention. The edge is appended when Target,
// Stay, or another terminal call is made.
func (b *Builder) On(from, event string) *TransitionBuilder {
	b.touch(from)
	return &TransitionBuilder{b: b, t: Transition{From: from, Event: event}}
}

// Guard names the guard gating this transition.
func (tb *TransitionBuilder) Guard(name string) *TransitionBuilder {
	tb.t.Guard = name
	return tb
}

// Do appends actions to run, in order, when this transition fires.
func (tb *TransitionBuilder) Do(names ...string) *TransitionBuilder {
	tb.t.Actions = append(tb.t.Actions, names...)
	return tb
}

// Target finalizes the transition as an external edge into the named state.
func (tb *TransitionBuilder) Target(state string) *Builder {
	tb.b.touch(state)
	tb.t.To = state
	tb.b.chart.Transitions = append(tb.b.chart.Transitions, tb.t)
	return tb.b
}

// Stay finalizes the transition as internal: actions run and the patch is
// applied, but the instance does not leave its state and no audit entry is
// written.
func (tb *TransitionBuilder) Stay() *Builder {
	tb.t.Internal = true
	tb.t.To = tb.t.From
	tb.b.chart.Transitions = append(tb.b.chart.Transitions, tb.t)
	return tb.b
}

// Build assembles and validates the chart.
func (b *Builder) Build() (*Chart, error) {
	if b.first == "" {
		return nil, fmt.Errorf("chart %s: no initial state declared", b.chart.Type)
	}
	for _, name := range b.order {
		b.chart.States = append(b.chart.States, State{
			Name:    name,
			Initial: name == b.first,
			Final:   b.final[name],
		})
	}
	if err := b.chart.Validate(); err != nil {
		return nil, fmt.Errorf("chart %s: %w", b.chart.Type, err)
	}
	return b.chart, nil
}

// MustBuild is Build for static chart definitions, panicking on error.
// Chart definitions are package-level configuration; a broken table is a
// programming error caught at startup.
func (b *Builder) MustBuild() *Chart {
	c, err := b.Build()
	if err != nil {
		panic(err)
	}
	return c
}
