// Package chart defines the static statechart model for one business entity
// type: states, transitions, and the registries of named guards and actions
// a transition may reference.
//
// A Chart is pure data plus registered functions. It performs no I/O and holds
// no runtime state; live occurrences of a chart are managed by the instance
// store. Charts are validated once at load time and treated as immutable
// afterwards.
package chart

import (
	"errors"
	"fmt"
	"time"
)

// EntityType identifies which business entity a chart (or instance) models.
type EntityType string

const (
	UserJourney   EntityType = "user_journey"
	Venture       EntityType = "venture"
	LegalDocument EntityType = "legal_document"
	Compliance    EntityType = "compliance"
	Subscription  EntityType = "subscription"
	Team          EntityType = "team"
)

// Types lists every known entity type.
func Types() []EntityType {
	return []EntityType{UserJourney, Venture, LegalDocument, Compliance, Subscription, Team}
}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case UserJourney, Venture, LegalDocument, Compliance, Subscription, Team:
		return true
	}
	return false
}

// Event is the only way an instance is mutated. Events are value types and
// must not be modified after construction.
type Event struct {
	Type string
	Meta map[string]any
	Time time.Time
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(eventType string, meta map[string]any) Event {
	return Event{Type: eventType, Meta: meta, Time: time.Now().UTC()}
}

// Context is the per-instance key/value payload. Guards read it; actions
// never mutate it directly and instead return a Patch the engine applies
// after the whole transition succeeds.
type Context map[string]any

// Clone returns a shallow copy. Values are shared; charts store only
// scalars and small slices in context by convention.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// String returns the string value for key, or "" when absent or non-string.
func (c Context) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Int returns the int value for key, tolerating the numeric types that
// survive a JSON round trip.
func (c Context) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns the bool value for key, or false when absent.
func (c Context) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Strings returns the string-slice value for key. A []any holding strings
// (the shape JSON decoding produces) is converted.
func (c Context) Strings(key string) []string {
	switch v := c[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// HasString reports whether the string-slice at key contains want.
func (c Context) HasString(key, want string) bool {
	for _, s := range c.Strings(key) {
		if s == want {
			return true
		}
	}
	return false
}

// Patch is the set of context updates produced by an action. A nil value
// for a key deletes it.
type Patch map[string]any

// Apply merges p into ctx, returning the same map for chaining.
func (p Patch) Apply(ctx Context) Context {
	for k, v := range p {
		if v == nil {
			delete(ctx, k)
			continue
		}
		ctx[k] = v
	}
	return ctx
}

// Guard is a pure predicate gating whether a transition may fire. It must
// not mutate its inputs and must not perform I/O.
type Guard func(ctx Context, ev Event) bool

// Result is what an action hands back to the engine: a context patch to
// apply once the transition commits, and zero or more events to dispatch
// to the same instance after the commit.
type Result struct {
	Patch Patch
	Emit  []Event
}

// Action runs during a transition, in declared order. Pure actions compute
// a patch; effectful actions may additionally perform I/O and fail, which
// aborts the whole transition before any patch is applied.
type Action func(ctx Context, ev Event) (Result, error)

// State is one named node of a chart.
type State struct {
	Name    string
	Initial bool
	Final   bool
}

// Transition is one edge of a chart. Internal transitions run their actions
// and apply their patch without leaving the current state; they produce no
// audit entry and trigger no coordination.
type Transition struct {
	From     string
	Event    string
	Guard    string // optional, must be registered when set
	Actions  []string
	To       string
	Internal bool
}

// Chart is the complete static definition for one entity type.
type Chart struct {
	Type        EntityType
	States      []State
	Transitions []Transition // declaration order is evaluation order
	Guards      map[string]Guard
	Actions     map[string]Action

	byName  map[string]State
	byEdge  map[edgeKey][]Transition
	initial string
}

type edgeKey struct {
	from  string
	event string
}

// Initial returns the chart's initial state name.
func (c *Chart) Initial() string { return c.initial }

// HasState reports whether name is a declared state.
func (c *Chart) HasState(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// IsFinal reports whether name is a declared final state.
func (c *Chart) IsFinal(name string) bool {
	return c.byName[name].Final
}

// From returns the transitions declared for (state, event), in declaration
// order. The returned slice must not be modified.
func (c *Chart) From(state, eventType string) []Transition {
	return c.byEdge[edgeKey{from: state, event: eventType}]
}

// Validate checks the chart once at load time:
//   - the entity type is known and at least one state is declared
//   - exactly one state carries the initial flag
//   - every transition endpoint names a declared state
//   - every referenced guard and action is registered
//   - two transitions on the same (state, event) are only allowed when all
//     but the last carry guards; an unguarded transition shadowing a later
//     one is a configuration error
//
// Validate also builds the internal lookup tables, so it must be called
// before the chart is used.
func (c *Chart) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("unknown entity type %q", c.Type)
	}
	if len(c.States) == 0 {
		return errors.New("chart has no states")
	}

	c.byName = make(map[string]State, len(c.States))
	c.initial = ""
	for _, s := range c.States {
		if s.Name == "" {
			return errors.New("state with empty name")
		}
		if _, dup := c.byName[s.Name]; dup {
			return fmt.Errorf("duplicate state %q", s.Name)
		}
		c.byName[s.Name] = s
		if s.Initial {
			if c.initial != "" {
				return fmt.Errorf("more than one initial state: %q and %q", c.initial, s.Name)
			}
			c.initial = s.Name
		}
	}
	if c.initial == "" {
		return errors.New("no initial state declared")
	}

	c.byEdge = make(map[edgeKey][]Transition)
	for i, t := range c.Transitions {
		if t.Event == "" {
			return fmt.Errorf("transition %d: empty event", i)
		}
		if !c.HasState(t.From) {
			return fmt.Errorf("transition %d (%s on %q): unknown source state %q", i, t.Event, t.From, t.From)
		}
		if t.Internal {
			if t.To != "" && t.To != t.From {
				return fmt.Errorf("transition %d (%s on %q): internal transition cannot target %q", i, t.Event, t.From, t.To)
			}
		} else if !c.HasState(t.To) {
			return fmt.Errorf("transition %d (%s on %q): unknown target state %q", i, t.Event, t.From, t.To)
		}
		if t.Guard != "" {
			if _, ok := c.Guards[t.Guard]; !ok {
				return fmt.Errorf("transition %d (%s on %q): unregistered guard %q", i, t.Event, t.From, t.Guard)
			}
		}
		for _, a := range t.Actions {
			if _, ok := c.Actions[a]; !ok {
				return fmt.Errorf("transition %d (%s on %q): unregistered action %q", i, t.Event, t.From, a)
			}
		}

		key := edgeKey{from: t.From, event: t.Event}
		prior := c.byEdge[key]
		if n := len(prior); n > 0 && prior[n-1].Guard == "" {
			// An unguarded transition already matches unconditionally; a
			// later sibling could never fire.
			return fmt.Errorf("ambiguous transitions for (%q, %s): unguarded transition shadows a later one", t.From, t.Event)
		}
		c.byEdge[key] = append(prior, t)
	}

	return nil
}
