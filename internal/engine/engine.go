// Package engine implements the pure transition engine: it evaluates a
// (state, event) pair against a chart, runs guards and actions, and reports
// the outcome without touching any instance or store.
//
// Evaluation is deterministic: guards are tried in declaration order and the
// first passing transition wins; that transition's actions run in declared
// order, each seeing the context as patched by its predecessors. The caller
// applies the merged patch and the state change only after Evaluate returns
// without error, which is what makes transitions all-or-nothing from the
// instance's point of view. Effectful actions may have performed I/O before
// a later action fails; that gap is accepted and effect implementations are
// expected to be idempotent.
package engine

import (
	"errors"
	"fmt"

	"github.com/launchforge/statecore/internal/chart"
)

// ErrNoMatch reports that no transition is declared for the (state, event)
// pair. The event is dropped; the instance is untouched.
var ErrNoMatch = errors.New("no matching transition")

// GuardError reports that transitions were declared for the pair but every
// guard rejected the event.
type GuardError struct {
	State  string
	Event  string
	Guards []string // guards tried, in declaration order
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guards %v rejected event %s in state %s", e.Guards, e.Event, e.State)
}

// ActionError reports that an action failed, aborting the transition before
// any of it became visible.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s failed: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Outcome describes one accepted transition.
type Outcome struct {
	From     string
	To       string
	Internal bool
	Guard    string   // guard that admitted the transition, "" if unguarded
	Actions  []string // actions run, in order
	Patch    chart.Patch
	Emitted  []chart.Event // events actions asked to self-dispatch after commit
}

// Evaluate computes the outcome of delivering ev to an instance of c that is
// in state with the given context. The context is never mutated; the caller
// owns applying Outcome.Patch.
func Evaluate(c *chart.Chart, state string, ctx chart.Context, ev chart.Event) (Outcome, error) {
	candidates := c.From(state, ev.Type)
	if len(candidates) == 0 {
		return Outcome{}, ErrNoMatch
	}

	var tried []string
	var picked *chart.Transition
	for i := range candidates {
		t := &candidates[i]
		if t.Guard == "" {
			picked = t
			break
		}
		tried = append(tried, t.Guard)
		if c.Guards[t.Guard](ctx, ev) {
			picked = t
			break
		}
	}
	if picked == nil {
		return Outcome{}, &GuardError{State: state, Event: ev.Type, Guards: tried}
	}

	out := Outcome{
		From:     state,
		To:       picked.To,
		Internal: picked.Internal,
		Guard:    picked.Guard,
		Patch:    chart.Patch{},
	}

	// Actions see the context as patched by the actions before them. Work on
	// a clone so a failure leaves the caller's context untouched.
	working := ctx.Clone()
	for _, name := range picked.Actions {
		res, err := c.Actions[name](working, ev)
		if err != nil {
			return Outcome{}, &ActionError{Action: name, Err: err}
		}
		out.Actions = append(out.Actions, name)
		if res.Patch != nil {
			res.Patch.Apply(working)
			for k, v := range res.Patch {
				out.Patch[k] = v
			}
		}
		out.Emitted = append(out.Emitted, res.Emit...)
	}

	return out, nil
}
