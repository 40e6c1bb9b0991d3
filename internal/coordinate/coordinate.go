// Package coordinate propagates transitions between machines of different
// types. A static rule table maps (source type, entered state) pairs to
// target machines; when a transition commits, the coordinator builds target
// events from the source context and dispatches them asynchronously.
//
// Coordination is best-effort relative to the triggering transition: by the
// time a rule runs the source transition has already committed, so a failed
// downstream dispatch is retried with bounded backoff and finally logged,
// never rolled back into the source.
package coordinate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/engine"
)

// Rule maps one machine's state entry to an event on another machine.
// Rules are static configuration: loaded once at startup, immutable after.
type Rule struct {
	// SourceType and SourceState select the transitions this rule reacts to:
	// any transition of SourceType entering SourceState.
	SourceType  chart.EntityType
	SourceState string

	// SourceEvent, when set, narrows the rule to transitions triggered by
	// that event. Empty matches any event entering SourceState, which is the
	// right behavior for states with a single interesting entry path; set it
	// for audited self-loops where only one of the entering events matters.
	SourceEvent string

	// TargetType is the entity type receiving the synthesized event.
	TargetType chart.EntityType

	// TargetID resolves the target instance id from the source context.
	// Returning "" skips the rule for that transition.
	TargetID func(src chart.Context) string

	// Build synthesizes the target event from the source context.
	Build func(src chart.Context) chart.Event

	// Seed provides the initial context when the target instance does not
	// exist yet and must be lazily created. Nil means an empty context.
	Seed func(src chart.Context) chart.Context
}

// Dispatcher is the slice of the orchestrator the coordinator dispatches
// through. Routing back through the façade keeps per-instance serialization
// intact for coordination events.
type Dispatcher interface {
	EnsureInstance(ctx context.Context, typ chart.EntityType, id string, seed chart.Context) error
	Dispatch(ctx context.Context, typ chart.EntityType, id string, ev chart.Event) (string, error)
}

type job struct {
	id   string
	rule Rule
	src  chart.Context
}

// Coordinator evaluates the rule table after each committed transition and
// runs the resulting dispatches on a small worker pool.
type Coordinator struct {
	rules    map[chart.EntityType]map[string][]Rule
	disp     Dispatcher
	log      zerolog.Logger
	jobs     chan job
	workers  int
	maxTries uint
	maxDelay time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the dispatch worker count (default 2).
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMaxTries bounds retry attempts per dispatch (default 5).
func WithMaxTries(n uint) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithMaxDelay caps the backoff interval between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// New creates a Coordinator over a static rule table.
func New(rules []Rule, disp Dispatcher, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		rules:    make(map[chart.EntityType]map[string][]Rule),
		disp:     disp,
		log:      log.With().Str("component", "coordinator").Logger(),
		jobs:     make(chan job, 256),
		workers:  2,
		maxTries: 5,
		maxDelay: 5 * time.Second,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, r := range rules {
		byState := c.rules[r.SourceType]
		if byState == nil {
			byState = make(map[string][]Rule)
			c.rules[r.SourceType] = byState
		}
		byState[r.SourceState] = append(byState[r.SourceState], r)
	}
	return c
}

// Start launches the worker pool. Safe to call once.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		for i := 0; i < c.workers; i++ {
			c.wg.Add(1)
			go c.worker()
		}
	})
}

// Stop drains in-flight jobs and stops the workers.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

// TransitionCommitted inspects the rule table for (typ, toState) and
// enqueues one dispatch per matching rule. eventType is the event that
// triggered the transition. The source context snapshot must not be mutated
// after the call.
func (c *Coordinator) TransitionCommitted(typ chart.EntityType, id, fromState, toState, eventType string, src chart.Context) {
	byState, ok := c.rules[typ]
	if !ok {
		return
	}
	for _, r := range byState[toState] {
		if r.SourceEvent != "" && r.SourceEvent != eventType {
			continue
		}
		j := job{id: uuid.NewString(), rule: r, src: src}
		select {
		case c.jobs <- j:
		case <-c.done:
			return
		default:
			c.log.Warn().
				Str("source_type", string(typ)).
				Str("source_id", id).
				Str("from_state", fromState).
				Str("to_state", toState).
				Msg("coordination queue full, dropping dispatch")
		}
	}
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		select {
		case j := <-c.jobs:
			c.run(j)
		case <-c.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case j := <-c.jobs:
					c.run(j)
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) run(j job) {
	targetID := j.rule.TargetID(j.src)
	if targetID == "" {
		c.log.Debug().
			Str("dispatch_id", j.id).
			Str("target_type", string(j.rule.TargetType)).
			Msg("rule resolved no target id, skipping")
		return
	}
	ev := j.rule.Build(j.src)

	op := func() (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		seed := chart.Context{}
		if j.rule.Seed != nil {
			seed = j.rule.Seed(j.src)
		}
		if err := c.disp.EnsureInstance(ctx, j.rule.TargetType, targetID, seed); err != nil {
			return "", err
		}
		state, err := c.disp.Dispatch(ctx, j.rule.TargetType, targetID, ev)
		if err != nil {
			// A dropped or guard-rejected event will not change on retry.
			var guardErr *engine.GuardError
			if errors.Is(err, engine.ErrNoMatch) || errors.As(err, &guardErr) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		return state, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = c.maxDelay
	state, err := backoff.Retry(context.Background(), op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("dispatch_id", j.id).
			Str("target_type", string(j.rule.TargetType)).
			Str("target_id", targetID).
			Str("event", ev.Type).
			Msg("coordination dispatch gave up")
		return
	}
	c.log.Debug().
		Str("dispatch_id", j.id).
		Str("target_type", string(j.rule.TargetType)).
		Str("target_id", targetID).
		Str("event", ev.Type).
		Str("state", state).
		Msg("coordination dispatch delivered")
}

// RuleCount returns the number of configured rules, used by health output.
func (c *Coordinator) RuleCount() int {
	n := 0
	for _, byState := range c.rules {
		for _, rs := range byState {
			n += len(rs)
		}
	}
	return n
}

// Validate checks the rule table against the registered charts: source and
// target types must have charts and the source state must exist.
func Validate(rules []Rule, charts map[chart.EntityType]*chart.Chart) error {
	for i, r := range rules {
		src, ok := charts[r.SourceType]
		if !ok {
			return fmt.Errorf("rule %d: no chart registered for source type %s", i, r.SourceType)
		}
		if !src.HasState(r.SourceState) {
			return fmt.Errorf("rule %d: source state %q not in %s chart", i, r.SourceState, r.SourceType)
		}
		if _, ok := charts[r.TargetType]; !ok {
			return fmt.Errorf("rule %d: no chart registered for target type %s", i, r.TargetType)
		}
		if r.TargetID == nil || r.Build == nil {
			return fmt.Errorf("rule %d: TargetID and Build are required", i)
		}
	}
	return nil
}
