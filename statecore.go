// Package statecore is a multi-entity state-machine orchestration runtime.
// It creates, advances, persists, and cross-coordinates chart instances for
// the six business entity types: user journeys, ventures, legal documents,
// compliance records, subscriptions, and teams.
//
// The Orchestrator is the only entry point external callers use. A dispatch
// locates the live instance, evaluates the event against the entity's chart,
// commits the transition atomically, durably records state and audit entry,
// and hands the committed transition to the coordinator, which may dispatch
// synthesized events onto other instances.
package statecore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/coordinate"
	"github.com/launchforge/statecore/internal/engine"
	"github.com/launchforge/statecore/internal/instance"
	"github.com/launchforge/statecore/internal/persist"
	"github.com/launchforge/statecore/internal/schedule"
)

// Re-exported model types so callers work with a single import.
type (
	EntityType = chart.EntityType
	Event      = chart.Event
	Context    = chart.Context
	Patch      = chart.Patch
	Chart      = chart.Chart
	AuditEntry = instance.AuditEntry
	Rule       = coordinate.Rule
)

const (
	UserJourney   = chart.UserJourney
	Venture       = chart.Venture
	LegalDocument = chart.LegalDocument
	Compliance    = chart.Compliance
	Subscription  = chart.Subscription
	Team          = chart.Team
)

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType string, meta map[string]any) Event {
	return chart.NewEvent(eventType, meta)
}

// ExportDOT renders a chart as Graphviz DOT source. When current names a
// state it is highlighted.
func ExportDOT(c *Chart, current string) string {
	return chart.ExportDOT(c, current)
}

// Instance is a read-only copy of a live instance.
type Instance = instance.View

// Health summarizes the live instance population.
type Health struct {
	ActiveCount int
	ByType      map[EntityType]int
	Oldest      time.Time // least recent activity among live instances
	Newest      time.Time // most recent activity among live instances
	Rules       int       // configured coordination rules
}

// Orchestrator wraps the instance store, transition engine, persistence
// adapter, coordinator, and scheduler behind one API.
type Orchestrator struct {
	charts  map[EntityType]*chart.Chart
	store   *instance.Store
	adapter persist.Adapter
	rules   []coordinate.Rule
	coord   *coordinate.Coordinator
	sched   *schedule.Scheduler
	log     zerolog.Logger

	cleanupInterval time.Duration
	inactivity      time.Duration
	coordOpts       []coordinate.Option

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New assembles an Orchestrator. Charts and the rule table are validated
// here; a broken table fails fast rather than at dispatch time.
func New(opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		charts:          make(map[EntityType]*chart.Chart),
		store:           instance.NewStore(),
		log:             zerolog.Nop(),
		cleanupInterval: 5 * time.Minute,
		inactivity:      30 * time.Minute,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.adapter == nil {
		o.adapter = persist.NewMemory()
	}
	if len(o.charts) == 0 {
		return nil, errors.New("no charts registered")
	}
	for typ, c := range o.charts {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("chart %s: %w", typ, err)
		}
	}
	if err := coordinate.Validate(o.rules, o.charts); err != nil {
		return nil, fmt.Errorf("coordination rules: %w", err)
	}
	o.coord = coordinate.New(o.rules, o, o.log, o.coordOpts...)
	o.sched = schedule.New(o.Dispatch, o.log)
	return o, nil
}

// Start launches the coordinator workers and the cleanup sweep.
func (o *Orchestrator) Start() {
	o.startOnce.Do(func() {
		o.coord.Start()
		o.wg.Add(1)
		go o.cleanupLoop()
		o.log.Info().
			Int("charts", len(o.charts)).
			Int("rules", o.coord.RuleCount()).
			Dur("cleanup_interval", o.cleanupInterval).
			Msg("orchestrator started")
	})
}

// Stop shuts the sweep and coordinator down, cancelling scheduled events.
// In-flight coordination dispatches are drained first.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.done)
		o.sched.Stop()
		o.coord.Stop()
		o.wg.Wait()
		o.log.Info().Msg("orchestrator stopped")
	})
}

// CreateInstance creates a live instance of typ in the chart's initial
// state with an empty history. It fails with ErrAlreadyExists when
// (typ, id) is already live, and rolls the creation back when the initial
// durable write fails.
func (o *Orchestrator) CreateInstance(ctx context.Context, typ EntityType, id string, initial Context) (Instance, error) {
	c, ok := o.charts[typ]
	if !ok {
		return Instance{}, fmt.Errorf("no chart for type %s: %w", typ, ErrNotFound)
	}
	inst, err := o.store.Create(typ, id, c.Initial(), initial)
	if err != nil {
		return Instance{}, err
	}

	view := inst.View()
	rec := persist.Record{
		Type:      typ,
		ID:        id,
		State:     view.State,
		Context:   view.Context,
		CreatedAt: view.CreatedAt,
		UpdatedAt: view.LastActivityAt,
	}
	if err := o.adapter.SaveState(ctx, rec); err != nil {
		o.store.Remove(typ, id)
		return Instance{}, &PersistenceError{Op: "create", Err: err}
	}

	o.log.Debug().
		Str("type", string(typ)).
		Str("id", id).
		Str("state", view.State).
		Msg("instance created")
	return view, nil
}

// EnsureInstance creates (typ, id) with the seed context when it is not
// live, loading the durable record first so a swept-but-persisted instance
// resumes rather than restarts.
func (o *Orchestrator) EnsureInstance(ctx context.Context, typ EntityType, id string, seed Context) error {
	if _, err := o.store.Get(typ, id); err == nil {
		return nil
	}
	rec, err := o.adapter.Load(ctx, typ, id)
	if err == nil {
		return o.revive(ctx, rec)
	}
	if !errors.Is(err, persist.ErrNotFound) {
		return &PersistenceError{Op: "load", Err: err}
	}
	if _, err := o.CreateInstance(ctx, typ, id, seed); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return nil
}

// Dispatch delivers ev to the live instance (typ, id) and returns the state
// after processing. Dispatches on the same instance are serialized in call
// order; dispatches on different instances run concurrently.
func (o *Orchestrator) Dispatch(ctx context.Context, typ EntityType, id string, ev Event) (string, error) {
	c, ok := o.charts[typ]
	if !ok {
		return "", fmt.Errorf("no chart for type %s: %w", typ, ErrNotFound)
	}
	inst, err := o.store.Get(typ, id)
	if err != nil {
		return "", err
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	return o.dispatchInstance(ctx, c, inst, ev)
}

func (o *Orchestrator) dispatchInstance(ctx context.Context, c *chart.Chart, inst *instance.Instance, ev Event) (string, error) {
	inst.Mu.Lock()
	// The sweep may have disposed of the instance between lookup and lock;
	// a dispatch must never commit against a detached instance.
	if cur, err := o.store.Get(inst.Type, inst.ID); err != nil || cur != inst {
		inst.Mu.Unlock()
		return "", fmt.Errorf("%s/%s: %w", inst.Type, inst.ID, ErrNotFound)
	}
	state, emitted, err := o.processLocked(ctx, c, inst, ev)
	inst.Mu.Unlock()

	// Events emitted by actions are appended after the triggering event
	// finishes, preserving effect-after-cause on the same instance.
	for _, next := range emitted {
		if _, derr := o.Dispatch(ctx, inst.Type, inst.ID, next); derr != nil {
			o.log.Error().
				Err(derr).
				Str("type", string(inst.Type)).
				Str("id", inst.ID).
				Str("event", next.Type).
				Msg("emitted event failed")
		}
	}

	// Follow-up events may have advanced the instance past the triggering
	// transition's target; report where it actually landed.
	if err == nil && len(emitted) > 0 {
		inst.Mu.Lock()
		state = inst.State
		inst.Mu.Unlock()
	}

	return state, err
}

// processLocked runs one event against one instance. Caller holds inst.Mu.
func (o *Orchestrator) processLocked(ctx context.Context, c *chart.Chart, inst *instance.Instance, ev Event) (string, []Event, error) {
	out, err := engine.Evaluate(c, inst.State, inst.Context, ev)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrNoMatch):
			o.log.Info().
				Str("type", string(inst.Type)).
				Str("id", inst.ID).
				Str("state", inst.State).
				Str("event", ev.Type).
				Msg("event ignored, no matching transition")
		default:
			var guardErr *engine.GuardError
			if errors.As(err, &guardErr) {
				o.log.Info().
					Str("type", string(inst.Type)).
					Str("id", inst.ID).
					Str("state", inst.State).
					Str("event", ev.Type).
					Strs("guards", guardErr.Guards).
					Msg("event rejected by guards")
			} else {
				o.log.Error().
					Err(err).
					Str("type", string(inst.Type)).
					Str("id", inst.ID).
					Str("state", inst.State).
					Str("event", ev.Type).
					Msg("transition aborted")
			}
		}
		return inst.State, nil, err
	}

	now := time.Now().UTC()
	out.Patch.Apply(inst.Context)
	inst.LastActivityAt = now

	if out.Internal {
		// Context-only update: no state change, no audit entry, no
		// coordination. Persist the new context.
		if perr := o.saveLocked(ctx, inst); perr != nil {
			return inst.State, out.Emitted, perr
		}
		return inst.State, out.Emitted, nil
	}

	inst.State = out.To
	inst.Done = c.IsFinal(out.To)
	entry := instance.NewAuditEntry(ev.Type, out.From, out.To, ev.Meta)
	inst.History = append(inst.History, entry)

	o.log.Debug().
		Str("type", string(inst.Type)).
		Str("id", inst.ID).
		Str("event", ev.Type).
		Str("from", out.From).
		Str("to", out.To).
		Strs("actions", out.Actions).
		Msg("transition committed")

	var perr error
	if err := o.saveLocked(ctx, inst); err != nil {
		perr = err
	} else if err := o.adapter.AppendAudit(ctx, inst.Type, inst.ID, entry); err != nil {
		perr = &PersistenceError{Op: "audit", Err: err}
	}

	// The transition has committed in memory; coordination proceeds even
	// when the durable write lagged.
	o.coord.TransitionCommitted(inst.Type, inst.ID, out.From, out.To, ev.Type, inst.Context.Clone())

	return inst.State, out.Emitted, perr
}

func (o *Orchestrator) saveLocked(ctx context.Context, inst *instance.Instance) error {
	rec := persist.Record{
		Type:      inst.Type,
		ID:        inst.ID,
		State:     inst.State,
		Context:   inst.Context.Clone(),
		Done:      inst.Done,
		CreatedAt: inst.CreatedAt,
		UpdatedAt: inst.LastActivityAt,
	}
	if err := o.adapter.SaveState(ctx, rec); err != nil {
		o.log.Error().
			Err(err).
			Str("type", string(inst.Type)).
			Str("id", inst.ID).
			Msg("durable write failed, in-memory state is ahead")
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// DispatchAfter schedules ev for (typ, id) once d elapses, implementing
// timeout transitions as delayed self-dispatch.
func (o *Orchestrator) DispatchAfter(typ EntityType, id string, ev Event, d time.Duration) {
	o.sched.After(typ, id, ev, d)
}

// CancelScheduled drops a pending delayed dispatch.
func (o *Orchestrator) CancelScheduled(typ EntityType, id, eventType string) {
	o.sched.Cancel(typ, id, eventType)
}

// GetState returns a copy of the live instance (typ, id).
func (o *Orchestrator) GetState(typ EntityType, id string) (Instance, error) {
	inst, err := o.store.Get(typ, id)
	if err != nil {
		return Instance{}, err
	}
	return inst.View(), nil
}

// ListByType returns copies of the live instances of one type, ordered by id.
func (o *Orchestrator) ListByType(typ EntityType) []Instance {
	insts := o.store.ListByType(typ)
	out := make([]Instance, 0, len(insts))
	for _, inst := range insts {
		out = append(out, inst.View())
	}
	return out
}

// AuditTrail returns the durable audit log for (typ, id), oldest first. It
// covers disposed instances as well as live ones.
func (o *Orchestrator) AuditTrail(ctx context.Context, typ EntityType, id string) ([]AuditEntry, error) {
	entries, err := o.adapter.AuditTrail(ctx, typ, id)
	if err != nil {
		return nil, &PersistenceError{Op: "audit trail", Err: err}
	}
	return entries, nil
}

// SystemHealth summarizes the live population.
func (o *Orchestrator) SystemHealth() Health {
	h := Health{
		ByType: make(map[EntityType]int),
		Rules:  o.coord.RuleCount(),
	}
	for _, inst := range o.store.All() {
		v := inst.View()
		h.ActiveCount++
		h.ByType[v.Type]++
		if h.Oldest.IsZero() || v.LastActivityAt.Before(h.Oldest) {
			h.Oldest = v.LastActivityAt
		}
		if v.LastActivityAt.After(h.Newest) {
			h.Newest = v.LastActivityAt
		}
	}
	return h
}

// Rehydrate reloads non-final instances from the persistence adapter into
// the live store, including their audit histories. Call once at startup,
// before Start.
func (o *Orchestrator) Rehydrate(ctx context.Context) error {
	recs, err := o.adapter.LoadAll(ctx)
	if err != nil {
		return &PersistenceError{Op: "load all", Err: err}
	}
	restored := 0
	for _, rec := range recs {
		if _, ok := o.charts[rec.Type]; !ok {
			o.log.Warn().
				Str("type", string(rec.Type)).
				Str("id", rec.ID).
				Msg("skipping record with no registered chart")
			continue
		}
		if err := o.revive(ctx, rec); err != nil {
			if errors.Is(err, ErrAlreadyExists) {
				continue
			}
			return err
		}
		restored++
	}
	o.log.Info().Int("instances", restored).Msg("rehydrated from persistence")
	return nil
}

// revive turns one durable record back into a live instance.
func (o *Orchestrator) revive(ctx context.Context, rec persist.Record) error {
	inst, err := o.store.Create(rec.Type, rec.ID, rec.State, rec.Context)
	if err != nil {
		return err
	}
	history, err := o.adapter.AuditTrail(ctx, rec.Type, rec.ID)
	if err != nil {
		return &PersistenceError{Op: "audit trail", Err: err}
	}
	inst.Mu.Lock()
	inst.History = history
	inst.CreatedAt = rec.CreatedAt
	inst.LastActivityAt = rec.UpdatedAt
	inst.Done = rec.Done
	inst.Mu.Unlock()
	return nil
}

// cleanupLoop periodically disposes of instances that are done or idle past
// the inactivity threshold. Disposal takes the per-instance lock, so an
// instance with a dispatch in flight is never removed mid-transition.
func (o *Orchestrator) cleanupLoop() {
	defer o.wg.Done()
	t := time.NewTicker(o.cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-o.done:
			return
		case <-t.C:
			o.sweep()
		}
	}
}

func (o *Orchestrator) sweep() {
	cutoff := time.Now().UTC().Add(-o.inactivity)
	removed := 0
	for _, inst := range o.store.All() {
		inst.Mu.Lock()
		dispose := inst.Done || inst.LastActivityAt.Before(cutoff)
		if dispose {
			o.store.Remove(inst.Type, inst.ID)
			o.sched.CancelAll(inst.Type, inst.ID)
			removed++
			o.log.Debug().
				Str("type", string(inst.Type)).
				Str("id", inst.ID).
				Bool("done", inst.Done).
				Msg("instance disposed")
		}
		inst.Mu.Unlock()
	}
	if removed > 0 {
		o.log.Info().Int("removed", removed).Msg("cleanup sweep finished")
	}
}
