// Package schedule implements delayed self-dispatch: timeout-style
// transitions (grace periods, trial expiry, review deadlines) are modeled
// as an event scheduled for the future rather than cancellable in-flight
// work.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/launchforge/statecore/internal/chart"
)

// DispatchFunc delivers a due event; the scheduler does not care how.
type DispatchFunc func(ctx context.Context, typ chart.EntityType, id string, ev chart.Event) (string, error)

type pending struct {
	timer *time.Timer
}

// Scheduler tracks timers keyed by (type, id, event). Scheduling the same
// key again resets the timer; a fired or cancelled timer is forgotten.
type Scheduler struct {
	mu       sync.Mutex
	dispatch DispatchFunc
	log      zerolog.Logger
	timers   map[string]pending
	stopped  bool
}

// New creates a Scheduler delivering due events through dispatch.
func New(dispatch DispatchFunc, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		dispatch: dispatch,
		log:      log.With().Str("component", "scheduler").Logger(),
		timers:   make(map[string]pending),
	}
}

func timerKey(typ chart.EntityType, id, eventType string) string {
	return string(typ) + "/" + id + "/" + eventType
}

// After schedules ev for (typ, id) once d elapses. A second call with the
// same (type, id, event type) before the timer fires resets the delay.
func (s *Scheduler) After(typ chart.EntityType, id string, ev chart.Event, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	k := timerKey(typ, id, ev.Type)
	if p, ok := s.timers[k]; ok {
		p.timer.Stop()
	}
	s.timers[k] = pending{timer: time.AfterFunc(d, func() {
		s.fire(k, typ, id, ev)
	})}
}

// Cancel drops a scheduled event if it has not fired yet.
func (s *Scheduler) Cancel(typ chart.EntityType, id, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := timerKey(typ, id, eventType)
	if p, ok := s.timers[k]; ok {
		p.timer.Stop()
		delete(s.timers, k)
	}
}

// CancelAll drops every scheduled event for (typ, id), used on disposal.
func (s *Scheduler) CancelAll(typ chart.EntityType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := string(typ) + "/" + id + "/"
	for k, p := range s.timers {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			p.timer.Stop()
			delete(s.timers, k)
		}
	}
}

// Stop cancels every timer. Events already firing may still be delivered.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for k, p := range s.timers {
		p.timer.Stop()
		delete(s.timers, k)
	}
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(k string, typ chart.EntityType, id string, ev chart.Event) {
	s.mu.Lock()
	delete(s.timers, k)
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.dispatch(ctx, typ, id, ev); err != nil {
		// A timeout event racing the instance's own progress is routine;
		// the chart decides whether a late event still matters.
		s.log.Info().
			Err(err).
			Str("type", string(typ)).
			Str("id", id).
			Str("event", ev.Type).
			Msg("scheduled dispatch not accepted")
	}
}
