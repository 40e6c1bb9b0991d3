package statecore

import (
	"fmt"

	"github.com/launchforge/statecore/internal/engine"
	"github.com/launchforge/statecore/internal/instance"
	"github.com/launchforge/statecore/internal/persist"
)

// The dispatch error taxonomy. NoMatchingTransition and guard rejections are
// non-fatal: the event is dropped and the instance is untouched. An action
// failure aborts the whole transition. A persistence error is surfaced even
// though the in-memory state has already advanced; restart rehydration
// reconciles from the last durable record.
var (
	// ErrNotFound reports an unknown (type, id) or an unregistered type.
	ErrNotFound = instance.ErrNotFound

	// ErrAlreadyExists reports a duplicate CreateInstance.
	ErrAlreadyExists = instance.ErrAlreadyExists

	// ErrNoMatchingTransition reports an event with no declared transition
	// from the instance's current state. The event is dropped and logged.
	ErrNoMatchingTransition = engine.ErrNoMatch
)

// GuardError reports that every candidate guard rejected the event.
type GuardError = engine.GuardError

// ActionError reports a failed action; the transition did not apply and the
// caller may retry the same event.
type ActionError = engine.ActionError

// PersistenceError reports a failed durable write. The in-memory transition
// has committed; the durable record lags until the next successful write or
// a restart replay.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrRecordNotFound is the persistence-level not-found, distinct from a
// missing live instance.
var ErrRecordNotFound = persist.ErrNotFound
