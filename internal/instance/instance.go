// Package instance holds the live occurrences of charts: the Instance type
// with its audit history, and the Store that owns creation, lookup, and
// disposal keyed by (type, id).
//
// All mutation of an Instance passes through its per-instance lock. Two
// dispatches on the same instance are serialized; dispatches on different
// instances proceed fully concurrently. The cleanup sweep takes the same
// lock before removal, so an instance with a dispatch in flight is never
// removed mid-transition.
package instance

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/launchforge/statecore/internal/chart"
)

var (
	// ErrNotFound reports an unknown (type, id).
	ErrNotFound = errors.New("instance not found")
	// ErrAlreadyExists reports a duplicate create for a live (type, id).
	ErrAlreadyExists = errors.New("instance already exists")
)

// AuditEntry is the immutable record of one accepted state transition.
// Entries are appended exactly once per transition and never mutated.
type AuditEntry struct {
	ID    string         `json:"id" yaml:"id"`
	Time  time.Time      `json:"time" yaml:"time"`
	Event string         `json:"event" yaml:"event"`
	From  string         `json:"from" yaml:"from"`
	To    string         `json:"to" yaml:"to"`
	Meta  map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// NewAuditEntry builds an entry for one accepted transition.
func NewAuditEntry(eventType, from, to string, meta map[string]any) AuditEntry {
	return AuditEntry{
		ID:    uuid.NewString(),
		Time:  time.Now().UTC(),
		Event: eventType,
		From:  from,
		To:    to,
		Meta:  meta,
	}
}

// Instance is a live, running occurrence of a chart for one entity id.
// Fields are owned by the holder of Mu; readers outside a dispatch use View.
type Instance struct {
	Mu sync.Mutex

	Type           chart.EntityType
	ID             string
	State          string
	Context        chart.Context
	History        []AuditEntry
	CreatedAt      time.Time
	LastActivityAt time.Time
	Done           bool
}

// View is a read-only copy of an instance, safe to hand to callers.
type View struct {
	Type           chart.EntityType
	ID             string
	State          string
	Context        chart.Context
	History        []AuditEntry
	CreatedAt      time.Time
	LastActivityAt time.Time
	Done           bool
}

// View copies the instance under its lock.
func (i *Instance) View() View {
	i.Mu.Lock()
	defer i.Mu.Unlock()
	return i.viewLocked()
}

// ViewLocked copies the instance; the caller must hold Mu.
func (i *Instance) ViewLocked() View { return i.viewLocked() }

func (i *Instance) viewLocked() View {
	history := make([]AuditEntry, len(i.History))
	copy(history, i.History)
	return View{
		Type:           i.Type,
		ID:             i.ID,
		State:          i.State,
		Context:        i.Context.Clone(),
		History:        history,
		CreatedAt:      i.CreatedAt,
		LastActivityAt: i.LastActivityAt,
		Done:           i.Done,
	}
}

type key struct {
	typ chart.EntityType
	id  string
}

// Store is the concurrency-safe registry of live instances.
type Store struct {
	mu   sync.RWMutex
	live map[key]*Instance
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{live: make(map[key]*Instance)}
}

// Create registers a new live instance in the given initial state. It fails
// with ErrAlreadyExists when (typ, id) is already live.
func (s *Store) Create(typ chart.EntityType, id, initialState string, initialCtx chart.Context) (*Instance, error) {
	if id == "" {
		return nil, errors.New("instance id is required")
	}
	now := time.Now().UTC()
	inst := &Instance{
		Type:           typ,
		ID:             id,
		State:          initialState,
		Context:        initialCtx.Clone(),
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if inst.Context == nil {
		inst.Context = chart.Context{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{typ: typ, id: id}
	if _, exists := s.live[k]; exists {
		return nil, fmt.Errorf("%s/%s: %w", typ, id, ErrAlreadyExists)
	}
	s.live[k] = inst
	return inst, nil
}

// Get returns the live instance for (typ, id) or ErrNotFound.
func (s *Store) Get(typ chart.EntityType, id string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.live[key{typ: typ, id: id}]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", typ, id, ErrNotFound)
	}
	return inst, nil
}

// Remove unregisters (typ, id). Removing an unknown instance is a no-op.
// The caller is expected to hold the instance's lock when disposal must not
// race a dispatch; removal only detaches the instance from the registry.
func (s *Store) Remove(typ chart.EntityType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, key{typ: typ, id: id})
}

// ListByType returns the live instances of one type, ordered by id.
func (s *Store) ListByType(typ chart.EntityType) []*Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Instance
	for k, inst := range s.live {
		if k.typ == typ {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns every live instance, in no particular order.
func (s *Store) All() []*Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Instance, 0, len(s.live))
	for _, inst := range s.live {
		out = append(out, inst)
	}
	return out
}

// Len returns the number of live instances.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.live)
}
