package persist

import (
	"context"
	"fmt"
	"sync"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/instance"
)

type memKey struct {
	typ chart.EntityType
	id  string
}

// Memory is a map-backed adapter for tests and ephemeral runs.
type Memory struct {
	mu      sync.RWMutex
	records map[memKey]Record
	audit   map[memKey][]instance.AuditEntry

	// FailSaves makes SaveState return an error, for exercising the
	// persistence-error path in tests.
	FailSaves bool
}

// NewMemory creates an empty in-memory adapter.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[memKey]Record),
		audit:   make(map[memKey][]instance.AuditEntry),
	}
}

func (m *Memory) SaveState(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return fmt.Errorf("memory adapter: saves disabled")
	}
	rec.Context = rec.Context.Clone()
	m.records[memKey{typ: rec.Type, id: rec.ID}] = rec
	return nil
}

func (m *Memory) AppendAudit(_ context.Context, typ chart.EntityType, id string, entry instance.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{typ: typ, id: id}
	m.audit[k] = append(m.audit[k], entry)
	return nil
}

func (m *Memory) Load(_ context.Context, typ chart.EntityType, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[memKey{typ: typ, id: id}]
	if !ok {
		return Record{}, fmt.Errorf("%s/%s: %w", typ, id, ErrNotFound)
	}
	return rec, nil
}

func (m *Memory) LoadAll(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.records {
		if !rec.Done {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *Memory) AuditTrail(_ context.Context, typ chart.EntityType, id string) ([]instance.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.audit[memKey{typ: typ, id: id}]
	out := make([]instance.AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}

func (m *Memory) Close() error { return nil }
