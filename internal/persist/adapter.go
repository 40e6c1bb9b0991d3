// Package persist defines the narrow durable-storage interface the
// orchestration core depends on, plus the bundled implementations: an
// in-memory adapter for tests, a YAML file adapter for development, and a
// SQLite adapter for production use.
//
// The adapter records instance state and the append-only audit log. Writes
// are at-least-once durable; no transaction spans multiple instances. A
// crash between an in-memory transition and its durable write is reconciled
// on restart by rehydrating from the last saved record.
package persist

import (
	"context"
	"errors"
	"time"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/instance"
)

// ErrNotFound reports that no record exists for a (type, id).
var ErrNotFound = errors.New("record not found")

// Record is the durable shape of one instance.
type Record struct {
	Type      chart.EntityType `json:"type" yaml:"type"`
	ID        string           `json:"id" yaml:"id"`
	State     string           `json:"state" yaml:"state"`
	Context   chart.Context    `json:"context" yaml:"context"`
	Done      bool             `json:"done" yaml:"done"`
	CreatedAt time.Time        `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt" yaml:"updatedAt"`
}

// Adapter durably records instance state and audit entries.
type Adapter interface {
	// SaveState upserts the current state and context for (typ, id).
	SaveState(ctx context.Context, rec Record) error

	// AppendAudit appends one audit entry for (typ, id). Entries are never
	// updated or deleted.
	AppendAudit(ctx context.Context, typ chart.EntityType, id string, entry instance.AuditEntry) error

	// Load returns the last saved record for (typ, id) or ErrNotFound.
	Load(ctx context.Context, typ chart.EntityType, id string) (Record, error)

	// LoadAll returns every record that has not reached a final state, used
	// to rehydrate the live store on process restart.
	LoadAll(ctx context.Context) ([]Record, error)

	// AuditTrail returns the audit entries for (typ, id), oldest first.
	AuditTrail(ctx context.Context, typ chart.EntityType, id string) ([]instance.AuditEntry, error)

	Close() error
}
