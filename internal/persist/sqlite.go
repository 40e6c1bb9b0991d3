package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/instance"
)

// SQLite persists instance state and the audit log in a SQLite database.
type SQLite struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (or creates) the database at path and applies embedded
// migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SQLite) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLite) SaveState(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("entity id is required")
	}
	ctxJSON, err := json.Marshal(rec.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	done := 0
	if rec.Done {
		done = 1
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO machine_instances (
		   entity_type, entity_id, state, context, done, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id) DO UPDATE SET
		   state = excluded.state,
		   context = excluded.context,
		   done = excluded.done,
		   updated_at = excluded.updated_at`,
		string(rec.Type),
		rec.ID,
		rec.State,
		string(ctxJSON),
		done,
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("save instance state: %w", err)
	}
	return nil
}

func (s *SQLite) AppendAudit(ctx context.Context, typ chart.EntityType, id string, entry instance.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO audit_log (
		   id, entity_type, entity_id, event, from_state, to_state, metadata, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		string(typ),
		id,
		entry.Event,
		entry.From,
		entry.To,
		string(metaJSON),
		toMillis(entry.Time),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, typ chart.EntityType, id string) (Record, error) {
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT state, context, done, created_at, updated_at
		 FROM machine_instances WHERE entity_type = ? AND entity_id = ?`,
		string(typ), id,
	)
	var (
		state     string
		ctxJSON   string
		done      int
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&state, &ctxJSON, &done, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, fmt.Errorf("%s/%s: %w", typ, id, ErrNotFound)
		}
		return Record{}, fmt.Errorf("load instance: %w", err)
	}
	return buildRecord(typ, id, state, ctxJSON, done, createdAt, updatedAt)
}

func (s *SQLite) LoadAll(ctx context.Context) ([]Record, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT entity_type, entity_id, state, context, done, created_at, updated_at
		 FROM machine_instances WHERE done = 0
		 ORDER BY entity_type, entity_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("load instances: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			typ       string
			id        string
			state     string
			ctxJSON   string
			done      int
			createdAt int64
			updatedAt int64
		)
		if err := rows.Scan(&typ, &id, &state, &ctxJSON, &done, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		rec, err := buildRecord(chart.EntityType(typ), id, state, ctxJSON, done, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) AuditTrail(ctx context.Context, typ chart.EntityType, id string) ([]instance.AuditEntry, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, event, from_state, to_state, metadata, created_at
		 FROM audit_log WHERE entity_type = ? AND entity_id = ?
		 ORDER BY seq`,
		string(typ), id,
	)
	if err != nil {
		return nil, fmt.Errorf("load audit trail: %w", err)
	}
	defer rows.Close()

	var out []instance.AuditEntry
	for rows.Next() {
		var (
			entry     instance.AuditEntry
			metaJSON  string
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.Event, &entry.From, &entry.To, &metaJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if metaJSON != "" && metaJSON != "{}" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &entry.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		entry.Time = fromMillis(createdAt)
		out = append(out, entry)
	}
	return out, rows.Err()
}

func buildRecord(typ chart.EntityType, id, state, ctxJSON string, done int, createdAt, updatedAt int64) (Record, error) {
	rec := Record{
		Type:      typ,
		ID:        id,
		State:     state,
		Context:   chart.Context{},
		Done:      done != 0,
		CreatedAt: fromMillis(createdAt),
		UpdatedAt: fromMillis(updatedAt),
	}
	if ctxJSON != "" && ctxJSON != "null" {
		if err := json.Unmarshal([]byte(ctxJSON), &rec.Context); err != nil {
			return Record{}, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	return rec, nil
}
