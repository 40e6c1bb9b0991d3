package persist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/instance"
)

// File is a directory-backed adapter storing one YAML snapshot per instance
// and an append-only YAML stream of audit entries next to it. Intended for
// development and small deployments; SQLite is the production adapter.
type File struct {
	dir string
}

// NewFile creates a File adapter, ensuring the directory exists.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

func (f *File) statePath(typ chart.EntityType, id string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s__%s.yaml", typ, id))
}

func (f *File) auditPath(typ chart.EntityType, id string) string {
	return filepath.Join(f.dir, fmt.Sprintf("%s__%s.audit.yaml", typ, id))
}

func (f *File) SaveState(_ context.Context, rec Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	fn := f.statePath(rec.Type, rec.ID)
	if err := os.WriteFile(fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (f *File) AppendAudit(_ context.Context, typ chart.EntityType, id string, entry instance.AuditEntry) error {
	data, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	fn := f.auditPath(typ, id)
	fh, err := os.OpenFile(fn, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", fn, err)
	}
	defer fh.Close()
	if _, err := fh.WriteString("---\n"); err != nil {
		return fmt.Errorf("append %s: %w", fn, err)
	}
	if _, err := fh.Write(data); err != nil {
		return fmt.Errorf("append %s: %w", fn, err)
	}
	return nil
}

func (f *File) Load(_ context.Context, typ chart.EntityType, id string) (Record, error) {
	fn := f.statePath(typ, id)
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, fmt.Errorf("%s/%s: %w", typ, id, ErrNotFound)
		}
		return Record{}, fmt.Errorf("read %s: %w", fn, err)
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("yaml unmarshal %s: %w", fn, err)
	}
	return rec, nil
}

func (f *File) LoadAll(ctx context.Context) ([]Record, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", f.dir, err)
	}
	var out []Record
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".audit.yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var rec Record
		if err := yaml.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("yaml unmarshal %s: %w", name, err)
		}
		if !rec.Done {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *File) AuditTrail(_ context.Context, typ chart.EntityType, id string) ([]instance.AuditEntry, error) {
	fn := f.auditPath(typ, id)
	fh, err := os.Open(fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", fn, err)
	}
	defer fh.Close()

	dec := yaml.NewDecoder(fh)
	var out []instance.AuditEntry
	for {
		var entry instance.AuditEntry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode %s: %w", fn, err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (f *File) Close() error { return nil }
