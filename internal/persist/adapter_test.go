package persist

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/instance"
)

// adapterConformance exercises the Adapter contract shared by every
// implementation.
func adapterConformance(t *testing.T, open func(t *testing.T) Adapter) {
	t.Run("load unknown", func(t *testing.T) {
		a := open(t)
		defer a.Close()
		_, err := a.Load(context.Background(), chart.Venture, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save and load round trip", func(t *testing.T) {
		a := open(t)
		defer a.Close()
		ctx := context.Background()

		now := time.Now().UTC().Truncate(time.Millisecond)
		rec := Record{
			Type:      chart.Venture,
			ID:        "v1",
			State:     "team_building",
			Context:   chart.Context{"userId": "u1", "memberCount": 2},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := a.SaveState(ctx, rec); err != nil {
			t.Fatal(err)
		}

		got, err := a.Load(ctx, chart.Venture, "v1")
		if err != nil {
			t.Fatal(err)
		}
		if got.State != "team_building" {
			t.Errorf("expected state team_building, got %q", got.State)
		}
		if got.Context.String("userId") != "u1" {
			t.Errorf("expected userId u1, got %q", got.Context.String("userId"))
		}
		if got.Context.Int("memberCount") != 2 {
			t.Errorf("expected memberCount 2, got %d", got.Context.Int("memberCount"))
		}
		if got.Done {
			t.Error("expected done=false")
		}
	})

	t.Run("save upserts", func(t *testing.T) {
		a := open(t)
		defer a.Close()
		ctx := context.Background()

		rec := Record{Type: chart.Venture, ID: "v1", State: "ideation", Context: chart.Context{}}
		if err := a.SaveState(ctx, rec); err != nil {
			t.Fatal(err)
		}
		rec.State = "idea_review"
		rec.Context = chart.Context{"ideaTitle": "solar"}
		if err := a.SaveState(ctx, rec); err != nil {
			t.Fatal(err)
		}

		got, err := a.Load(ctx, chart.Venture, "v1")
		if err != nil {
			t.Fatal(err)
		}
		if got.State != "idea_review" {
			t.Errorf("expected latest state, got %q", got.State)
		}
		if got.Context.String("ideaTitle") != "solar" {
			t.Errorf("expected latest context, got %v", got.Context)
		}
	})

	t.Run("load all skips done records", func(t *testing.T) {
		a := open(t)
		defer a.Close()
		ctx := context.Background()

		if err := a.SaveState(ctx, Record{Type: chart.Venture, ID: "live", State: "growth", Context: chart.Context{}}); err != nil {
			t.Fatal(err)
		}
		if err := a.SaveState(ctx, Record{Type: chart.Venture, ID: "finished", State: "exit", Done: true, Context: chart.Context{}}); err != nil {
			t.Fatal(err)
		}

		recs, err := a.LoadAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Fatalf("expected 1 record, got %d", len(recs))
		}
		if recs[0].ID != "live" {
			t.Errorf("expected live record, got %s", recs[0].ID)
		}
	})

	t.Run("audit trail ordered oldest first", func(t *testing.T) {
		a := open(t)
		defer a.Close()
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Millisecond)
		entries := []instance.AuditEntry{
			{ID: "e1", Time: base, Event: "IDEA_SUBMITTED", From: "ideation", To: "idea_review"},
			{ID: "e2", Time: base.Add(time.Second), Event: "IDEA_APPROVED", From: "idea_review", To: "team_building", Meta: map[string]any{"by": "board"}},
		}
		for _, e := range entries {
			if err := a.AppendAudit(ctx, chart.Venture, "v1", e); err != nil {
				t.Fatal(err)
			}
		}

		got, err := a.AuditTrail(ctx, chart.Venture, "v1")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(got))
		}
		if got[0].Event != "IDEA_SUBMITTED" || got[1].Event != "IDEA_APPROVED" {
			t.Errorf("expected chronological order, got %v then %v", got[0].Event, got[1].Event)
		}
		if got[1].From != "idea_review" || got[1].To != "team_building" {
			t.Errorf("unexpected entry fields: %+v", got[1])
		}
		if by, _ := got[1].Meta["by"].(string); by != "board" {
			t.Errorf("expected metadata preserved, got %v", got[1].Meta)
		}
	})

	t.Run("audit trail empty for unknown instance", func(t *testing.T) {
		a := open(t)
		defer a.Close()
		got, err := a.AuditTrail(context.Background(), chart.Venture, "missing")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("expected no entries, got %d", len(got))
		}
	})
}

func TestMemoryAdapter(t *testing.T) {
	adapterConformance(t, func(t *testing.T) Adapter {
		return NewMemory()
	})
}

func TestFileAdapter(t *testing.T) {
	adapterConformance(t, func(t *testing.T) Adapter {
		f, err := NewFile(t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		return f
	})
}

func TestSQLiteAdapter(t *testing.T) {
	adapterConformance(t, func(t *testing.T) Adapter {
		db, err := OpenSQLite(filepath.Join(t.TempDir(), "statecore.db"))
		if err != nil {
			t.Fatal(err)
		}
		return db
	})
}
