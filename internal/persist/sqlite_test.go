package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/launchforge/statecore/internal/chart"
	"github.com/launchforge/statecore/internal/instance"
)

func TestSQLiteRequiresPath(t *testing.T) {
	if _, err := OpenSQLite(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := OpenSQLite("   "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statecore.db")
	ctx := context.Background()

	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	rec := Record{
		Type:    chart.Subscription,
		ID:      "s1",
		State:   "active",
		Context: chart.Context{"plan": "pro"},
	}
	if err := db.SaveState(ctx, rec); err != nil {
		t.Fatal(err)
	}
	entry := instance.NewAuditEntry("PAYMENT_SUCCEEDED", "subscribing", "active", nil)
	if err := db.AppendAudit(ctx, chart.Subscription, "s1", entry); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening runs migrations again; they must be idempotent and the data
	// must still be there.
	db, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	got, err := db.Load(ctx, chart.Subscription, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if got.State != "active" || got.Context.String("plan") != "pro" {
		t.Errorf("unexpected record after reopen: %+v", got)
	}

	trail, err := db.AuditTrail(ctx, chart.Subscription, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 1 || trail[0].Event != "PAYMENT_SUCCEEDED" {
		t.Errorf("unexpected audit trail after reopen: %+v", trail)
	}
}

// Two transitions committed within the same millisecond must come back in
// append order, regardless of how their ids sort.
func TestSQLiteAuditTrailKeepsAppendOrder(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "statecore.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()

	stamp := time.Now().UTC().Truncate(time.Millisecond)
	first := instance.AuditEntry{
		ID:    "zzz-first",
		Time:  stamp,
		Event: "TEAM_MEMBER_ADDED",
		From:  "team_building",
		To:    "team_building",
	}
	second := instance.AuditEntry{
		ID:    "aaa-second",
		Time:  stamp,
		Event: "TEAM_COMPLETE",
		From:  "team_building",
		To:    "market_validation",
	}
	if err := db.AppendAudit(ctx, chart.Venture, "v1", first); err != nil {
		t.Fatal(err)
	}
	if err := db.AppendAudit(ctx, chart.Venture, "v1", second); err != nil {
		t.Fatal(err)
	}

	trail, err := db.AuditTrail(ctx, chart.Venture, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if len(trail) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(trail))
	}
	if trail[0].ID != "zzz-first" || trail[1].ID != "aaa-second" {
		t.Errorf("entries reordered: got %s then %s", trail[0].ID, trail[1].ID)
	}
	if trail[1].From != trail[0].To {
		t.Errorf("from %q does not chain from previous to %q", trail[1].From, trail[0].To)
	}
}

func TestSQLiteSaveRequiresID(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "statecore.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.SaveState(context.Background(), Record{Type: chart.Venture, State: "ideation"}); err == nil {
		t.Fatal("expected error for missing entity id")
	}
}
