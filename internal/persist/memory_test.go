package persist

import (
	"context"
	"testing"

	"github.com/launchforge/statecore/internal/chart"
)

func TestMemoryFailSaves(t *testing.T) {
	m := NewMemory()
	m.FailSaves = true
	err := m.SaveState(context.Background(), Record{Type: chart.Venture, ID: "v1", State: "ideation"})
	if err == nil {
		t.Fatal("expected save to fail")
	}

	m.FailSaves = false
	if err := m.SaveState(context.Background(), Record{Type: chart.Venture, ID: "v1", State: "ideation"}); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryIsolatesStoredContext(t *testing.T) {
	m := NewMemory()
	ctx := chart.Context{"k": "v"}
	if err := m.SaveState(context.Background(), Record{Type: chart.Venture, ID: "v1", State: "ideation", Context: ctx}); err != nil {
		t.Fatal(err)
	}
	ctx["k"] = "mutated"

	got, err := m.Load(context.Background(), chart.Venture, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Context["k"] != "v" {
		t.Error("expected stored context isolated from caller's map")
	}
}
