package chart

import (
	"strings"
	"testing"
)

func TestBuilderAssemblesChart(t *testing.T) {
	c, err := NewBuilder(Team).
		Initial("forming").
		Terminal("disbanded").
		Guard("ready", alwaysTrue).
		Action("noop", noop).
		On("forming", "ASSEMBLED").Guard("ready").Do("noop").Target("active").
		On("active", "DISBAND").Target("disbanded").
		Build()
	if err != nil {
		t.Fatal(err)
	}

	if c.Type != Team {
		t.Errorf("expected type %s, got %s", Team, c.Type)
	}
	if c.Initial() != "forming" {
		t.Errorf("expected initial forming, got %q", c.Initial())
	}
	if !c.IsFinal("disbanded") {
		t.Error("expected disbanded to be final")
	}
	// active was registered implicitly by Target.
	if !c.HasState("active") {
		t.Error("expected active to be auto-registered")
	}

	ts := c.From("forming", "ASSEMBLED")
	if len(ts) != 1 {
		t.Fatalf("expected one transition, got %d", len(ts))
	}
	if ts[0].Guard != "ready" || len(ts[0].Actions) != 1 || ts[0].Actions[0] != "noop" {
		t.Errorf("unexpected transition shape: %+v", ts[0])
	}
}

func TestBuilderStayIsInternal(t *testing.T) {
	c, err := NewBuilder(Team).
		Initial("active").
		Action("noop", noop).
		On("active", "TICK").Do("noop").Stay().
		Build()
	if err != nil {
		t.Fatal(err)
	}
	ts := c.From("active", "TICK")
	if len(ts) != 1 {
		t.Fatalf("expected one transition, got %d", len(ts))
	}
	if !ts[0].Internal {
		t.Error("expected Stay to mark the transition internal")
	}
	if ts[0].To != "active" {
		t.Errorf("expected internal transition to stay on active, got %q", ts[0].To)
	}
}

func TestBuilderRequiresInitial(t *testing.T) {
	_, err := NewBuilder(Team).
		On("a", "GO").Target("b").
		Build()
	if err == nil {
		t.Fatal("expected error for missing initial state")
	}
	if !strings.Contains(err.Error(), "no initial state") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestBuilderPropagatesValidation(t *testing.T) {
	_, err := NewBuilder(Team).
		Initial("a").
		On("a", "GO").Guard("ghost").Target("b").
		Build()
	if err == nil {
		t.Fatal("expected error for unregistered guard")
	}
	if !strings.Contains(err.Error(), "unregistered guard") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestMustBuildPanicsOnBrokenChart(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustBuild to panic")
		}
	}()
	NewBuilder(Team).MustBuild()
}

func TestBuilderPreservesDeclarationOrder(t *testing.T) {
	c, err := NewBuilder(Compliance).
		Initial("checking").
		Guard("pass", alwaysFalse).
		On("checking", "DONE").Guard("pass").Target("compliant").
		On("checking", "DONE").Target("non_compliant").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	ts := c.From("checking", "DONE")
	if len(ts) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(ts))
	}
	if ts[0].Guard != "pass" || ts[1].Guard != "" {
		t.Errorf("expected guarded edge first, unguarded fallback second: %+v", ts)
	}
}
