package engine

import (
	"errors"
	"testing"

	"github.com/launchforge/statecore/internal/chart"
)

func buildChart(t *testing.T, configure func(*chart.Builder)) *chart.Chart {
	t.Helper()
	b := chart.NewBuilder(chart.Venture)
	configure(b)
	c, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestEvaluateNoMatch(t *testing.T) {
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.On("a", "GO").Target("b")
	})

	_, err := Evaluate(c, "a", chart.Context{}, chart.NewEvent("UNKNOWN", nil))
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("expected ErrNoMatch, got %v", err)
	}
}

func TestEvaluateUnguardedTransition(t *testing.T) {
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.On("a", "GO").Target("b")
	})

	out, err := Evaluate(c, "a", chart.Context{}, chart.NewEvent("GO", nil))
	if err != nil {
		t.Fatal(err)
	}
	if out.From != "a" || out.To != "b" {
		t.Errorf("expected a->b, got %s->%s", out.From, out.To)
	}
	if out.Internal {
		t.Error("expected external transition")
	}
	if out.Guard != "" {
		t.Errorf("expected no guard, got %q", out.Guard)
	}
}

func TestEvaluateFirstMatchingGuardWins(t *testing.T) {
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.Guard("low", func(ctx chart.Context, _ chart.Event) bool { return ctx.Int("n") < 5 })
		b.Guard("high", func(ctx chart.Context, _ chart.Event) bool { return ctx.Int("n") >= 5 })
		b.On("a", "GO").Guard("low").Target("small")
		b.On("a", "GO").Guard("high").Target("big")
	})

	tests := []struct {
		n         int
		wantTo    string
		wantGuard string
	}{
		{n: 1, wantTo: "small", wantGuard: "low"},
		{n: 9, wantTo: "big", wantGuard: "high"},
		// Boundary belongs to the first guard that admits it.
		{n: 4, wantTo: "small", wantGuard: "low"},
		{n: 5, wantTo: "big", wantGuard: "high"},
	}
	for _, tt := range tests {
		out, err := Evaluate(c, "a", chart.Context{"n": tt.n}, chart.NewEvent("GO", nil))
		if err != nil {
			t.Fatalf("n=%d: %v", tt.n, err)
		}
		if out.To != tt.wantTo {
			t.Errorf("n=%d: expected target %s, got %s", tt.n, tt.wantTo, out.To)
		}
		if out.Guard != tt.wantGuard {
			t.Errorf("n=%d: expected guard %s, got %s", tt.n, tt.wantGuard, out.Guard)
		}
	}
}

func TestEvaluateAllGuardsReject(t *testing.T) {
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.Guard("never1", func(chart.Context, chart.Event) bool { return false })
		b.Guard("never2", func(chart.Context, chart.Event) bool { return false })
		b.On("a", "GO").Guard("never1").Target("b")
		b.On("a", "GO").Guard("never2").Target("c")
	})

	_, err := Evaluate(c, "a", chart.Context{}, chart.NewEvent("GO", nil))
	var guardErr *GuardError
	if !errors.As(err, &guardErr) {
		t.Fatalf("expected GuardError, got %v", err)
	}
	if guardErr.State != "a" || guardErr.Event != "GO" {
		t.Errorf("unexpected error fields: %+v", guardErr)
	}
	if len(guardErr.Guards) != 2 || guardErr.Guards[0] != "never1" || guardErr.Guards[1] != "never2" {
		t.Errorf("expected guards tried in declaration order, got %v", guardErr.Guards)
	}
}

func TestEvaluateActionsRunInOrderAndChainPatches(t *testing.T) {
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.Action("first", func(_ chart.Context, _ chart.Event) (chart.Result, error) {
			return chart.Result{Patch: chart.Patch{"n": 1}}, nil
		})
		// The second action must see the first action's patch.
		b.Action("second", func(ctx chart.Context, _ chart.Event) (chart.Result, error) {
			return chart.Result{Patch: chart.Patch{"n": ctx.Int("n") + 10}}, nil
		})
		b.On("a", "GO").Do("first", "second").Target("b")
	})

	out, err := Evaluate(c, "a", chart.Context{}, chart.NewEvent("GO", nil))
	if err != nil {
		t.Fatal(err)
	}
	if got := len(out.Actions); got != 2 {
		t.Fatalf("expected 2 actions run, got %d", got)
	}
	if out.Patch["n"] != 11 {
		t.Errorf("expected merged patch n=11, got %v", out.Patch["n"])
	}
}

func TestEvaluateActionFailureLeavesContextUntouched(t *testing.T) {
	boom := errors.New("boom")
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.Action("patch", func(_ chart.Context, _ chart.Event) (chart.Result, error) {
			return chart.Result{Patch: chart.Patch{"written": true}}, nil
		})
		b.Action("fail", func(chart.Context, chart.Event) (chart.Result, error) {
			return chart.Result{}, boom
		})
		b.On("a", "GO").Do("patch", "fail").Target("b")
	})

	ctx := chart.Context{"existing": "value"}
	_, err := Evaluate(c, "a", ctx, chart.NewEvent("GO", nil))

	var actionErr *ActionError
	if !errors.As(err, &actionErr) {
		t.Fatalf("expected ActionError, got %v", err)
	}
	if actionErr.Action != "fail" {
		t.Errorf("expected failing action name fail, got %q", actionErr.Action)
	}
	if !errors.Is(err, boom) {
		t.Error("expected ActionError to unwrap to the cause")
	}
	// The earlier action's patch must not leak into the caller's context.
	if _, ok := ctx["written"]; ok {
		t.Error("expected caller context untouched after aborted transition")
	}
	if ctx["existing"] != "value" {
		t.Error("expected existing context preserved")
	}
}

func TestEvaluateInternalTransition(t *testing.T) {
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.Action("bump", func(ctx chart.Context, _ chart.Event) (chart.Result, error) {
			return chart.Result{Patch: chart.Patch{"n": ctx.Int("n") + 1}}, nil
		})
		b.On("a", "TICK").Do("bump").Stay()
	})

	out, err := Evaluate(c, "a", chart.Context{"n": 2}, chart.NewEvent("TICK", nil))
	if err != nil {
		t.Fatal(err)
	}
	if !out.Internal {
		t.Error("expected internal outcome")
	}
	if out.Patch["n"] != 3 {
		t.Errorf("expected patch n=3, got %v", out.Patch["n"])
	}
}

func TestEvaluateCollectsEmittedEvents(t *testing.T) {
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.Action("announce", func(chart.Context, chart.Event) (chart.Result, error) {
			return chart.Result{Emit: []chart.Event{chart.NewEvent("FOLLOW_UP", nil)}}, nil
		})
		b.On("a", "GO").Do("announce").Target("b")
	})

	out, err := Evaluate(c, "a", chart.Context{}, chart.NewEvent("GO", nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Emitted) != 1 || out.Emitted[0].Type != "FOLLOW_UP" {
		t.Errorf("expected one emitted FOLLOW_UP event, got %v", out.Emitted)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	c := buildChart(t, func(b *chart.Builder) {
		b.Initial("a")
		b.Guard("yes", func(chart.Context, chart.Event) bool { return true })
		b.On("a", "GO").Guard("yes").Target("b")
		b.On("a", "GO").Target("c")
	})

	for i := 0; i < 50; i++ {
		out, err := Evaluate(c, "a", chart.Context{}, chart.NewEvent("GO", nil))
		if err != nil {
			t.Fatal(err)
		}
		if out.To != "b" {
			t.Fatalf("iteration %d: expected b, got %s", i, out.To)
		}
	}
}
