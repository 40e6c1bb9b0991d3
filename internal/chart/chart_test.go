package chart

import (
	"strings"
	"testing"
)

func alwaysTrue(_ Context, _ Event) bool  { return true }
func alwaysFalse(_ Context, _ Event) bool { return false }

func noop(_ Context, _ Event) (Result, error) { return Result{}, nil }

func validChart() *Chart {
	return &Chart{
		Type: Venture,
		States: []State{
			{Name: "a", Initial: true},
			{Name: "b"},
			{Name: "c", Final: true},
		},
		Transitions: []Transition{
			{From: "a", Event: "GO", To: "b"},
			{From: "b", Event: "FINISH", To: "c"},
		},
		Guards:  map[string]Guard{},
		Actions: map[string]Action{},
	}
}

func TestValidateBuildsLookups(t *testing.T) {
	c := validChart()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if c.Initial() != "a" {
		t.Errorf("expected initial state a, got %q", c.Initial())
	}
	if !c.HasState("b") {
		t.Error("expected b to be a known state")
	}
	if c.HasState("z") {
		t.Error("expected z to be unknown")
	}
	if !c.IsFinal("c") {
		t.Error("expected c to be final")
	}
	if c.IsFinal("a") {
		t.Error("expected a to be non-final")
	}
	if got := c.From("a", "GO"); len(got) != 1 || got[0].To != "b" {
		t.Errorf("expected one a->b transition for GO, got %v", got)
	}
	if got := c.From("a", "NOPE"); got != nil {
		t.Errorf("expected no transitions for NOPE, got %v", got)
	}
}

func TestValidateRejectsBrokenCharts(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Chart)
		wantErr string
	}{
		{
			name:    "unknown entity type",
			mutate:  func(c *Chart) { c.Type = "mystery" },
			wantErr: "unknown entity type",
		},
		{
			name:    "no states",
			mutate:  func(c *Chart) { c.States = nil },
			wantErr: "no states",
		},
		{
			name: "duplicate state",
			mutate: func(c *Chart) {
				c.States = append(c.States, State{Name: "b"})
			},
			wantErr: "duplicate state",
		},
		{
			name: "two initial states",
			mutate: func(c *Chart) {
				c.States[1].Initial = true
			},
			wantErr: "more than one initial state",
		},
		{
			name: "no initial state",
			mutate: func(c *Chart) {
				c.States[0].Initial = false
			},
			wantErr: "no initial state",
		},
		{
			name: "unknown source state",
			mutate: func(c *Chart) {
				c.Transitions = append(c.Transitions, Transition{From: "z", Event: "GO", To: "b"})
			},
			wantErr: "unknown source state",
		},
		{
			name: "unknown target state",
			mutate: func(c *Chart) {
				c.Transitions = append(c.Transitions, Transition{From: "a", Event: "JUMP", To: "z"})
			},
			wantErr: "unknown target state",
		},
		{
			name: "internal transition with foreign target",
			mutate: func(c *Chart) {
				c.Transitions = append(c.Transitions, Transition{From: "a", Event: "TICK", To: "b", Internal: true})
			},
			wantErr: "internal transition cannot target",
		},
		{
			name: "unregistered guard",
			mutate: func(c *Chart) {
				c.Transitions = append(c.Transitions, Transition{From: "a", Event: "JUMP", To: "b", Guard: "ghost"})
			},
			wantErr: "unregistered guard",
		},
		{
			name: "unregistered action",
			mutate: func(c *Chart) {
				c.Transitions = append(c.Transitions, Transition{From: "a", Event: "JUMP", To: "b", Actions: []string{"ghost"}})
			},
			wantErr: "unregistered action",
		},
		{
			name: "unguarded transition shadows a later one",
			mutate: func(c *Chart) {
				c.Guards["maybe"] = alwaysTrue
				c.Transitions = append(c.Transitions,
					Transition{From: "a", Event: "GO", To: "c", Guard: "maybe"},
				)
			},
			wantErr: "shadows a later one",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validChart()
			tt.mutate(c)
			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err)
			}
		})
	}
}

func TestValidateAllowsGuardedSiblings(t *testing.T) {
	c := validChart()
	c.Guards["maybe"] = alwaysFalse
	// A guarded transition followed by an unguarded fallback is legal.
	c.Transitions = []Transition{
		{From: "a", Event: "GO", To: "c", Guard: "maybe"},
		{From: "a", Event: "GO", To: "b"},
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := c.From("a", "GO"); len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
}

func TestContextAccessors(t *testing.T) {
	ctx := Context{
		"name":   "ada",
		"count":  3,
		"score":  float64(42),
		"big":    int64(7),
		"flag":   true,
		"tags":   []string{"x", "y"},
		"mixed":  []any{"p", 9, "q"},
		"number": "not-an-int",
	}

	if got := ctx.String("name"); got != "ada" {
		t.Errorf("String: expected ada, got %q", got)
	}
	if got := ctx.String("count"); got != "" {
		t.Errorf("String on non-string: expected empty, got %q", got)
	}
	if got := ctx.Int("count"); got != 3 {
		t.Errorf("Int: expected 3, got %d", got)
	}
	if got := ctx.Int("score"); got != 42 {
		t.Errorf("Int on float64: expected 42, got %d", got)
	}
	if got := ctx.Int("big"); got != 7 {
		t.Errorf("Int on int64: expected 7, got %d", got)
	}
	if got := ctx.Int("number"); got != 0 {
		t.Errorf("Int on string: expected 0, got %d", got)
	}
	if !ctx.Bool("flag") {
		t.Error("Bool: expected true")
	}
	if ctx.Bool("missing") {
		t.Error("Bool on missing key: expected false")
	}
	if got := ctx.Strings("tags"); len(got) != 2 || got[0] != "x" {
		t.Errorf("Strings: expected [x y], got %v", got)
	}
	if got := ctx.Strings("mixed"); len(got) != 2 || got[1] != "q" {
		t.Errorf("Strings on []any: expected [p q], got %v", got)
	}
	if !ctx.HasString("tags", "y") {
		t.Error("HasString: expected tags to contain y")
	}
	if ctx.HasString("tags", "z") {
		t.Error("HasString: expected tags not to contain z")
	}
}

func TestContextClone(t *testing.T) {
	orig := Context{"k": "v"}
	clone := orig.Clone()
	clone["k"] = "changed"
	clone["extra"] = 1
	if orig["k"] != "v" {
		t.Errorf("clone mutation leaked into original: %v", orig)
	}
	if _, ok := orig["extra"]; ok {
		t.Error("clone addition leaked into original")
	}
}

func TestPatchApply(t *testing.T) {
	ctx := Context{"keep": 1, "update": "old", "drop": true}
	Patch{"update": "new", "drop": nil, "added": 2}.Apply(ctx)

	if ctx["keep"] != 1 {
		t.Errorf("expected keep untouched, got %v", ctx["keep"])
	}
	if ctx["update"] != "new" {
		t.Errorf("expected update replaced, got %v", ctx["update"])
	}
	if _, ok := ctx["drop"]; ok {
		t.Error("expected nil patch value to delete the key")
	}
	if ctx["added"] != 2 {
		t.Errorf("expected added key, got %v", ctx["added"])
	}
}

func TestEntityTypeValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.Valid() {
			t.Errorf("expected %s to be valid", typ)
		}
	}
	if EntityType("warehouse").Valid() {
		t.Error("expected warehouse to be invalid")
	}
}

func TestNewEventStampsTime(t *testing.T) {
	ev := NewEvent("PING", map[string]any{"k": "v"})
	if ev.Type != "PING" {
		t.Errorf("expected type PING, got %q", ev.Type)
	}
	if ev.Time.IsZero() {
		t.Error("expected event time to be stamped")
	}
	if ev.Meta["k"] != "v" {
		t.Errorf("expected meta preserved, got %v", ev.Meta)
	}
}
