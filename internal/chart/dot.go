package chart

import (
	"bytes"
	"fmt"
)

// ExportDOT generates Graphviz DOT source for a chart. When current names a
// declared state it is highlighted; pass "" for a plain chart rendering.
func ExportDOT(c *Chart, current string) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "digraph %s {\n", c.Type)
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, fontsize=10, style=rounded];\n")
	buf.WriteString("  edge [fontsize=9];\n")

	for _, s := range c.States {
		attrs := ""
		if s.Initial {
			attrs += " shape=ellipse"
		}
		if s.Final {
			attrs += " peripheries=2"
		}
		if s.Name == current {
			attrs += " style=filled fillcolor=lightgreen"
		}
		fmt.Fprintf(&buf, "  %q [label=%q%s];\n", s.Name, s.Name, attrs)
	}

	for _, t := range c.Transitions {
		label := t.Event
		if t.Guard != "" {
			label += " [" + t.Guard + "]"
		}
		style := ""
		if t.Internal {
			style = " style=dashed"
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q%s];\n", t.From, t.To, label, style)
	}

	buf.WriteString("}\n")
	return buf.String()
}
