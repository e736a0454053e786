package buildfile

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// detectRuleCycle reports a cyclic dependency among a single build file's
// own rules: one rule's <group> or {bin} output referenced as another
// rule's input, and that rule's output referenced back by the first
// (directly or transitively). Glob patterns are excluded since they name
// concrete paths, not symbolic handles, so two rules sharing a glob output
// pattern is not treated as a dependency cycle here.
//
// Detection builds a directed graph of rule indices and runs a topological
// sort, the same technique distr1-distri's internal/batch/batch.go uses via
// gonum.org/v1/gonum/graph/topo to validate a build order before scheduling
// it (spec §7 error kind 2, §9: cycles are detected before scheduling via a
// Tarjan-style SCC decomposition, which topo.Sort performs internally).
func detectRuleCycle(rules []Rule) error {
	g := simple.NewDirectedGraph()
	for i := range rules {
		g.AddNode(simple.Node(int64(i)))
	}

	for i, producer := range rules {
		for _, out := range producer.Outputs {
			if out.Kind == PatternGlob {
				continue
			}
			for j, consumer := range rules {
				if i == j {
					continue
				}
				if consumesSymbol(consumer.Inputs, out) {
					g.SetEdge(g.NewEdge(simple.Node(int64(i)), simple.Node(int64(j))))
				}
			}
		}
	}

	if _, err := topo.Sort(g); err != nil {
		uo, ok := err.(topo.Unorderable)
		if !ok {
			return err
		}
		return cyclicRuleError(rules, uo)
	}
	return nil
}

func consumesSymbol(inputs []Pattern, out Pattern) bool {
	for _, in := range inputs {
		if in.Kind == out.Kind && in.Text == out.Text {
			return true
		}
	}
	return false
}

func cyclicRuleError(rules []Rule, components topo.Unorderable) error {
	var lines []string
	first := 0
	for _, component := range components {
		if len(component) < 2 {
			continue
		}
		for _, n := range component {
			if first == 0 {
				first = rules[n.ID()].Line
			}
			lines = append(lines, strconv.Itoa(rules[n.ID()].Line))
		}
	}
	return &SyntaxError{Line: first, Msg: "cyclic dependency among rules declared on lines " + strings.Join(lines, ", ")}
}
