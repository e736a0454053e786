package graph

import (
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// prerequisiteLister is implemented by every node variant through the
// embedded Base.
type prerequisiteLister interface {
	sortedPrerequisites() []Node
}

// nodeIndex assigns small stable integer ids to Nodes for gonum's graph
// representation, built fresh per check since the live node set changes
// between builds.
type nodeIndex struct {
	ids   map[string]int64
	count int64
}

func newNodeIndex() *nodeIndex {
	return &nodeIndex{ids: make(map[string]int64)}
}

func (idx *nodeIndex) id(n Node) int64 {
	name := n.Name()
	if id, ok := idx.ids[name]; ok {
		return id
	}
	id := idx.count
	idx.ids[name] = id
	idx.count++
	return id
}

// detectCycle reports whether giving from a new prerequisite on to would
// close a cycle in the prerequisite graph: i.e. whether to's own
// (transitive) prerequisites already reach from. Detection walks the live
// prerequisite edges into a gonum directed graph and runs a topological
// sort, exactly as distr1-distri's internal/batch/batch.go validates a
// build order with gonum.org/v1/gonum/graph/topo before scheduling it
// (spec §7 error kind 2, §9: cycles are reported before scheduling via a
// Tarjan-style SCC decomposition, which topo.Sort performs internally).
func detectCycle(from, to Node) error {
	if from.Name() == to.Name() {
		return Failf(from.Name(), ErrBuildRuleViolation, "cyclic dependency: %s would depend on itself", from.Name())
	}

	g := simple.NewDirectedGraph()
	idx := newNodeIndex()
	visited := make(map[string]bool)

	ensureNode := func(id int64) {
		if g.Node(id) == nil {
			g.AddNode(simple.Node(id))
		}
	}

	var walk func(n Node)
	walk = func(n Node) {
		if visited[n.Name()] {
			return
		}
		visited[n.Name()] = true
		ensureNode(idx.id(n))
		lister, ok := n.(prerequisiteLister)
		if !ok {
			return
		}
		for _, p := range lister.sortedPrerequisites() {
			ensureNode(idx.id(p))
			g.SetEdge(g.NewEdge(simple.Node(idx.id(n)), simple.Node(idx.id(p))))
			walk(p)
		}
	}
	walk(to)

	ensureNode(idx.id(from))
	g.SetEdge(g.NewEdge(simple.Node(idx.id(from)), simple.Node(idx.id(to))))

	if _, err := topo.Sort(g); err != nil {
		if _, ok := err.(topo.Unorderable); ok {
			return Failf(from.Name(), ErrBuildRuleViolation,
				"cyclic dependency: %s already (transitively) depends on itself through %s", from.Name(), to.Name())
		}
		return Failf(from.Name(), ErrBuildRuleViolation, "%w", err)
	}
	return nil
}
