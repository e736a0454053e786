package graph

import "context"

// GroupNode names a collection of nodes — typically "all dirty X of kind
// K" — used both as a user-facing alias in build files (`<groupName>`) and
// internally as a scope root that bundles one phase's worth of work into a
// single sub-graph (spec §3.1, GLOSSARY "Scope root").
type GroupNode struct {
	*Base

	members map[string]Node
}

func NewGroupNode(ctx *ExecutionContext, name string) *GroupNode {
	n := &GroupNode{members: make(map[string]Node)}
	n.Base = NewBase(ctx, name, n)
	return n
}

// Add registers member as a member: a prerequisite that must reach Ok (or a
// terminal non-Ok state) before the group itself completes. It refuses a
// member whose prerequisite subgraph already reaches back to n, which would
// otherwise deadlock forever in runPrerequisites (spec §7 error kind 2,
// "cyclic group dependency").
func (n *GroupNode) Add(member Node) error {
	if err := detectCycle(n, member); err != nil {
		return err
	}
	n.members[member.Name()] = member
	n.AddPrerequisite(member)
	return nil
}

func (n *GroupNode) Members() map[string]Node {
	out := make(map[string]Node, len(n.members))
	for k, v := range n.members {
		out[k] = v
	}
	return out
}

// PendingStartSelf is always true: a group's Self is trivial bookkeeping,
// not worth a skip-optimization.
func (n *GroupNode) PendingStartSelf() bool { return true }

func (n *GroupNode) ExecuteSelf(ctx context.Context) *SelfResult {
	return &SelfResult{State: Ok}
}

func (n *GroupNode) Commit(result *SelfResult) error { return nil }
