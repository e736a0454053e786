package graph

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/yam-build/yam/internal/hashing"
)

// SourceDirNode enumerates a directory's contents, filters via a colocated
// DotIgnoreNode, and maintains a map from symbolic child name to child node
// (spec §4.2).
type SourceDirNode struct {
	*Base

	fs      afero.Fs
	dir     string
	aspects *hashing.Set
	ctx2    *ExecutionContext

	ignore *DotIgnoreNode

	mu            sync.Mutex
	lastWriteTime time.Time
	childHash     uint64
	ignoreHash    uint64 // DotIgnoreNode.Hash() as of the last enumeration
	children      map[string]Node // base name -> node
}

func NewSourceDirNode(ctx *ExecutionContext, name, dir string, fs afero.Fs, aspects *hashing.Set) *SourceDirNode {
	n := &SourceDirNode{fs: fs, dir: dir, aspects: aspects, ctx2: ctx, children: make(map[string]Node)}
	n.Base = NewBase(ctx, name, n)
	n.ignore = NewDotIgnoreNode(ctx, name+"/.dotignore", dir, fs, aspects, n)
	n.AddPrerequisite(n.ignore)
	return n
}

func (n *SourceDirNode) PendingStartSelf() bool { return true }

func (n *SourceDirNode) ExecuteSelf(ctx context.Context) *SelfResult {
	fi, err := n.fs.Stat(n.dir)
	if err != nil {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrFilesystemFault, "stat dir %s: %w", n.dir, err)}
	}

	n.mu.Lock()
	unchanged := n.lastWriteTime.Equal(fi.ModTime()) && n.children != nil && len(n.children) > 0 &&
		n.ignore.Hash() == n.ignoreHash
	n.mu.Unlock()
	// Step 1: if the directory's own last-write-time is unchanged and its
	// ignore set hasn't changed either, skip re-enumeration (spec §4.2 step
	// 1, §4.3: a DotIgnore hash change forces re-enumeration even when the
	// directory's own mtime didn't move). We still fall through to
	// enumerate on the very first build, when children is empty.
	if unchanged {
		return &SelfResult{State: Ok}
	}

	n.ignore.refreshPatterns()

	entries, err := afero.ReadDir(n.fs, n.dir)
	if err != nil {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrFilesystemFault, "readdir %s: %w", n.dir, err)}
	}

	n.mu.Lock()
	existing := n.children
	n.mu.Unlock()

	newChildren := make(map[string]Node, len(entries))
	var precommit []Node
	var names []string
	for _, e := range entries {
		if n.ignore.Matches(e.Name(), e.IsDir()) {
			continue
		}
		names = append(names, e.Name())
		childName := n.Name() + "/" + e.Name()
		childPath := path.Join(n.dir, e.Name())
		if existingNode, ok := existing[e.Name()]; ok {
			newChildren[e.Name()] = existingNode
			if existingNode.State() == Dirty {
				precommit = append(precommit, existingNode)
			}
			continue
		}
		var child Node
		if e.IsDir() {
			child = NewSourceDirNode(n.ctx2, childName, childPath, n.fs, n.aspects)
		} else {
			child = NewSourceFileNode(n.ctx2, childName, childPath, n.fs, n.aspects)
		}
		newChildren[e.Name()] = child
		precommit = append(precommit, child)
	}

	// Step 5: orphans present in `existing` but not `newChildren` are
	// removed from the context recursively.
	for name, old := range existing {
		if _, ok := newChildren[name]; !ok {
			removeRecursive(n.ctx2, old)
		}
	}

	sort.Strings(names)
	h := hashing.HashBytes([]byte(joinSorted(names)))

	return &SelfResult{
		State:     Ok,
		PreCommit: precommit,
		Hashes:    map[string]uint64{"childSet": h},
		Outputs:   nil,
	}
}

func joinSorted(names []string) string {
	out := ""
	for _, nm := range names {
		out += nm + "\x00"
	}
	return out
}

func removeRecursive(ctx *ExecutionContext, n Node) {
	if sd, ok := n.(*SourceDirNode); ok {
		sd.mu.Lock()
		children := sd.children
		sd.mu.Unlock()
		for _, c := range children {
			removeRecursive(ctx, c)
		}
	}
	if ctx != nil {
		ctx.Unregister(n.Name())
	}
}

func (n *SourceDirNode) Commit(result *SelfResult) error {
	fi, err := n.fs.Stat(n.dir)
	n.mu.Lock()
	defer n.mu.Unlock()
	if err == nil {
		n.lastWriteTime = fi.ModTime()
	}
	if h, ok := result.Hashes["childSet"]; ok {
		n.childHash = h
	}
	n.ignoreHash = n.ignore.Hash()
	// Rebuild the children map to reflect additions/removals computed in
	// ExecuteSelf. Since ExecuteSelf only reads n.children and never
	// mutates it, the rebuild is safe to apply here.
	fresh := make(map[string]Node)
	entries, err := afero.ReadDir(n.fs, n.dir)
	if err == nil {
		for _, e := range entries {
			if n.ignore.Matches(e.Name(), e.IsDir()) {
				continue
			}
			childName := n.Name() + "/" + e.Name()
			if existing, ok := n.children[e.Name()]; ok {
				fresh[e.Name()] = existing
				continue
			}
			if c, ok := n.ctx2.Lookup(childName); ok {
				fresh[e.Name()] = c
			}
		}
	}
	n.children = fresh
	return nil
}

// Child returns the node for a direct child by base name.
func (n *SourceDirNode) Child(name string) (Node, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.children[name]
	return c, ok
}

// Children returns a snapshot of all direct children.
func (n *SourceDirNode) Children() map[string]Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]Node, len(n.children))
	for k, v := range n.children {
		out[k] = v
	}
	return out
}

func (n *SourceDirNode) Dir() string { return n.dir }
