package graph

import (
	"bufio"
	"bytes"
	"context"
	"path"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/yam-build/yam/internal/hashing"
)

// ignorePattern is one parsed line from a .gitignore/.yamignore file.
type ignorePattern struct {
	pattern string
	negate  bool
	dirOnly bool
}

func parseIgnoreFile(data []byte) []ignorePattern {
	var patterns []ignorePattern
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := ignorePattern{pattern: line}
		if strings.HasPrefix(p.pattern, "!") {
			p.negate = true
			p.pattern = p.pattern[1:]
		}
		if strings.HasSuffix(p.pattern, "/") {
			p.dirOnly = true
			p.pattern = strings.TrimSuffix(p.pattern, "/")
		}
		patterns = append(patterns, p)
	}
	return patterns
}

func matchIgnored(patterns []ignorePattern, name string, isDir bool) bool {
	ignored := false
	for _, p := range patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if ok, _ := path.Match(p.pattern, name); ok {
			ignored = !p.negate
		}
	}
	return ignored
}

// DotIgnoreNode owns the .gitignore and .yamignore source-file nodes for a
// directory. When either changes, it recursively marks every node in its
// owning directory dirty because ignore precedence affects all descendants
// (spec §4.3).
type DotIgnoreNode struct {
	*Base

	fs  afero.Fs
	dir string

	gitignore *SourceFileNode
	yamignore *SourceFileNode

	mu       sync.Mutex
	patterns []ignorePattern
	hash     uint64
	owner    *SourceDirNode
}

func NewDotIgnoreNode(ctx *ExecutionContext, name, dir string, fs afero.Fs, aspects *hashing.Set, owner *SourceDirNode) *DotIgnoreNode {
	n := &DotIgnoreNode{fs: fs, dir: dir, owner: owner}
	n.Base = NewBase(ctx, name, n)
	n.gitignore = NewSourceFileNode(ctx, name+"/.gitignore", path.Join(dir, ".gitignore"), fs, aspects)
	n.yamignore = NewSourceFileNode(ctx, name+"/.yamignore", path.Join(dir, ".yamignore"), fs, aspects)
	n.AddPrerequisite(n.gitignore)
	n.AddPrerequisite(n.yamignore)
	return n
}

func (n *DotIgnoreNode) PendingStartSelf() bool { return true }

func (n *DotIgnoreNode) ExecuteSelf(ctx context.Context) *SelfResult {
	var all []ignorePattern
	for _, sf := range []*SourceFileNode{n.gitignore, n.yamignore} {
		data, err := afero.ReadFile(n.fs, sf.Path())
		if err != nil {
			continue // absent ignore file is not an error
		}
		all = append(all, parseIgnoreFile(data)...)
	}
	var buf bytes.Buffer
	for _, p := range all {
		buf.WriteString(p.pattern)
		buf.WriteByte('\n')
	}
	h := hashing.HashBytes(buf.Bytes())

	n.mu.Lock()
	changed := h != n.hash
	n.mu.Unlock()

	result := &SelfResult{State: Ok, Hashes: map[string]uint64{"ignoreSet": h}}
	if changed && n.owner != nil {
		// Forces a re-enumeration: the owning directory compares its own
		// stored ignore-set hash against this one during its Self phase.
		n.owner.SetDirty()
		markSubtreeDirty(n.owner)
	}
	_ = all
	return result
}

// markSubtreeDirty marks every node below dir dirty, descending into child
// directories.
func markSubtreeDirty(dir *SourceDirNode) {
	for _, c := range dir.Children() {
		c.SetDirty()
		if sd, ok := c.(*SourceDirNode); ok {
			markSubtreeDirty(sd)
		}
	}
}

func (n *DotIgnoreNode) Commit(result *SelfResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if h, ok := result.Hashes["ignoreSet"]; ok {
		n.hash = h
	}
	return nil
}

// Hash returns the ignore-set hash computed by the last successful Self
// execution, used by the owning SourceDirNode to decide whether its own
// re-enumeration skip is still valid.
func (n *DotIgnoreNode) Hash() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.hash
}

// Matches reports whether name (a direct child's base name) within this
// directory is ignored.
func (n *DotIgnoreNode) Matches(name string, isDir bool) bool {
	n.mu.Lock()
	patterns := n.patterns
	n.mu.Unlock()
	return matchIgnored(patterns, name, isDir)
}

// refreshPatterns re-parses the ignore files synchronously; used by
// SourceDirNode's Self phase, which needs up-to-date patterns before
// enumerating even if the DotIgnoreNode itself hasn't been scheduled yet
// this build (e.g. on the very first build).
func (n *DotIgnoreNode) refreshPatterns() {
	var all []ignorePattern
	for _, sf := range []*SourceFileNode{n.gitignore, n.yamignore} {
		data, err := afero.ReadFile(n.fs, sf.Path())
		if err != nil {
			continue
		}
		all = append(all, parseIgnoreFile(data)...)
	}
	n.mu.Lock()
	n.patterns = all
	n.mu.Unlock()
}
