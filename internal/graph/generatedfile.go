package graph

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/yam-build/yam/internal/hashing"
)

// GeneratedFileNode represents a file on disk produced by exactly one
// command node (spec §3.1). Its own Self phase never writes the file —
// that happens as a side effect of its producer's Self phase; rehashing
// after a successful producer run is how the node's hashes come to
// reflect reality (spec §4.6 step 4).
type GeneratedFileNode struct {
	*Base

	fs       afero.Fs
	path     string
	aspects  *hashing.Set
	producer *CommandNode

	mu            sync.Mutex
	lastWriteTime time.Time
	hashes        map[string]uint64
}

func NewGeneratedFileNode(ctx *ExecutionContext, name, path string, fs afero.Fs, aspects *hashing.Set, producer *CommandNode) *GeneratedFileNode {
	n := &GeneratedFileNode{fs: fs, path: path, aspects: aspects, producer: producer, hashes: make(map[string]uint64)}
	n.Base = NewBase(ctx, name, n)
	if producer != nil {
		n.AddPrerequisite(producer)
	}
	return n
}

// PendingStartSelf is always false: a generated file is only ever made
// current as a side effect of its producer's commit (Rehash), so its own
// Self is a deliberate no-op that simply reflects the current state.
func (n *GeneratedFileNode) PendingStartSelf() bool { return false }

func (n *GeneratedFileNode) ExecuteSelf(ctx context.Context) *SelfResult {
	return &SelfResult{State: Ok}
}

func (n *GeneratedFileNode) Commit(result *SelfResult) error { return nil }

// Rehash recomputes this node's aspect hashes from the file its producer
// just wrote. Called from the producer CommandNode's Commit (spec §4.6
// step 4), not through this node's own lifecycle.
func (n *GeneratedFileNode) Rehash() error {
	fi, err := n.fs.Stat(n.path)
	if err != nil {
		return Failf(n.Name(), ErrBuildRuleViolation, "declared output not written: %s: %w", n.path, err)
	}
	hashes := make(map[string]uint64, len(n.aspects.All()))
	for _, a := range n.aspects.Applicable(n.path) {
		h, err := hashing.HashFile(n.path, a)
		if err != nil {
			return Failf(n.Name(), ErrFilesystemFault, "hash %s (aspect %s): %w", n.path, a.Name, err)
		}
		hashes[a.Name] = h
	}
	n.mu.Lock()
	n.lastWriteTime = fi.ModTime()
	n.hashes = hashes
	n.mu.Unlock()
	return nil
}

func (n *GeneratedFileNode) Hashes() map[string]uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]uint64, len(n.hashes))
	for k, v := range n.hashes {
		out[k] = v
	}
	return out
}

func (n *GeneratedFileNode) LastWriteTime() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastWriteTime
}

func (n *GeneratedFileNode) Path() string { return n.path }

func (n *GeneratedFileNode) Producer() *CommandNode { return n.producer }
