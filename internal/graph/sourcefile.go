package graph

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/yam-build/yam/internal/hashing"
)

// SourceFileNode represents a file on disk not produced by the build. Its
// Self phase stats the file and, if the last-write-time changed, rehashes
// every applicable aspect (spec §4.2).
type SourceFileNode struct {
	*Base

	fs       afero.Fs
	path     string // absolute path on disk
	aspects  *hashing.Set

	mu            sync.Mutex
	lastWriteTime time.Time
	hashes        map[string]uint64
}

// NewSourceFileNode constructs and registers a source-file node. name is
// its symbolic (repository-qualified) path; path is the absolute location
// on disk as seen through fs.
func NewSourceFileNode(ctx *ExecutionContext, name, path string, fs afero.Fs, aspects *hashing.Set) *SourceFileNode {
	n := &SourceFileNode{fs: fs, path: path, aspects: aspects, hashes: make(map[string]uint64)}
	n.Base = NewBase(ctx, name, n)
	return n
}

func (n *SourceFileNode) PendingStartSelf() bool { return true }

func (n *SourceFileNode) ExecuteSelf(ctx context.Context) *SelfResult {
	fi, err := n.fs.Stat(n.path)
	if err != nil {
		return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrFilesystemFault, "stat %s: %w", n.path, err)}
	}

	n.mu.Lock()
	unchanged := n.lastWriteTime.Equal(fi.ModTime()) && len(n.hashes) > 0
	n.mu.Unlock()
	if unchanged {
		return &SelfResult{State: Ok, Hashes: n.Hashes()}
	}

	hashes := make(map[string]uint64, len(n.aspects.All()))
	for _, a := range n.aspects.Applicable(n.path) {
		h, err := hashing.HashFile(n.path, a)
		if err != nil {
			return &SelfResult{State: Failed, Err: Failf(n.Name(), ErrFilesystemFault, "hash %s (aspect %s): %w", n.path, a.Name, err)}
		}
		hashes[a.Name] = h
	}
	return &SelfResult{State: Ok, Hashes: hashes, Outputs: []string{n.path}, PreCommit: nil}
}

func (n *SourceFileNode) Commit(result *SelfResult) error {
	fi, err := n.fs.Stat(n.path)
	n.mu.Lock()
	defer n.mu.Unlock()
	if err == nil {
		n.lastWriteTime = fi.ModTime()
	}
	if result.Hashes != nil {
		n.hashes = result.Hashes
	}
	return nil
}

// Hashes returns a copy of the per-aspect content hashes computed by the
// last successful Self execution.
func (n *SourceFileNode) Hashes() map[string]uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]uint64, len(n.hashes))
	for k, v := range n.hashes {
		out[k] = v
	}
	return out
}

// Hash returns the hash for a specific aspect, if known.
func (n *SourceFileNode) Hash(aspect string) (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	h, ok := n.hashes[aspect]
	return h, ok
}

func (n *SourceFileNode) LastWriteTime() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastWriteTime
}

func (n *SourceFileNode) Path() string { return n.path }
