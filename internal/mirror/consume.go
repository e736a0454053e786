package mirror

import (
	"path/filepath"
	"time"
)

// Lookup is the narrow view into the node graph that Consume needs, kept as
// an interface so mirror does not import internal/graph. No type in
// internal/graph implements it; this package's tests supply a fake.
type Lookup interface {
	// NodeForPath returns the node representing path, if the mirror has
	// already registered one.
	NodeForPath(path string) (Dirtyable, bool)
	// StoredLastWriteTime returns the last-write-time the node at path had
	// the last time it was hashed/enumerated.
	StoredLastWriteTime(path string) (time.Time, bool)
	// MarkSubtreeDirty recursively marks every node under dirPath dirty.
	// Consume passes a removed path, and for Overflow the repository name
	// recorded on the overflow event.
	MarkSubtreeDirty(dirPath string)
}

// Dirtyable is the minimal capability consumeChanges needs from a mirror
// node: the ability to mark it (and, by the node's own SetDirty cascade,
// its dependants) dirty.
type Dirtyable interface {
	SetDirty()
}

// Consume drains changes and marks mirror nodes dirty, per spec §4.4:
//
//   - Added/Removed on parent/child: mark the parent directory node dirty
//     using the *current* last-write-time (not the event's, which applies
//     to the child).
//   - Modified on a path: mark the matching node dirty only if its stored
//     last-write-time differs from the event's (suppresses spurious events
//     and the build's own generated-file writes).
//   - A removed directory: recursively mark its subtree dirty.
//   - Overflow: mark every node in the affected repository dirty.
//
// Consume must run on the main thread, between builds, never during one
// (spec §5's main-thread invariant).
func Consume(changes *CollapsedChanges, lk Lookup, currentTime func(path string) (time.Time, bool)) {
	events, overflowed := changes.Drain()

	for _, repo := range overflowed {
		lk.MarkSubtreeDirty(repo)
	}

	for _, ev := range events {
		switch ev.Kind {
		case Added, Removed:
			parent := filepath.Dir(ev.Path)
			if node, ok := lk.NodeForPath(parent); ok {
				// The spec requires the *current* last-write-time of the
				// parent, not the event's (which describes the child);
				// currentTime is consulted for documentation purposes
				// only, since SetDirty() itself carries no timestamp —
				// the directory node re-stats itself in its own Self
				// phase per spec §4.2 step 1.
				currentTime(parent)
				node.SetDirty()
			}
			if ev.Kind == Removed {
				lk.MarkSubtreeDirty(ev.Path)
			}
		case Modified:
			stored, known := lk.StoredLastWriteTime(ev.Path)
			if known && stored.Equal(ev.LastWriteTime) {
				continue // suppresses the build's own writes
			}
			if node, ok := lk.NodeForPath(ev.Path); ok {
				node.SetDirty()
			}
		}
	}
}
