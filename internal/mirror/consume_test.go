package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeNode struct{ dirty int }

func (n *fakeNode) SetDirty() { n.dirty++ }

type fakeLookup struct {
	nodes          map[string]*fakeNode
	storedTimes    map[string]time.Time
	dirtiedSubtree []string
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{nodes: map[string]*fakeNode{}, storedTimes: map[string]time.Time{}}
}

func (l *fakeLookup) NodeForPath(path string) (Dirtyable, bool) {
	n, ok := l.nodes[path]
	if !ok {
		return nil, false
	}
	return n, true
}

func (l *fakeLookup) StoredLastWriteTime(path string) (time.Time, bool) {
	tm, ok := l.storedTimes[path]
	return tm, ok
}

func (l *fakeLookup) MarkSubtreeDirty(dirPath string) {
	l.dirtiedSubtree = append(l.dirtiedSubtree, dirPath)
}

func Test_Unit_Consume_AddedMarksParentDirty_Success(t *testing.T) {
	t.Parallel()

	lk := newFakeLookup()
	lk.nodes["/repo/dir"] = &fakeNode{}

	cc := NewCollapsedChanges()
	cc.Add(Event{Repository: "repo", Path: "/repo/dir/file.c", Kind: Added})

	Consume(cc, lk, func(string) (time.Time, bool) { return time.Time{}, false })

	require.Equal(t, 1, lk.nodes["/repo/dir"].dirty)
}

func Test_Unit_Consume_RemovedMarksParentAndSubtreeDirty_Success(t *testing.T) {
	t.Parallel()

	lk := newFakeLookup()
	lk.nodes["/repo/dir"] = &fakeNode{}

	cc := NewCollapsedChanges()
	cc.Add(Event{Repository: "repo", Path: "/repo/dir/sub", Kind: Removed})

	Consume(cc, lk, func(string) (time.Time, bool) { return time.Time{}, false })

	require.Equal(t, 1, lk.nodes["/repo/dir"].dirty)
	require.Equal(t, []string{"/repo/dir/sub"}, lk.dirtiedSubtree)
}

func Test_Unit_Consume_ModifiedSameStoredTime_Suppressed_Success(t *testing.T) {
	t.Parallel()

	lk := newFakeLookup()
	lk.nodes["/repo/f"] = &fakeNode{}
	ts := time.Unix(100, 0)
	lk.storedTimes["/repo/f"] = ts

	cc := NewCollapsedChanges()
	cc.Add(Event{Repository: "repo", Path: "/repo/f", Kind: Modified, LastWriteTime: ts})

	Consume(cc, lk, func(string) (time.Time, bool) { return time.Time{}, false })

	require.Equal(t, 0, lk.nodes["/repo/f"].dirty)
}

func Test_Unit_Consume_ModifiedDifferentStoredTime_MarksDirty_Success(t *testing.T) {
	t.Parallel()

	lk := newFakeLookup()
	lk.nodes["/repo/f"] = &fakeNode{}
	lk.storedTimes["/repo/f"] = time.Unix(100, 0)

	cc := NewCollapsedChanges()
	cc.Add(Event{Repository: "repo", Path: "/repo/f", Kind: Modified, LastWriteTime: time.Unix(200, 0)})

	Consume(cc, lk, func(string) (time.Time, bool) { return time.Time{}, false })

	require.Equal(t, 1, lk.nodes["/repo/f"].dirty)
}

func Test_Unit_Consume_Overflow_MarksRepositorySubtreeDirty_Success(t *testing.T) {
	t.Parallel()

	lk := newFakeLookup()
	cc := NewCollapsedChanges()
	cc.Add(Event{Repository: "repo", Kind: Overflow})

	Consume(cc, lk, func(string) (time.Time, bool) { return time.Time{}, false })

	require.Equal(t, []string{"repo"}, lk.dirtiedSubtree)
}
