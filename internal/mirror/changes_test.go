package mirror

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Unit_Collapse_Table_Success(t *testing.T) {
	t.Parallel()

	cases := []struct {
		prev, next, want EventKind
	}{
		{Added, Added, Added},
		{Added, Removed, Removed},
		{Added, Modified, Added},
		{Removed, Added, Added},
		{Removed, Removed, Removed},
		{Removed, Modified, Removed},
		{Modified, Added, Added},
		{Modified, Removed, Removed},
		{Modified, Modified, Modified},
	}
	for _, c := range cases {
		require.Equal(t, c.want, collapse(c.prev, c.next), "collapse(%s, %s)", c.prev, c.next)
	}
}

func Test_Unit_CollapsedChanges_Add_CollapsesSamePath_Success(t *testing.T) {
	t.Parallel()

	cc := NewCollapsedChanges()
	cc.Add(Event{Repository: "r", Path: "/a/b", Kind: Added, LastWriteTime: time.Unix(1, 0)})
	cc.Add(Event{Repository: "r", Path: "/a/b", Kind: Modified, LastWriteTime: time.Unix(2, 0)})

	events, overflowed := cc.Drain()
	require.Empty(t, overflowed)
	require.Len(t, events, 1)
	require.Equal(t, Added, events[0].Kind)
	require.Equal(t, time.Unix(2, 0), events[0].LastWriteTime)
}

func Test_Unit_CollapsedChanges_Overflow_ClearsPendingForRepository_Success(t *testing.T) {
	t.Parallel()

	cc := NewCollapsedChanges()
	cc.Add(Event{Repository: "r1", Path: "/a/b", Kind: Modified})
	cc.Add(Event{Repository: "r2", Path: "/c/d", Kind: Modified})
	cc.Add(Event{Repository: "r1", Kind: Overflow})

	events, overflowed := cc.Drain()
	require.Equal(t, []string{"r1"}, overflowed)
	require.Len(t, events, 1)
	require.Equal(t, "/c/d", events[0].Path)
}

func Test_Unit_CollapsedChanges_Drain_ClearsState_Success(t *testing.T) {
	t.Parallel()

	cc := NewCollapsedChanges()
	cc.Add(Event{Repository: "r", Path: "/a", Kind: Added})
	cc.Drain()

	events, overflowed := cc.Drain()
	require.Empty(t, events)
	require.Empty(t, overflowed)
}

func Test_Unit_EventKind_String_Success(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Added", Added.String())
	require.Equal(t, "Removed", Removed.String())
	require.Equal(t, "Modified", Modified.String())
	require.Equal(t, "Overflow", Overflow.String())
}
