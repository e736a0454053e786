package mirror

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// waitForEvent polls Drain until it observes at least one event or the
// timeout elapses, returning whatever was collected on the final attempt.
func waitForEvent(t *testing.T, cc *CollapsedChanges, timeout time.Duration) ([]Event, []string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		events, overflowed := cc.Drain()
		if len(events) > 0 || len(overflowed) > 0 {
			return events, overflowed
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil, nil
}

func Test_Unit_WatchRepository_FileCreate_ProducesAddedEvent_Success(t *testing.T) {
	dir := t.TempDir()
	cc := NewCollapsedChanges()

	w, err := WatchRepository("repo", dir, cc)
	require.NoError(t, err)
	defer w.Close()

	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	events, _ := waitForEvent(t, cc, 2*time.Second)
	require.NotEmpty(t, events, "expected at least one coalesced event for the created file")

	found := false
	for _, ev := range events {
		if ev.Path == path {
			found = true
			require.Contains(t, []EventKind{Added, Modified}, ev.Kind)
		}
	}
	require.True(t, found, "created file path not observed: %+v", events)
}

func Test_Unit_WatchRepository_Close_StopsDelivering_Success(t *testing.T) {
	dir := t.TempDir()
	cc := NewCollapsedChanges()

	w, err := WatchRepository("repo", dir, cc)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, "after-close.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)

	events, overflowed := cc.Drain()
	require.Empty(t, events)
	require.Empty(t, overflowed)
}
